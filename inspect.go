package modelsql

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/mitranim/refut"
	"gopkg.in/guregu/null.v4"
)

// Field is one persistable member of a record, as returned by Describer.
type Field struct {
	// Name is the column name.
	Name string
	// Value is the member value; nil, nil pointers and driver.Valuer values
	// yielding nil are absent.
	Value any
	// Text reports that the member accepts a text value. Used by the batch
	// insert null defaults; string values are always treated as text.
	Text bool
	// Err marks a member that could not be read. It is skipped and reported.
	Err error
}

// Describer is implemented by records that list their own members instead of
// being inspected by reflection. Fields must return the members in a stable
// order.
type Describer interface {
	Fields() []Field
}

// member is an inspected record member.
type member struct {
	name   string
	goName string
	value  any
	absent bool
	text   bool
	err    error
}

var (
	valuerIface    = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	sqlNullString  = reflect.TypeOf(sql.NullString{})
	nullString     = reflect.TypeOf(null.String{})
	describerIface = reflect.TypeOf((*Describer)(nil)).Elem()
)

var planCache = newFieldCache(cacheSize)

// recordType returns the dynamic struct type behind record, used to check
// batch homogeneity.
func recordType(record any) reflect.Type {
	t := reflect.TypeOf(record)
	if t == nil {
		return nil
	}
	if t.Implements(describerIface) {
		return t
	}
	return refut.RtypeDeref(t)
}

// inspect returns the members of record in a stable order. System members
// are never returned. Unreadable members carry err and are marked absent.
func (c *Converter) inspect(record any) ([]member, error) {
	if d, ok := record.(Describer); ok && !refut.IsNil(record) {
		return c.inspectDescriber(d), nil
	}

	rv := reflect.ValueOf(record)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil %s", ErrInvalidRecord, rv.Type())
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: want struct or Describer, got %T", ErrInvalidRecord, record)
	}

	plan, err := c.plan(rv.Type())
	if err != nil {
		return nil, err
	}

	out := make([]member, len(plan))
	for i, fp := range plan {
		m := member{name: fp.name, goName: fp.goName, text: fp.text}
		fv, ok := fieldByPath(rv, fp.index)
		if !ok {
			// nil embedded pointer: every promoted member is absent
			m.absent = true
			out[i] = m
			continue
		}
		m.value, m.absent, m.err = readValue(fv)
		if m.err != nil {
			m.absent = true
			m.value = nil
		}
		out[i] = m
	}
	return out, nil
}

func (c *Converter) inspectDescriber(d Describer) []member {
	fields := d.Fields()
	out := make([]member, 0, len(fields))
	for _, f := range fields {
		if c.isSystem(f.Name, f.Name) {
			continue
		}
		m := member{name: f.Name, goName: f.Name, text: f.Text, err: f.Err}
		if m.err == nil {
			m.value, m.absent, m.err = readValue(reflect.ValueOf(f.Value))
		}
		if m.err != nil {
			m.absent = true
			m.value = nil
		}
		if _, ok := m.value.(string); ok {
			m.text = true
		}
		out = append(out, m)
	}
	return out
}

// isSystem reports whether a member is a runtime artifact that is never
// persisted, such as a serialization-version marker.
func (c *Converter) isSystem(column, goName string) bool {
	for _, s := range c.config.SystemFields {
		if strings.EqualFold(s, column) || strings.EqualFold(s, goName) {
			return true
		}
	}
	return false
}

// readValue extracts the parameter value of v. Pointers are dereferenced.
// A panic while reading (for example a Valuer with a nil receiver) is
// returned as an error.
func readValue(v reflect.Value) (val any, absent bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			val, absent, err = nil, true, fmt.Errorf("panic: %v", r)
		}
	}()

	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, true, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, true, nil
	}
	if refut.IsRkindNilable(v.Kind()) && v.IsNil() {
		return nil, true, nil
	}

	iface := v.Interface()
	valuer, ok := iface.(driver.Valuer)
	if !ok && v.CanAddr() && v.Addr().Type().Implements(valuerIface) {
		valuer, ok = v.Addr().Interface().(driver.Valuer)
	}
	if ok {
		dv, err := valuer.Value()
		if err != nil {
			return nil, true, err
		}
		if dv == nil {
			return nil, true, nil
		}
	}

	if v.Kind() == reflect.Pointer {
		return v.Elem().Interface(), false, nil
	}
	return iface, false, nil
}

// isTextType reports whether a member of type t accepts a text value.
func isTextType(t reflect.Type) bool {
	t = refut.RtypeDeref(t)
	switch t {
	case sqlNullString, nullString:
		return true
	}
	return t.Kind() == reflect.String
}

// fieldByPath walks root by index path. It returns false when an embedded
// pointer along the path is nil.
func fieldByPath(root reflect.Value, path []int) (reflect.Value, bool) {
	v := root
	for i, idx := range path {
		v = v.Field(idx)
		if i == len(path)-1 {
			return v, true
		}
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
	}
	return v, true
}

// --------------------------------
// Plans
// --------------------------------

// fieldPlan describes one persistable struct field.
type fieldPlan struct {
	name   string // column name
	goName string
	index  []int
	text   bool
}

// plan returns the cached field plan for struct type t under this
// converter's configuration, building it on first use.
func (c *Converter) plan(t reflect.Type) ([]fieldPlan, error) {
	key := planKey{typ: t, sig: c.sig}
	if p, ok := planCache.get(key); ok {
		return p, nil
	}
	p, err := c.buildPlan(t)
	if err != nil {
		return nil, err
	}
	planCache.put(key, p)
	return p, nil
}

// buildPlan lists the persistable fields of t in declaration order. Embedded
// structs without a tag are flattened into the enclosing struct.
func (c *Converter) buildPlan(t reflect.Type) ([]fieldPlan, error) {
	var plan []fieldPlan
	seen := map[string]bool{}
	visited := map[reflect.Type]bool{}

	var walk func(rt reflect.Type, path []int) error
	walk = func(rt reflect.Type, path []int) error {
		rt = refut.RtypeDeref(rt)
		if visited[rt] {
			return nil
		}
		visited[rt] = true
		defer delete(visited, rt)

		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			tag := sf.Tag.Get(c.config.Tag)
			if tag == "-" {
				continue
			}
			name := tagName(tag)

			if sf.Anonymous && name == "" && refut.RtypeDeref(sf.Type).Kind() == reflect.Struct {
				if err := walk(sf.Type, appendIndex(path, i)); err != nil {
					return err
				}
				continue
			}
			if !refut.IsSfieldExported(sf) {
				continue
			}
			if name == "" {
				name = c.config.Naming.Column(sf.Name)
			}
			if c.isSystem(name, sf.Name) {
				continue
			}
			if seen[name] {
				return fmt.Errorf("%w: %q in %s", ErrFieldAmbiguous, name, t)
			}
			seen[name] = true
			plan = append(plan, fieldPlan{
				name:   name,
				goName: sf.Name,
				index:  appendIndex(path, i),
				text:   isTextType(sf.Type),
			})
		}
		return nil
	}

	if err := walk(t, nil); err != nil {
		return nil, err
	}
	return plan, nil
}

// tagName returns the column part of a struct tag value such as "id,key".
func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return strings.TrimSpace(name)
}

// appendIndex returns a new index path with idx appended.
func appendIndex(path []int, idx int) []int {
	out := make([]int, len(path)+1)
	copy(out, path)
	out[len(path)] = idx
	return out
}

// --------------------------------
// Cache
// --------------------------------

// planKey identifies a field plan by struct type and configuration signature.
type planKey struct {
	typ reflect.Type
	sig string
}

// fieldCache implements a two-tier map with cheap rotation to bound memory.
// 'curr' is the hot set; 'prev' is the previous generation. Lookups promote.
type fieldCache struct {
	mu   sync.RWMutex
	curr map[planKey][]fieldPlan
	prev map[planKey][]fieldPlan
	max  int
}

func newFieldCache(max int) *fieldCache {
	if max <= 0 {
		max = cacheSize
	}
	return &fieldCache{
		curr: make(map[planKey][]fieldPlan, max/2),
		prev: make(map[planKey][]fieldPlan),
		max:  max,
	}
}

func (c *fieldCache) get(k planKey) ([]fieldPlan, bool) {
	c.mu.RLock()
	if p, ok := c.curr[k]; ok {
		c.mu.RUnlock()
		return p, true
	}
	p, ok := c.prev[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	c.put(k, p)
	return p, true
}

func (c *fieldCache) put(k planKey, p []fieldPlan) {
	c.mu.Lock()
	if len(c.curr) >= c.max {
		c.prev = c.curr
		c.curr = make(map[planKey][]fieldPlan, c.max/2)
	}
	c.curr[k] = p
	c.mu.Unlock()
}

package modelsql

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/guregu/null.v4"
)

// Trim removes leading and trailing white space from every text member of
// record in place and returns record. record must be a pointer to a struct;
// other values are returned untouched. Text members are string fields,
// non-nil *string fields, and valid sql.NullString or null.String fields.
// System members are left alone.
func (c *Converter) Trim(record any) any {
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		c.log.Warn("modelsql: trim needs a struct pointer", "type", fmt.Sprintf("%T", record))
		return record
	}
	c.trimValue(rv.Elem())
	return record
}

// TrimAll applies Trim to every element of records, which is a slice of
// structs, a slice of struct pointers, or a pointer to either. It returns
// records.
func (c *Converter) TrimAll(records any) any {
	v := reflect.ValueOf(records)
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return records
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.Slice {
		c.log.Warn("modelsql: trim needs a slice", "type", fmt.Sprintf("%T", records))
		return records
	}
	for i := 0; i < v.Len(); i++ {
		el := v.Index(i)
		for el.Kind() == reflect.Pointer || el.Kind() == reflect.Interface {
			if el.IsNil() {
				break
			}
			el = el.Elem()
		}
		c.trimValue(el)
	}
	return records
}

// Trim trims the text members of record with the default Converter.
func Trim(record any) any {
	return defaultConverter.Trim(record)
}

// TrimAll trims the text members of every record with the default Converter.
func TrimAll(records any) any {
	return defaultConverter.TrimAll(records)
}

// FormatValue returns s trimmed, or a null value when s is empty.
func FormatValue(s string) null.String {
	if len(s) == 0 {
		return null.String{}
	}
	return null.StringFrom(strings.TrimSpace(s))
}

func (c *Converter) trimValue(rv reflect.Value) {
	if rv.Kind() != reflect.Struct || !rv.CanSet() {
		return
	}
	plan, err := c.plan(rv.Type())
	if err != nil {
		c.log.Warn("modelsql: trim skipped", "type", rv.Type().String(), "err", err)
		return
	}
	for _, fp := range plan {
		if !fp.text {
			continue
		}
		fv, ok := fieldByPath(rv, fp.index)
		if !ok {
			continue
		}
		if err := trimField(fv); err != nil {
			c.log.Warn("modelsql: member not accessible", "field", fp.name, "type", rv.Type().String(), "err", err)
		}
	}
}

// trimField trims one text member in place.
func trimField(fv reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	if !fv.CanSet() {
		return fmt.Errorf("%s is not settable", fv.Type())
	}

	switch fv.Type() {
	case sqlNullString:
		ns := fv.Interface().(sql.NullString)
		if ns.Valid {
			ns.String = strings.TrimSpace(ns.String)
			fv.Set(reflect.ValueOf(ns))
		}
		return nil
	case nullString:
		ns := fv.Interface().(null.String)
		if ns.Valid {
			fv.Set(reflect.ValueOf(null.StringFrom(strings.TrimSpace(ns.String))))
		}
		return nil
	}

	if fv.Kind() == reflect.String {
		fv.SetString(strings.TrimSpace(fv.String()))
	}
	return nil
}

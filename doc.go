// Package modelsql turns a record (or a list of same-typed records) into parameterized INSERT or UPDATE text plus the matching bind values, with no per-type mapping code: members are read from `db` tags by reflection or listed by the record itself through Describer. Placeholders and values always correspond one to one; absent members are skipped for single records and defaulted for batch inserts; Exec and ExecBatch run the result through sqlx for the configured dialect.

package modelsql

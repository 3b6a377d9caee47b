// Package records defines the generic row representation that flows between
// the parser, the transformer chain and the storage loader.
package records

// Record is a single row keyed by column name. Values are the decoded JSON
// scalars (string, json.Number, bool, nil) until transformers replace them
// with typed values such as int64.
type Record map[string]any

// Clone returns a shallow copy of r. Transformers that must not mutate their
// input use it before rewriting fields.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Row projects r onto columns in order. Missing columns become nil so the
// driver binds them as NULL.
func (r Record) Row(columns []string) []any {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = r[c]
	}
	return row
}

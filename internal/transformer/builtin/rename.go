package builtin

import "loginetl/pkg/records"

// Rename moves values from old keys to new keys (map old -> new). A missing
// source key leaves the record untouched for that pair.
type Rename map[string]string

func (m Rename) Apply(in []records.Record) ([]records.Record, error) {
	out := make([]records.Record, len(in))
	for i, r := range in {
		c := r.Clone()
		for from, to := range m {
			v, ok := c[from]
			if !ok || from == to {
				continue
			}
			delete(c, from)
			c[to] = v
		}
		out[i] = c
	}
	return out, nil
}

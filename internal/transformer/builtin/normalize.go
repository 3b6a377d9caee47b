package builtin

import (
	"fmt"

	"loginetl/pkg/records"
)

// DefaultSentinels are the null-like tokens produced by spreadsheet exports
// and dataframe libraries. Matching is exact and case sensitive; float NaN is
// covered by its "NaN" string form.
var DefaultSentinels = []string{
	"", "nan", "NaN", "NaT", "#N/A", "NAN", " ", "  ", "N/A", "NA", "nat",
}

// NullSentinels replaces every value whose string form is a sentinel token
// with nil. It is field-name independent and returns new records.
type NullSentinels struct {
	tokens map[string]struct{}
}

// NewNullSentinels builds a normalizer for tokens. An empty list selects
// DefaultSentinels.
func NewNullSentinels(tokens ...string) NullSentinels {
	if len(tokens) == 0 {
		tokens = DefaultSentinels
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return NullSentinels{tokens: set}
}

// IsSentinel reports whether v stringifies to one of the tokens. nil is not a
// sentinel; it is already absent.
func (n NullSentinels) IsSentinel(v any) bool {
	if v == nil {
		return false
	}
	_, ok := n.tokens[stringify(v)]
	return ok
}

// Value returns nil for sentinels and v otherwise.
func (n NullSentinels) Value(v any) any {
	if n.IsSentinel(v) {
		return nil
	}
	return v
}

// Record returns a copy of r with sentinel values replaced by nil.
func (n NullSentinels) Record(r records.Record) records.Record {
	out := make(records.Record, len(r))
	for k, v := range r {
		out[k] = n.Value(v)
	}
	return out
}

func (n NullSentinels) Apply(in []records.Record) ([]records.Record, error) {
	out := make([]records.Record, len(in))
	for i, r := range in {
		out[i] = n.Record(r)
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

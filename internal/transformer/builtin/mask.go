package builtin

import (
	"strings"
	"unicode/utf8"

	"loginetl/pkg/records"
)

// MaskIP hides the last octet of a dotted address: "192.168.1.23" becomes
// "192.168.1.**". Input without a '.' is returned unchanged.
func MaskIP(s string) string { return maskLastSegment(s, ".") }

// MaskDeviceID hides the last hyphen-delimited segment: "dev-abc-9f3k"
// becomes "dev-abc-****". Input without a '-' is returned unchanged.
func MaskDeviceID(s string) string { return maskLastSegment(s, "-") }

// maskLastSegment keeps everything up to and including the last delim and
// replaces each remaining character with '*', so the result has as many
// characters as s.
func maskLastSegment(s, delim string) string {
	i := strings.LastIndex(s, delim)
	if i < 0 {
		return s
	}
	keep := i + len(delim)
	return s[:keep] + strings.Repeat("*", utf8.RuneCountInString(s[keep:]))
}

// Mask applies Fn to the string value of Field and stores the result under
// As (or Field when As is empty). The source key is removed on rename.
// Records without the field, or with a non-string value, pass through.
type Mask struct {
	Field string
	As    string
	Fn    func(string) string
}

func (m Mask) Apply(in []records.Record) ([]records.Record, error) {
	out := make([]records.Record, len(in))
	for i, r := range in {
		out[i] = r
		s, ok := r[m.Field].(string)
		if !ok {
			continue
		}
		c := r.Clone()
		target := m.Field
		if m.As != "" && m.As != m.Field {
			delete(c, m.Field)
			target = m.As
		}
		c[target] = m.Fn(s)
		out[i] = c
	}
	return out, nil
}

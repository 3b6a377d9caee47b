package builtin

import (
	"strconv"
	"strings"
	"unicode"

	"loginetl/internal/etlerr"
	"loginetl/pkg/records"
)

// CoerceVersion concatenates the decimal digits of a free-form version
// string in order and parses them as an integer, so "v3.2.1" yields 321.
// Non-ASCII decimal digits (Unicode category Nd) count with their numeric
// value. A string without digits, or whose digits overflow int64, fails with
// etlerr.InvalidVersionFormat.
func CoerceVersion(s string) (int64, error) {
	var b strings.Builder
	for _, r := range s {
		if d, ok := digitValue(r); ok {
			b.WriteByte(byte('0' + d))
		}
	}
	if b.Len() == 0 {
		return 0, etlerr.New(etlerr.KindInvalidVersionFormat, "coerce version", "no digits in %q", s)
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, &etlerr.Error{
			Kind:  etlerr.KindInvalidVersionFormat,
			Op:    "coerce version",
			Msg:   strconv.Quote(s),
			Cause: err,
		}
	}
	return n, nil
}

// digitValue maps a Unicode decimal digit to 0-9. Every Nd range in the
// Unicode tables is a run of complete 0..9 sequences, so the offset from the
// range start modulo 10 is the digit's value.
func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	if r < 0x80 || !unicode.IsDigit(r) {
		return 0, false
	}
	for _, rg := range unicode.Nd.R16 {
		if r >= rune(rg.Lo) && r <= rune(rg.Hi) && rg.Stride == 1 {
			return int(r-rune(rg.Lo)) % 10, true
		}
	}
	for _, rg := range unicode.Nd.R32 {
		if r >= rune(rg.Lo) && r <= rune(rg.Hi) && rg.Stride == 1 {
			return int(r-rune(rg.Lo)) % 10, true
		}
	}
	return 0, false
}

// CoerceVersionField replaces the string value of Field with its
// CoerceVersion result. A failure aborts the whole batch.
type CoerceVersionField struct {
	Field string
}

func (c CoerceVersionField) Apply(in []records.Record) ([]records.Record, error) {
	out := make([]records.Record, len(in))
	for i, r := range in {
		v, present := r[c.Field]
		if !present {
			return nil, etlerr.New(etlerr.KindInvalidVersionFormat, "coerce "+c.Field, "field is missing")
		}
		s, ok := v.(string)
		if !ok {
			return nil, etlerr.New(etlerr.KindInvalidVersionFormat, "coerce "+c.Field, "want string, got %T", v)
		}
		n, err := CoerceVersion(s)
		if err != nil {
			return nil, err
		}
		cp := r.Clone()
		cp[c.Field] = n
		out[i] = cp
	}
	return out, nil
}

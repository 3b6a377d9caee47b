package builtin

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginetl/pkg/records"
)

func TestMaskIP_TableDriven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"192.168.1.23", "192.168.1.**"},
		{"10.0.0.1", "10.0.0.*"},
		{"255.255.255.255", "255.255.255.***"},
		{"localhost", "localhost"},
		{"", ""},
		{"1.2.3.", "1.2.3."},
		{".", "."},
		{"a.b", "a.*"},
		{"fe80::1", "fe80::1"},
		{"10.0.0.\u00e9", "10.0.0.*"},
		{"h\u00f4te.\u4e2d\u6587", "h\u00f4te.**"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MaskIP(tc.in))
		})
	}
}

func TestMaskDeviceID_TableDriven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"dev-abc-9f3k", "dev-abc-****"},
		{"593-47-5928", "593-47-****"},
		{"nodashes", "nodashes"},
		{"trailing-", "trailing-"},
		{"-x", "-*"},
		{"192.168.1.23", "192.168.1.23"},
		{"dev-\u00e9\u00e9", "dev-**"},
		{"d\u00e9v-abc-\U0001F600x", "d\u00e9v-abc-**"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MaskDeviceID(tc.in))
		})
	}
}

func TestProperty_MaskPreservesLengthAndMasksLastSegment(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	check := func(mask func(string) string, delim string) func(head []string, last string) bool {
		return func(head []string, last string) bool {
			s := strings.Join(append(head, last), delim)
			got := mask(s)
			if utf8.RuneCountInString(got) != utf8.RuneCountInString(s) {
				return false
			}
			i := strings.LastIndex(s, delim)
			if i < 0 {
				return got == s
			}
			suffix := got[i+1:]
			return got[:i+1] == s[:i+1] &&
				len(suffix) == utf8.RuneCountInString(s[i+1:]) &&
				strings.Trim(suffix, "*") == ""
		}
	}

	properties.Property("mask_ip keeps length and stars the last octet", prop.ForAll(
		check(MaskIP, "."),
		gen.SliceOf(gen.NumString()),
		gen.AlphaString(),
	))
	properties.Property("mask_ip counts characters in a non-ASCII last segment", prop.ForAll(
		check(MaskIP, "."),
		gen.SliceOf(gen.NumString()),
		gen.UnicodeString(unicode.Latin),
	))
	properties.Property("mask_id keeps length and stars the last segment", prop.ForAll(
		check(MaskDeviceID, "-"),
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))
	properties.Property("mask_id counts characters in a non-ASCII last segment", prop.ForAll(
		check(MaskDeviceID, "-"),
		gen.SliceOf(gen.UnicodeString(unicode.Han)),
		gen.UnicodeString(unicode.Greek),
	))
	properties.Property("strings without '.' pass through mask_ip", prop.ForAll(
		func(s string) bool { return MaskIP(s) == s },
		gen.AlphaString(),
	))
	properties.Property("strings without '-' pass through mask_id", prop.ForAll(
		func(s string) bool { return MaskDeviceID(s) == s },
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestMask_ApplyRenamesAndLeavesInputUntouched(t *testing.T) {
	t.Parallel()

	in := []records.Record{
		{"ip": "192.168.1.23", "user_id": "u1"},
		{"user_id": "u2"},
		{"ip": 42},
	}

	out, err := Mask{Field: "ip", As: "masked_ip", Fn: MaskIP}.Apply(in)
	require.NoError(t, err)

	assert.Equal(t, records.Record{"masked_ip": "192.168.1.**", "user_id": "u1"}, out[0])
	assert.Equal(t, records.Record{"user_id": "u2"}, out[1])
	assert.Equal(t, records.Record{"ip": 42}, out[2])
	assert.Equal(t, "192.168.1.23", in[0]["ip"], "input record must not be mutated")
}

func TestMask_ApplyInPlaceName(t *testing.T) {
	t.Parallel()

	out, err := Mask{Field: "device_id", Fn: MaskDeviceID}.Apply([]records.Record{{"device_id": "a-b"}})

	require.NoError(t, err)
	assert.Equal(t, records.Record{"device_id": "a-*"}, out[0])
}

package builtin

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginetl/pkg/records"
)

func TestNullSentinels_EverySentinelBecomesNil(t *testing.T) {
	t.Parallel()

	n := NewNullSentinels()
	for _, tok := range DefaultSentinels {
		t.Run("token_"+tok, func(t *testing.T) {
			t.Parallel()

			assert.Nil(t, n.Value(tok))
		})
	}
	assert.Nil(t, n.Value(math.NaN()), "float NaN stringifies to NaN")
}

func TestNullSentinels_NonSentinelsPassThrough(t *testing.T) {
	t.Parallel()

	n := NewNullSentinels()
	values := []any{
		"u1", "na", "Nan", "N/a", "   ", "none", "None", "null",
		int64(0), int64(321), json.Number("1.5"), true, 3.14,
	}
	for _, v := range values {
		assert.Equal(t, v, n.Value(v), "value %#v", v)
	}
	assert.Nil(t, n.Value(nil))
}

func TestNullSentinels_ApplyReturnsNewRecords(t *testing.T) {
	t.Parallel()

	in := []records.Record{{
		"user_id":     "",
		"device_type": "mobile",
		"locale":      "N/A",
		"masked_ip":   "NA",
		"app_version": int64(321),
	}}

	out, err := NewNullSentinels().Apply(in)
	require.NoError(t, err)

	assert.Equal(t, records.Record{
		"user_id":     nil,
		"device_type": "mobile",
		"locale":      nil,
		"masked_ip":   nil,
		"app_version": int64(321),
	}, out[0])
	assert.Equal(t, "", in[0]["user_id"], "input must not be mutated")
}

func TestNullSentinels_CustomTokens(t *testing.T) {
	t.Parallel()

	n := NewNullSentinels("-", "?")

	assert.Nil(t, n.Value("?"))
	assert.Equal(t, "NA", n.Value("NA"))
}

func TestProperty_NormalizeIsIdentityOutsideSentinelSet(t *testing.T) {
	t.Parallel()

	n := NewNullSentinels()
	set := map[string]bool{}
	for _, s := range DefaultSentinels {
		set[s] = true
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("value maps to nil iff its string form is a sentinel", prop.ForAll(
		func(s string) bool {
			got := n.Value(s)
			if set[s] {
				return got == nil
			}
			return got == s
		},
		gen.OneGenOf(gen.AnyString(), gen.OneConstOf(
			"", "nan", "NaN", "NaT", "#N/A", "NAN", " ", "  ", "N/A", "NA", "nat", "Na", "n/a",
		)),
	))
	properties.Property("normalizing twice equals normalizing once", prop.ForAll(
		func(s string) bool {
			r := records.Record{"f": s}
			once := n.Record(r)
			return assert.ObjectsAreEqual(once, n.Record(once))
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

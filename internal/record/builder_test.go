package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"loginetl/internal/etlerr"
	"loginetl/pkg/records"
)

func TestBuild_ScenarioRecord(t *testing.T) {
	t.Parallel()

	body := `{"user_id":"u1","device_type":"mobile","ip":"192.168.1.23","device_id":"dev-abc-9f3k","locale":"en-US","app_version":"v3.2.1"}`

	out, err := NewBuilder().Build([]byte(body))

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, records.Record{
		"user_id":          "u1",
		"device_type":      "mobile",
		"masked_ip":        "192.168.1.**",
		"masked_device_id": "dev-abc-****",
		"locale":           "en-US",
		"app_version":      int64(321),
	}, out[0])
}

func TestBuild_SentinelsBecomeNil(t *testing.T) {
	t.Parallel()

	body := `{"user_id":"","device_type":"N/A","ip":"NA","device_id":"nat","locale":"#N/A","app_version":"2.0"}`

	out, err := NewBuilder().Build([]byte(body))

	require.NoError(t, err)
	assert.Equal(t, records.Record{
		"user_id":          nil,
		"device_type":      nil,
		"masked_ip":        nil,
		"masked_device_id": nil,
		"locale":           nil,
		"app_version":      int64(20),
	}, out[0])
}

func TestBuild_MissingOptionalColumnsAreNil(t *testing.T) {
	t.Parallel()

	out, err := NewBuilder().Build([]byte(`{"ip":"10.1.2.3","device_id":"x-y","app_version":"7"}`))

	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, "10.1.2.*", "x-*", nil, int64(7)}, out[0].Row(Columns))
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want error
	}{
		{"not_json", `nope`, etlerr.MalformedPayload},
		{"array", `[{"ip":"1.2.3.4"}]`, etlerr.MalformedPayload},
		{"no_digits", `{"ip":"1.2.3.4","device_id":"a-b","app_version":"beta"}`, etlerr.InvalidVersionFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, err := NewBuilder().Build([]byte(tc.body))
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, out)
		})
	}
}

func TestBuild_CustomSentinels(t *testing.T) {
	t.Parallel()

	out, err := NewBuilder("unknown").Build([]byte(`{"ip":"1.2.3.4","device_id":"a-b","app_version":"1","locale":"unknown","user_id":""}`))

	require.NoError(t, err)
	assert.Nil(t, out[0]["locale"])
	assert.Equal(t, "", out[0]["user_id"])
}

func TestBuild_NonASCIIMasksKeepCharacterCount(t *testing.T) {
	t.Parallel()

	body := `{"ip":"10.0.0.\u00e9","device_id":"dev-\u00e9\u00e9","app_version":"1"}`

	out, err := NewBuilder().Build([]byte(body))

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.*", out[0][ColumnMaskedIP])
	assert.Equal(t, "dev-**", out[0][ColumnMaskedDeviceID])
}

func TestBuild_StoresStringsAsReceived(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	b := NewBuilder().WithLogger(zap.New(core))
	body := `{"ip":"1.2.3.4","device_id":"a-b","app_version":"1","user_id":"jose\u0301","locale":"N/A"}`

	out, err := b.Build([]byte(body))

	require.NoError(t, err)
	assert.Equal(t, "jose\u0301", out[0]["user_id"])
	assert.Nil(t, out[0]["locale"])

	warned := logs.FilterMessage("suspicious field value").All()
	require.Len(t, warned, 1, "sentinel locale must not be reported")
	assert.Equal(t, `field "user_id" is not NFC normalized; stored as received`, warned[0].ContextMap()["note"])
}

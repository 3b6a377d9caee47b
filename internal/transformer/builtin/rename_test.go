package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginetl/pkg/records"
)

func TestRename_MovesKeys(t *testing.T) {
	t.Parallel()

	in := []records.Record{{"ip": "1.2.3.*", "device_id": "a-*", "locale": "en-US"}}

	out, err := Rename{"ip": "masked_ip", "device_id": "masked_device_id", "absent": "x"}.Apply(in)

	require.NoError(t, err)
	assert.Equal(t, records.Record{
		"masked_ip":        "1.2.3.*",
		"masked_device_id": "a-*",
		"locale":           "en-US",
	}, out[0])
	assert.Contains(t, in[0], "ip")
}

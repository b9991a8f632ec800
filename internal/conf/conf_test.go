package conf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", input: `"1.5s"`, want: 1500 * time.Millisecond},
		{name: "minutes", input: `"5m"`, want: 5 * time.Minute},
		{name: "nanoseconds", input: `1000`, want: time.Microsecond},
		{name: "empty", input: `""`, want: 0},
		{name: "garbage", input: `"soon"`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.AsDuration())
		})
	}
}

func TestBootstrapScan(t *testing.T) {
	raw := `{
		"server": {"http": {"addr": ":8000", "timeout": "3s"}},
		"billing": {"internal_key": "k", "reset_batch_size": 200, "products": {"starter": "prod_s"}},
		"dodo": {"environment": "live_mode", "webhook_tolerance": "2m"}
	}`

	var bc Bootstrap
	require.NoError(t, json.Unmarshal([]byte(raw), &bc))

	assert.Equal(t, ":8000", bc.Server.HTTP.Addr)
	assert.Equal(t, 3*time.Second, bc.Server.HTTP.Timeout.AsDuration())
	assert.Equal(t, "k", bc.Billing.InternalKey)
	assert.Equal(t, 200, bc.Billing.ResetBatchSize)
	assert.Equal(t, "prod_s", bc.Billing.Products.Starter)
	assert.Equal(t, 2*time.Minute, bc.Dodo.WebhookTolerance.AsDuration())
	assert.Nil(t, bc.Data)

	var missing *Duration
	assert.Zero(t, missing.AsDuration())
}

package email

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOptions(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    SendOptions
		wantErr string
	}{
		{
			name: "nil options",
			raw:  nil,
			want: SendOptions{},
		},
		{
			name: "all fields",
			raw: map[string]any{
				"ccEmail":                "cc@example.com",
				"bccEmail":               "bcc@example.com",
				"replyTo":                "reply@example.com",
				"attachments":            "a,b",
				"allowUnauthorizedCerts": true,
				"batching":               map[string]any{"batchSize": float64(10), "batchInterval": float64(250)},
			},
			want: SendOptions{
				CCEmail:                "cc@example.com",
				BCCEmail:               "bcc@example.com",
				ReplyTo:                "reply@example.com",
				Attachments:            "a,b",
				AllowUnauthorizedCerts: true,
				Batching:               &BatchingConfig{BatchSize: 10, BatchIntervalMs: 250},
			},
		},
		{
			name: "batching defaults",
			raw:  map[string]any{"batching": map[string]any{}},
			want: SendOptions{Batching: &BatchingConfig{BatchSize: DefaultBatchSize, BatchIntervalMs: DefaultBatchIntervalMs}},
		},
		{
			name: "partial batching keeps default interval",
			raw:  map[string]any{"batching": map[string]any{"batchSize": json.Number("5")}},
			want: SendOptions{Batching: &BatchingConfig{BatchSize: 5, BatchIntervalMs: DefaultBatchIntervalMs}},
		},
		{
			name:    "unknown option",
			raw:     map[string]any{"priority": "high"},
			wantErr: `unknown option "priority"`,
		},
		{
			name:    "unknown batching field",
			raw:     map[string]any{"batching": map[string]any{"batchIntervalMs": float64(5)}},
			wantErr: `unknown batching field "batchIntervalMs"`,
		},
		{
			name:    "fractional batch size",
			raw:     map[string]any{"batching": map[string]any{"batchSize": 2.5}},
			wantErr: "expected an integer",
		},
		{
			name:    "options must be an object",
			raw:     "cc@example.com",
			wantErr: "expected an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeOptions(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSendOptions_EffectiveBatching(t *testing.T) {
	assert.Equal(t, BatchingConfig{BatchSize: 1, BatchIntervalMs: 0}, SendOptions{}.EffectiveBatching())

	opts := SendOptions{Batching: &BatchingConfig{BatchSize: 3, BatchIntervalMs: 20}}
	assert.Equal(t, BatchingConfig{BatchSize: 3, BatchIntervalMs: 20}, opts.EffectiveBatching())
}

func TestBatchingConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BatchingConfig
		wantErr bool
	}{
		{name: "disabled", cfg: BatchingConfig{BatchSize: -1, BatchIntervalMs: 0}},
		{name: "defaults", cfg: BatchingConfig{BatchSize: DefaultBatchSize, BatchIntervalMs: DefaultBatchIntervalMs}},
		{name: "size below -1", cfg: BatchingConfig{BatchSize: -2}, wantErr: true},
		{name: "negative interval", cfg: BatchingConfig{BatchSize: 1, BatchIntervalMs: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBatchingConfig_ShouldPause(t *testing.T) {
	paused := func(cfg BatchingConfig, n int) []int {
		var out []int
		for i := 0; i < n; i++ {
			if cfg.shouldPause(i) {
				out = append(out, i)
			}
		}
		return out
	}

	assert.Equal(t, []int{2, 4}, paused(BatchingConfig{BatchSize: 2, BatchIntervalMs: 100}, 5))
	assert.Equal(t, []int{1, 2, 3}, paused(BatchingConfig{BatchSize: 1, BatchIntervalMs: 100}, 4))
	assert.Nil(t, paused(BatchingConfig{BatchSize: -1, BatchIntervalMs: 100}, 10))
	assert.Nil(t, paused(BatchingConfig{BatchSize: 0, BatchIntervalMs: 100}, 10))
	assert.Nil(t, paused(BatchingConfig{BatchSize: 2, BatchIntervalMs: 0}, 10))

	assert.Equal(t, 1500*time.Millisecond, BatchingConfig{BatchIntervalMs: 1500}.Interval())
}

func TestDecodeCredentials(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		want    Credentials
		wantErr string
	}{
		{
			name: "starttls default port",
			raw:  map[string]any{"host": "smtp.example.com", "user": "ops", "password": "pw"},
			want: Credentials{Provider: ProviderSMTP, Host: "smtp.example.com", Port: 587, User: "ops", Password: "pw"},
		},
		{
			name: "implicit tls default port",
			raw:  map[string]any{"host": "smtp.example.com", "secure": true},
			want: Credentials{Provider: ProviderSMTP, Host: "smtp.example.com", Port: 465, Secure: true},
		},
		{
			name: "string values from env or templates",
			raw:  map[string]any{"host": "smtp.example.com", "port": "2525", "secure": "false"},
			want: Credentials{Provider: ProviderSMTP, Host: "smtp.example.com", Port: 2525},
		},
		{
			name: "resend provider",
			raw:  map[string]any{"provider": "resend", "apiKey": "re_123"},
			want: Credentials{Provider: ProviderResend, APIKey: "re_123"},
		},
		{
			name:    "smtp requires host",
			raw:     map[string]any{"port": float64(25)},
			wantErr: "invalid credentials",
		},
		{
			name:    "resend requires api key",
			raw:     map[string]any{"provider": "resend"},
			wantErr: "apiKey",
		},
		{
			name:    "unknown provider",
			raw:     map[string]any{"provider": "carrier-pigeon", "host": "x"},
			wantErr: "provider",
		},
		{
			name:    "port out of range",
			raw:     map[string]any{"host": "smtp.example.com", "port": float64(70000)},
			wantErr: "port",
		},
		{
			name:    "bad port type",
			raw:     map[string]any{"host": "smtp.example.com", "port": true},
			wantErr: `credential field "port"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCredentials(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoercion(t *testing.T) {
	s, err := asString(float64(42))
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	_, err = asString([]any{"a"})
	assert.Error(t, err)

	n, err := asInt(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	b, err := asBool("TRUE")
	require.NoError(t, err)
	assert.True(t, b)

	_, err = asBool("maybe")
	assert.Error(t, err)
}

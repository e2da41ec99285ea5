package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:50051", cfg.GRPCAddr())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, 10*time.Second, cfg.GRPCRequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, int64(1<<20), cfg.HTTPBodyLimitBytes)
	assert.True(t, cfg.DBAutoMigrate)
	assert.False(t, cfg.OTelEnabled)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:5174"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.HTTPTrustedProxies)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BOOKING_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("BOOKING_DATABASE_DRIVER", "Memory")
	t.Setenv("BOOKING_STORE_TIMEOUT", "250ms")
	t.Setenv("BOOKING_CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("BOOKING_RATELIMIT_PER_MINUTE", "5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BOOKING_HTTP_TRUSTED_PROXIES", "10.1.2.3/8, 192.168.0.9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.GRPCAddr())
	assert.Equal(t, DriverMemory, cfg.DatabaseDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 5, cfg.RateLimitPerMinute)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.0.9/32"),
	}, cfg.HTTPTrustedProxies)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{name: "duration", key: "BOOKING_SHUTDOWN_TIMEOUT", value: "soon"},
		{name: "driver", key: "BOOKING_DATABASE_DRIVER", value: "sqlite"},
		{name: "sample ratio", key: "BOOKING_OTEL_SAMPLE_RATIO", value: "2"},
		{name: "trusted proxy", key: "BOOKING_HTTP_TRUSTED_PROXIES", value: "proxy.internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

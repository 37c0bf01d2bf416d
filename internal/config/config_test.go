package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("APP_PORT", "8090")
	t.Setenv("BACKEND_BASE_URL", "http://backend.local/")
	t.Setenv("MAX_SELECTION", "6")
	t.Setenv("PAYMENT_POLL_INTERVAL", "7s")
	t.Setenv("SEAT_MAP_REFRESH_INTERVAL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "http://backend.local", cfg.BackendBaseURL)
	assert.Equal(t, 6, cfg.MaxSelection)
	assert.Equal(t, 7*time.Second, cfg.PaymentPoll)
	assert.Equal(t, 3*time.Second, cfg.SeatMapRefresh, "unparseable durations fall back to the default")
	assert.Equal(t, 2*time.Second, cfg.RedirectDelay)
	assert.True(t, cfg.IsDev())
}

func TestLoadSeatMapCacheConfig(t *testing.T) {
	tests := []struct {
		name        string
		ttl         string
		refresh     time.Duration
		wantEnabled bool
		wantTTL     time.Duration
	}{
		{name: "default", refresh: 3 * time.Second, wantEnabled: true, wantTTL: time.Second},
		{name: "ttl clamped below refresh", ttl: "5s", refresh: 3 * time.Second, wantEnabled: true, wantTTL: 1500 * time.Millisecond},
		{name: "zero ttl disables", ttl: "0s", refresh: 3 * time.Second, wantEnabled: false, wantTTL: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.ttl != "" {
				t.Setenv("SEATMAP_CACHE_TTL", tc.ttl)
			}
			cfg := LoadSeatMapCacheConfig(tc.refresh)
			assert.Equal(t, tc.wantEnabled, cfg.Enabled)
			assert.Equal(t, tc.wantTTL, cfg.TTL)
		})
	}
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()

	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, ClassifierGemini, cfg.Classifier.Backend)
	assert.Equal(t, 30*time.Second, cfg.Classifier.Timeout)
	assert.InDelta(t, 0.5, cfg.Classifier.MinConfidence, 1e-9)
	assert.InDelta(t, 50, cfg.Stations.SearchRadiusKm, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Stations.Timeout)
	assert.Equal(t, int64(10*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/gif", "image/webp"}, cfg.Uploads.AllowedImageMIMEs)
	assert.Equal(t, 5*time.Minute, cfg.Insights.CacheTTL)
	assert.Equal(t, "guest@railway.local", cfg.Bootstrap.GuestEmail)
	assert.True(t, cfg.Bootstrap.AnonymousSubmission)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CLASSIFIER_BACKEND", "ML")
	t.Setenv("ML_MIN_CONFIDENCE", "1.7")
	t.Setenv("STATION_SEARCH_RADIUS_KM", "-3")
	t.Setenv("JWT_EXPIRATION", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ADMIN_EMAIL", "  Admin@Example.COM ")
	t.Setenv("ANONYMOUS_SUBMISSIONS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ClassifierML, cfg.Classifier.Backend)
	assert.InDelta(t, 0.5, cfg.Classifier.MinConfidence, 1e-9)
	assert.InDelta(t, 50, cfg.Stations.SearchRadiusKm, 1e-9)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "admin@example.com", cfg.Bootstrap.AdminEmail)
	assert.False(t, cfg.Bootstrap.AnonymousSubmission)
}

package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRUSTED_SENDER_DOMAINS", "leadvendor.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, []string{"leadvendor.com"}, cfg.TrustedSenderDomains)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 5*time.Second, cfg.PersistTimeout)
	assert.Equal(t, 15*time.Second, cfg.TxTimeout)
	assert.Equal(t, "none", cfg.ArchiveBackend)
	assert.False(t, cfg.InboundSMTPEnabled)
	assert.Empty(t, cfg.IntakeAPIToken)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TRUSTED_SENDER_DOMAINS", " leadvendor.com, ,bookings.example.org ")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("DEFAULT_TIMEZONE", "America/New_York")
	t.Setenv("PERSIST_TIMEOUT", "750ms")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("INBOUND_SMTP_ADDR", ":2525")
	t.Setenv("INBOUND_SMTP_DOMAIN", "intake.example.com")
	t.Setenv("ARCHIVE_S3_FORCE_PATH_STYLE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"leadvendor.com", "bookings.example.org"}, cfg.TrustedSenderDomains)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "America/New_York", cfg.DefaultTimezone)
	assert.Equal(t, 750*time.Millisecond, cfg.PersistTimeout)
	assert.False(t, cfg.MigrateOnStart)
	assert.True(t, cfg.InboundSMTPEnabled)
	assert.True(t, cfg.ArchiveS3ForcePathStyle)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port", "PORT", "http"},
		{"store backend", "STORE_BACKEND", "sqlite"},
		{"timezone", "DEFAULT_TIMEZONE", "Mars/Olympus"},
		{"body limit", "MAX_BODY_BYTES", "-1"},
		{"persist timeout", "PERSIST_TIMEOUT", "soon"},
		{"negative tx timeout", "TX_TIMEOUT", "-5s"},
		{"migrate flag", "MIGRATE_ON_START", "maybe"},
		{"trusted domains", "TRUSTED_SENDER_DOMAINS", " , "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRUSTED_SENDER_DOMAINS", "leadvendor.com")
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

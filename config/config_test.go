package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "STORE_DRIVER", "SQLITE_PATH", "REDIS_ADDR", "REDIS_DB", "CIVICRM_GROUP",
		"CIVICRM_TIMEOUT", "CIVICRM_TEST_TIMEOUT", "IGNORE_FIELDS", "LOG_LEVEL", "HOOK_SECRET",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "civicf7.db", cfg.Store.SQLitePath)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "Pending Applications", cfg.CiviCRM.Group)
	assert.Equal(t, 30*time.Second, cfg.CiviCRM.Timeout)
	assert.Equal(t, 10*time.Second, cfg.CiviCRM.TestTimeout)
	assert.Equal(t, []string{"_wpcf7*", "_wpnonce", "g-recaptcha-response"}, cfg.IgnoreFields)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CIVICRM_TIMEOUT", "45")
	t.Setenv("CIVICRM_TEST_TIMEOUT", "1500ms")
	t.Setenv("IGNORE_FIELDS", " _wpcf7*, ,honeypot ")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 45*time.Second, cfg.CiviCRM.Timeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.CiviCRM.TestTimeout)
	assert.Equal(t, []string{"_wpcf7*", "honeypot"}, cfg.IgnoreFields)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	t.Setenv("CIVICRM_TIMEOUT", "-5s")
	t.Setenv("LOG_LEVEL", "loud")

	cfg := Load()
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 30*time.Second, cfg.CiviCRM.Timeout)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestConfig_CoreArgs(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CIVICRM_GROUP", "Volunteers")

	args := Load().CoreArgs(zerolog.Nop())
	assert.Equal(t, "memory", args.Driver)
	assert.Empty(t, args.Redis.Addr)
	assert.Equal(t, "Volunteers", args.Group)
	assert.Equal(t, 30*time.Second, args.CallerTimeout)
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"civicf7/bridge"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Port         string
	LogLevel     string
	IgnoreFields []string
	Store        StoreConfig
	Redis        RedisConfig
	CiviCRM      CiviCRMConfig
	Admin        AdminConfig
	HookSecret   string
}

type StoreConfig struct {
	Driver        string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// RedisConfig is optional; an empty Addr keeps transients and outcomes in
// process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CiviCRMConfig struct {
	Group       string
	Timeout     time.Duration
	TestTimeout time.Duration
}

type AdminConfig struct {
	JWTSecret    string
	User         string
	PasswordHash string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "3000"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		IgnoreFields: getEnvList("IGNORE_FIELDS", bridge.DefaultIgnoredFields),
		HookSecret:   getEnv("HOOK_SECRET", ""),
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			SQLitePath:    getEnv("SQLITE_PATH", "civicf7.db"),
			MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: getEnv("MONGO_DATABASE", "civicf7"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		CiviCRM: CiviCRMConfig{
			Group:       getEnv("CIVICRM_GROUP", "Pending Applications"),
			Timeout:     getEnvDuration("CIVICRM_TIMEOUT", 30*time.Second),
			TestTimeout: getEnvDuration("CIVICRM_TEST_TIMEOUT", 10*time.Second),
		},
		Admin: AdminConfig{
			JWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
			User:         getEnv("ADMIN_USER", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
	}
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// CoreArgs maps the configuration onto the backends of a bridge.Core.
func (c *Config) CoreArgs(logger zerolog.Logger) bridge.CoreBackendArgs {
	return bridge.CoreBackendArgs{
		Driver:     c.Store.Driver,
		SQLitePath: c.Store.SQLitePath,
		Mongo: bridge.MongoArgs{
			URI:      c.Store.MongoURI,
			Database: c.Store.MongoDatabase,
		},
		Redis: bridge.RedisArgs{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			Db:       c.Redis.DB,
		},
		MaxOutcomes:   1000,
		CallerTimeout: c.CiviCRM.Timeout,
		TestTimeout:   c.CiviCRM.TestTimeout,
		Group:         c.CiviCRM.Group,
		IgnoreFields:  c.IgnoreFields,
		Logger:        logger,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or a plain number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"civicf7/bridge"
	"civicf7/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config

	storeDriver   string
	sqlitePath    string
	mongoURI      string
	mongoDatabase string
	redisAddr     string
	redisPassword string
	redisDB       int
	groupName     string
	logLevel      string
	opTimeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "civicf7",
	Short:        "Operator CLI for the Contact Form 7 to CiviCRM relay",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cfg = loadConfig(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Settings store driver: sqlite, mongo or memory (env STORE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "SQLite database path (env SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI (env MONGO_URI)")
	rootCmd.PersistentFlags().StringVar(&mongoDatabase, "mongo-db", "", "MongoDB database (env MONGO_DATABASE)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "Redis address; empty keeps transients in memory (env REDIS_ADDR)")
	rootCmd.PersistentFlags().StringVar(&redisPassword, "redis-password", "", "Redis password (env REDIS_PASSWORD)")
	rootCmd.PersistentFlags().IntVar(&redisDB, "redis-db", 0, "Redis database (env REDIS_DB)")
	rootCmd.PersistentFlags().StringVar(&groupName, "group", "", "CiviCRM group new contacts join (env CIVICRM_GROUP)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (env LOG_LEVEL)")
	rootCmd.PersistentFlags().DurationVar(&opTimeout, "timeout", 45*time.Second, "Operation timeout")

	rootCmd.AddCommand(newActivateCmd())
	rootCmd.AddCommand(newDeactivateCmd())
	rootCmd.AddCommand(newUninstallCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newFormsCmd())
	rootCmd.AddCommand(newRelayCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newHashPasswordCmd())
}

// loadConfig reads the environment and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command) *config.Config {
	c := config.Load()
	flags := cmd.Flags()
	if flags.Changed("store") {
		c.Store.Driver = storeDriver
	}
	if flags.Changed("sqlite-path") {
		c.Store.SQLitePath = sqlitePath
	}
	if flags.Changed("mongo-uri") {
		c.Store.MongoURI = mongoURI
	}
	if flags.Changed("mongo-db") {
		c.Store.MongoDatabase = mongoDatabase
	}
	if flags.Changed("redis-addr") {
		c.Redis.Addr = redisAddr
	}
	if flags.Changed("redis-password") {
		c.Redis.Password = redisPassword
	}
	if flags.Changed("redis-db") {
		c.Redis.DB = redisDB
	}
	if flags.Changed("group") {
		c.CiviCRM.Group = groupName
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	return c
}

// newLogger writes to stderr so command output on stdout stays parseable.
func newLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(cfg.Level()).With().Timestamp().Logger()
}

func newCore(ctx context.Context) (*bridge.Core, error) {
	args := cfg.CoreArgs(newLogger())
	args.ConnectTimeout = opTimeout
	return bridge.NewCore(ctx, args)
}

func printJSON(label string, value any) {
	fmt.Printf("%s: %v\n", label, value)
}

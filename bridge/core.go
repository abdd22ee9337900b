package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	DefaultOutcomeQueueKey = "civicf7_outcomes"
	transientPrefix        = "civicf7:"
)

type RedisArgs struct {
	Addr     string // Empty keeps transients and outcomes in process memory.
	Username string
	Password string
	Db       int
}

type MongoArgs struct {
	URI      string
	Database string
}

// CoreBackendArgs configures the stores, caches and remote client behind a
// Core.
type CoreBackendArgs struct {
	Driver          string // One of StoreSQLite, StoreMongo or StoreMemory.
	SQLitePath      string
	Mongo           MongoArgs
	Redis           RedisArgs
	OutcomeQueueKey string
	MaxOutcomes     int64         // Outcomes kept for observers; 0 keeps all.
	ConnectTimeout  time.Duration // Upper bound for startup connection retries.
	Caller          Caller        // Defaults to an HTTPCaller.
	CallerTimeout   time.Duration
	TestTimeout     time.Duration
	Group           string
	IgnoreFields    []string
	Now             Clock
	Logger          zerolog.Logger
}

func checkAndDefaultCoreArgs(args CoreBackendArgs) (CoreBackendArgs, error) {
	switch args.Driver {
	case "":
		args.Driver = StoreSQLite
	case StoreSQLite, StoreMongo, StoreMemory:
	default:
		return args, fmt.Errorf("%w: unknown store driver %q", ErrMissingPrerequisite, args.Driver)
	}
	if args.Driver == StoreSQLite && args.SQLitePath == "" {
		args.SQLitePath = "civicf7.db"
	}
	if args.Driver == StoreMongo && args.Mongo.Database == "" {
		args.Mongo.Database = "civicf7"
	}
	if args.OutcomeQueueKey == "" {
		args.OutcomeQueueKey = DefaultOutcomeQueueKey
	}
	if args.MaxOutcomes < 0 {
		args.MaxOutcomes = 0
	}
	if args.ConnectTimeout <= 0 {
		args.ConnectTimeout = 30 * time.Second
	}
	if args.Now == nil {
		args.Now = time.Now
	}
	return args, nil
}

// CoreStatus is the reachability of each backing component.
type CoreStatus struct {
	Driver     string `json:"driver"`
	StoreState string `json:"store"`
	CacheState string `json:"cache"`
}

func (s CoreStatus) Healthy() bool {
	return s.StoreState == "running" && s.CacheState != "down"
}

// Render prints the status as a table.
func (s CoreStatus) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Component", "State"})
	table.Append([]string{"store (" + s.Driver + ")", s.StoreState})
	table.Append([]string{"cache", s.CacheState})
	table.Render()
}

// Core assembles every component of the integration over one set of
// backends. The web server and the operator CLI both run on a Core.
type Core struct {
	Store      SettingsStore
	Transients TransientCache
	Queue      OutcomeQueue
	Hooks      *Hooks
	Admin      *Admin
	Panel      *Panel
	Relay      *Relay
	Lifecycle  *Lifecycle

	driver  string
	redis   *RedisCache
	closers []func() error
	logger  zerolog.Logger
}

// NewCore connects the configured backends, retrying with exponential
// backoff until ConnectTimeout, and wires the components on top of them.
func NewCore(ctx context.Context, args CoreBackendArgs) (*Core, error) {
	args, err := checkAndDefaultCoreArgs(args)
	if err != nil {
		return nil, err
	}

	core := &Core{driver: args.Driver, logger: args.Logger}
	if err := core.openStore(ctx, args); err != nil {
		_ = core.Shutdown()
		return nil, err
	}
	if err := core.openCache(ctx, args); err != nil {
		_ = core.Shutdown()
		return nil, err
	}

	caller := args.Caller
	if caller == nil {
		caller = NewHTTPCaller(HTTPCallerArgs{Timeout: args.CallerTimeout, Logger: args.Logger})
	}

	filter, err := NewFieldFilter(args.IgnoreFields...)
	if err != nil {
		_ = core.Shutdown()
		return nil, err
	}

	core.Hooks = NewHooks()
	core.Admin, err = NewAdmin(AdminArgs{
		Store:       core.Store,
		Transients:  core.Transients,
		Caller:      caller,
		TestTimeout: args.TestTimeout,
		Logger:      args.Logger,
	})
	if err != nil {
		_ = core.Shutdown()
		return nil, err
	}
	core.Panel = NewPanel(core.Store, args.Now, args.Logger)
	core.Relay, err = NewRelay(RelayArgs{
		Store:    core.Store,
		Caller:   caller,
		Hooks:    core.Hooks,
		Recorder: &OutcomeRecorder{Queue: core.Queue, Log: args.Logger},
		Filter:   filter,
		Group:    args.Group,
		Now:      args.Now,
		Logger:   args.Logger,
	})
	if err != nil {
		_ = core.Shutdown()
		return nil, err
	}
	core.Lifecycle = NewLifecycle(core.Store, core.Transients, args.Logger)
	return core, nil
}

func (core *Core) openStore(ctx context.Context, args CoreBackendArgs) error {
	switch args.Driver {
	case StoreMemory:
		core.Store = NewMemoryStore()
		core.Transients = NewMemoryTransients(args.Now)

	case StoreSQLite:
		store, err := OpenSQLiteStore(args.SQLitePath, args.Now)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		core.Store = store
		core.Transients = store
		core.closers = append(core.closers, store.Close)

	case StoreMongo:
		var client *mongo.Client
		err := connectWithRetry(ctx, args, "mongo", func() error {
			c, err := mongo.Connect(ctx, options.Client().ApplyURI(args.Mongo.URI))
			if err != nil {
				return err
			}
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := c.Ping(pctx, nil); err != nil {
				_ = c.Disconnect(context.Background())
				return err
			}
			client = c
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		core.closers = append(core.closers, func() error { return client.Disconnect(context.Background()) })

		store, err := NewMongoStore(ctx, client, args.Mongo.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize mongo store: %w", err)
		}
		core.Store = store
		core.Transients = NewMemoryTransients(args.Now)
	}
	return nil
}

func (core *Core) openCache(ctx context.Context, args CoreBackendArgs) error {
	if args.Redis.Addr == "" {
		core.Queue = NewInMemoryOutcomeQueue(int(args.MaxOutcomes))
		return nil
	}

	err := connectWithRetry(ctx, args, "redis", func() error {
		cache, err := NewRedis(ctx, RedisConfig{
			Addr:        args.Redis.Addr,
			Username:    args.Redis.Username,
			Password:    args.Redis.Password,
			Db:          args.Redis.Db,
			PingTimeout: 5 * time.Second,
			Logger:      args.Logger,
		})
		if err != nil {
			return err
		}
		core.redis = cache
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	core.closers = append(core.closers, func() error { core.redis.Shutdown(); return nil })

	core.Transients = NewRedisTransients(core.redis, transientPrefix)
	core.Queue = NewRedisOutcomeQueue(core.redis, args.OutcomeQueueKey, args.MaxOutcomes)
	return nil
}

func connectWithRetry(ctx context.Context, args CoreBackendArgs, name string, op func() error) error {
	connectBackoff := backoff.NewExponentialBackOff()
	connectBackoff.InitialInterval = 100 * time.Millisecond
	connectBackoff.MaxInterval = 1 * time.Second
	connectBackoff.MaxElapsedTime = args.ConnectTimeout

	return backoff.RetryNotify(op, backoff.WithContext(connectBackoff, ctx), func(err error, wait time.Duration) {
		args.Logger.Warn().Err(err).Str("backend", name).Dur("retry_in", wait).Msg("backend not ready")
	})
}

// Status pings the store and, when configured, Redis concurrently.
func (core *Core) Status(ctx context.Context) CoreStatus {
	status := CoreStatus{Driver: core.driver, StoreState: "running", CacheState: "memory"}

	var g errgroup.Group
	g.Go(func() error {
		if err := core.Store.Ping(ctx); err != nil {
			status.StoreState = "down"
			return err
		}
		return nil
	})
	if core.redis != nil {
		status.CacheState = "running"
		g.Go(func() error {
			if err := core.redis.Ping(ctx); err != nil {
				status.CacheState = "down"
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		core.logger.Warn().Err(err).Msg("backend health check failed")
	}
	return status
}

// WatchStatus logs a status table whenever a backend changes state.
func (core *Core) WatchStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := CoreStatus{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := core.Status(ctx)
			if status != last {
				core.logger.Info().Msg("Backend Component Status")
				status.Render(core.logger)
				last = status
			}
		}
	}
}

// Shutdown releases every backend connection in reverse opening order.
func (core *Core) Shutdown() error {
	var errs []error
	for i := len(core.closers) - 1; i >= 0; i-- {
		if err := core.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	core.closers = nil
	return errors.Join(errs...)
}

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ogulcanaydogan/finalert/internal/config"
	"github.com/ogulcanaydogan/finalert/pkg/alerts"
	"github.com/ogulcanaydogan/finalert/pkg/clock"
	"github.com/ogulcanaydogan/finalert/pkg/metrics"
	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/notify"
	"github.com/ogulcanaydogan/finalert/pkg/rules"
	"github.com/ogulcanaydogan/finalert/pkg/runlock"
	"github.com/ogulcanaydogan/finalert/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "finalert",
	Short: "finalert - financial alert rules and in-app notifications",
	Long: `finalert evaluates alert rules against the invoice and petty cash ledgers,
stores the resulting notifications for users, and serves them over an HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.finalert/config.yaml)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger builds a zap logger writing to stderr and, when logging.file is
// set, to a size-rotated file.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Logging.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)}
	if cfg.Logging.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func initStore(cfg *config.Config) (*storage.SQL, error) {
	return storage.Open(cfg.Storage.Driver, cfg.DSN())
}

func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

func initMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

func initLocker(cfg *config.Config, store storage.LockStore) (runlock.Locker, func(), error) {
	switch cfg.Check.LockBackend {
	case runlock.BackendSQL:
		return runlock.NewSQLLocker(store, clock.System{}), func() {}, nil
	case runlock.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return runlock.NewRedisLocker(client, cfg.Redis.KeyPrefix), func() { _ = client.Close() }, nil
	case runlock.BackendNone:
		return runlock.Noop{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Check.LockBackend)
	}
}

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *storage.SQL
	metrics *metrics.Metrics
	manager *notify.Manager
	runner  *notify.Runner
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// initApp loads config and wires storage, rules, delivery, locking and metrics.
func initApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, err := initStore(cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	a.closers = append(a.closers, func() { _ = logger.Sync() }, func() { _ = store.Close() })

	locker, closeLocker, err := initLocker(cfg, store)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeLocker)

	a.metrics = initMetrics(cfg)
	dispatcher := alerts.NewDispatcher(initNotifiers(cfg), model.Priority(cfg.Alerts.MinPriority), logger)
	engine := rules.NewEngine(rules.NewDefaultRegistry(), store)

	a.manager = notify.NewManager(store, engine, logger,
		notify.WithDedupWindow(cfg.Check.DedupWindow),
		notify.WithMetrics(a.metrics),
		notify.WithDispatcher(dispatcher),
	)
	a.runner = notify.NewRunner(a.manager, locker, cfg.Check.LockKey, cfg.Check.LockTTL, logger).
		WithCleanup(cfg.Check.Cleanup)

	return a, nil
}

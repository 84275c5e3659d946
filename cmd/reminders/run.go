package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forkcast/internal/api"
	"forkcast/internal/audio"
	"forkcast/internal/config"
	"forkcast/internal/dispatch"
	"forkcast/internal/ledger"
	"forkcast/internal/metrics"
	"forkcast/internal/notify"
	"forkcast/internal/remotesync"
	"forkcast/internal/scheduler"
	"forkcast/internal/settings"
	"forkcast/internal/storage"
	"forkcast/internal/toast"
	"forkcast/internal/vclock"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
)

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, &logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	keys := storage.NewKeys(cfg.Storage.Namespace)
	m := metrics.New("forkcast", prometheus.DefaultRegisterer)
	clock := vclock.New(cfg.Clock.UTCOffsetHours, nil)
	settingsStore := settings.NewStore(store, keys, &logger)
	ledgerStore := ledger.NewStore(store, keys, &logger)
	board := toast.NewBoard(cfg.Toast.Duration, cfg.Notifications.CalendarURL)

	sinks := []dispatch.Sink{dispatch.SoundSink{Player: newPlayer(cfg.Audio, &logger)}}
	if notifier := newNotifier(ctx, cfg, store, keys, &logger); notifier != nil {
		sinks = append(sinks, dispatch.NotificationSink{Notifier: notifier})
	}
	sinks = append(sinks, dispatch.ToastSink{Board: board})
	if cfg.SyncEnabled() {
		client := remotesync.NewClient(remotesync.Options{
			Endpoint:      cfg.Sync.Endpoint,
			APIKey:        cfg.Sync.APIKey,
			Timeout:       cfg.Sync.Timeout,
			RatePerMinute: cfg.Sync.RatePerMinute,
		}, m, &logger)
		defer client.Wait()
		sinks = append(sinks, dispatch.SyncSink{Client: client})
	}

	dispatcher := dispatch.New(m, &logger, sinks...)

	sched, err := scheduler.New(scheduler.Config{
		PollInterval:  cfg.Scheduler.PollInterval,
		Window:        cfg.Window(),
		MidnightReset: cfg.Scheduler.MidnightReset,
	}, clock, settingsStore, ledgerStore, dispatcher, m, &logger)
	if err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()

	opts := api.Options{
		Harness:  scheduler.NewController(sched),
		Settings: settingsStore,
		Toasts:   board,
		Storage:  store,
	}
	if cfg.Server.PrometheusEnabled {
		opts.Metrics = promhttp.Handler()
	}

	logger.Info().
		Str("zone", clock.Location().String()).
		Str("storage", cfg.Storage.Driver).
		Int("channels", len(sinks)).
		Msg("meal reminders started")

	return api.New(opts, &logger).Run(ctx, cfg.Server.Port)
}

func newLogger(cfg config.Log) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (storage.Store, error) {
	redisOpts := storage.RedisOptions{
		Address:  cfg.Storage.Redis.Address,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	}

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverRedis:
		store, err := storage.NewRedisStore(ctx, redisOpts)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverFailover:
		fallback, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		primary, err := storage.NewRedisStore(ctx, redisOpts)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable at startup, starting on sqlite fallback")
			primary = storage.NewRedisStoreFromClient(storage.NewRedisClient(redisOpts))
		}
		return storage.NewFailoverStore(primary, fallback, logger), nil
	default:
		store, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func newPlayer(cfg config.Audio, logger *zerolog.Logger) audio.Player {
	if !cfg.Enabled {
		return audio.Nop{}
	}
	clip := audio.DefaultClip()
	if cfg.ClipPath != "" {
		data, err := os.ReadFile(cfg.ClipPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.ClipPath).Msg("could not read audio clip, using built-in chime")
		} else {
			clip = data
		}
	}
	player, err := audio.NewOtoPlayer(clip, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("audio disabled")
		return audio.Nop{}
	}
	return player
}

func newNotifier(ctx context.Context, cfg *config.Config, store storage.Store, keys storage.Keys, logger *zerolog.Logger) *notify.TelegramNotifier {
	if !cfg.TelegramEnabled() {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Notifications.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram unavailable, system notifications disabled")
		return nil
	}

	n := notify.NewTelegramNotifier(bot, cfg.Notifications.Telegram.ChatID, cfg.Notifications.CalendarURL,
		notify.NewPermissionStore(store, keys), logger)
	perm, err := n.RequestPermission(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("could not record notification permission")
	}
	logger.Info().Str("permission", string(perm)).Msg("system notifications configured")
	return n
}

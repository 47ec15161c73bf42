package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"klemz/internal/audit"
	"klemz/internal/booking"
	"klemz/internal/bot"
	"klemz/internal/config"
	"klemz/internal/directory"
	"klemz/internal/draft"
	"klemz/internal/events"
	"klemz/internal/gateway"
	"klemz/internal/ledger"
	"klemz/internal/metrics"
	"klemz/internal/models"
	"klemz/internal/selector"
	"klemz/internal/session"
	"klemz/internal/storage"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("KLEMZ_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}
	if cfg.API.BaseURL == "" {
		logger.Fatal().Msg("set api.base_url in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable state: redis primary, sqlite fallback.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	sqliteKV, err := storage.NewSQLiteKV(cfg.Database.StatePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open state db error")
	}
	defer sqliteKV.Close()
	kv := storage.NewFailoverKV(storage.NewRedisKV(rdb, "klemz"), sqliteKV, &logger)

	bus := events.NewBus()

	sessions := session.NewManager(kv, bus, &logger)
	if cfg.Session.AuthToken != "" && cfg.Session.UserID != "" {
		err = sessions.SetCredentials(ctx, cfg.Session.AuthToken, models.User{
			ID:       cfg.Session.UserID,
			FullName: cfg.Session.UserName,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("seeding session failed")
		}
	}

	drafts := draft.NewStore(kv, &logger)
	drafts.WatchSessions(bus)

	client := gateway.NewClient(cfg.API.BaseURL, sessions, &logger)
	dir := directory.New(client, &logger)
	dir.WatchBookings(bus)

	sel := selector.New(drafts, &logger)
	confirmer := booking.NewConfirmer(client, drafts, sessions, bus, &logger)
	ledg := ledger.New(client, bus, &logger)

	trail, err := audit.NewTrail(cfg.Database.AuditPath, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open audit db error")
	}
	defer trail.Close()
	trail.Watch(bus)

	var payments *gateway.PaymentClient
	if cfg.Payment.Enabled {
		payments = gateway.NewPaymentClient(cfg.Payment.BaseURL, cfg.Payment.SecretKey)
	}

	b, err := bot.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, bot.Deps{
		Directory:      dir,
		Selector:       sel,
		Confirmer:      confirmer,
		Ledger:         ledg,
		Sessions:       sessions,
		Offerings:      client,
		Payments:       payments,
		BookingDay:     cfg.BookingDay,
		AllowedUserIDs: cfg.Telegram.AllowedUserIDs,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}
	b.WatchReminders(ctx, bus)

	if cfg.Backup.Enabled {
		backup := storage.NewBackup(
			[]string{cfg.Database.StatePath, cfg.Database.AuditPath},
			cfg.Backup.Dir,
			time.Duration(cfg.Backup.IntervalHours)*time.Hour,
			cfg.Backup.RetentionDays,
			&logger,
		)
		go backup.Run(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, sqliteKV, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Msg("klemz booking bot started")
	b.Start(ctx)
}

func startHealthServer(ctx context.Context, port int, kv *storage.SQLiteKV, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := kv.Ping(ctxPing); err != nil {
			http.Error(w, "state db not ready", http.StatusServiceUnavailable)
			return
		}
		// Redis down is degraded, not unready: the sqlite fallback serves.
		if err := rdb.Ping(ctxPing).Err(); err != nil {
			logger.Debug().Err(err).Msg("redis not reachable")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

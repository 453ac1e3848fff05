// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"signals-platform/internal/config"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/infra/adapters/telegram"
	"signals-platform/internal/infra/apiclient"
	pg "signals-platform/internal/infra/db/postgres"
	"signals-platform/internal/infra/events"
	"signals-platform/internal/infra/logging"
	"signals-platform/internal/infra/metrics"
	red "signals-platform/internal/infra/redis"
	"signals-platform/internal/infra/sched"
	"signals-platform/internal/infra/security"
	"signals-platform/internal/infra/web"
	"signals-platform/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

const botServiceSID = "svc:telegram-bot"

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, unredacted contact info")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("exiting")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting")

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Upstream API ----
	sealer, err := security.NewSealer(cfg.Session.Secret, "upstream-tokens")
	if err != nil {
		return fmt.Errorf("token sealer: %w", err)
	}
	api := apiclient.New(
		cfg.API.BaseURL,
		&http.Client{Timeout: cfg.API.Timeout},
		red.NewTokenStore(redisClient, cfg.Session.TTL, sealer),
		logger,
	)
	offers := red.NewOfferCacheDecorator(apiclient.NewOfferSource(api), redisClient, cfg.Catalog.CacheTTL, logger)

	// ---- Events ----
	var publisher adapter.EventPublisher = events.NewNoopPublisher(logger)
	if cfg.Events.AMQPURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			// events are best-effort; keep serving without them
			logger.Warn().Err(err).Msg("rabbitmq unavailable, events disabled")
		} else {
			publisher = rp
		}
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("event publisher close")
		}
	}()

	// ---- Telegram ----
	var bot adapter.TelegramBotAdapter
	var realBot *telegram.RealTelegramBotAdapter
	if cfg.Telegram.Token != "" {
		realBot, err = telegram.NewRealTelegramBotAdapter(cfg.Telegram.Token, 0, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot = realBot
	} else {
		logger.Warn().Msg("telegram token not set, admin notifications are logged only")
		bot = telegram.NewNoopBotAdapter(logger)
	}
	notifier := telegram.NewAdminNotifier(bot, cfg.Telegram.AdminChatIDs, cfg.Runtime.Dev)

	// ---- Use cases ----
	catalogUC := usecase.NewCatalogUseCase(offers, cfg.Checkout.StrictOfferMatch, logger)
	checkoutUC := usecase.NewCheckoutUseCase(
		catalogUC,
		red.NewCheckoutStateRepo(redisClient, cfg.Checkout.StateTTL),
		api,
		notifier,
		publisher,
		locker,
		usecase.CheckoutOptions{
			Channels: cfg.ContactChannels,
			Guidance: cfg.Checkout.Guidance,
			Dev:      cfg.Runtime.Dev,
		},
		nil,
		logger,
	)
	authUC := usecase.NewAuthUseCase(api, usecase.AuthOptions{
		Limiter:    rateLimiter,
		LimiterKey: red.LoginAttemptKey,
		Checkout:   checkoutUC,
		Dev:        cfg.Runtime.Dev,
	}, logger)
	consoleUC := usecase.NewConsoleUseCase(api, pg.NewAdminActionRepo(pool), publisher, locker, nil, logger)
	dashboardUC := usecase.NewDashboardUseCase(api, nil)
	contentUC := usecase.NewContentUseCase(api, red.NewContentCache(redisClient, 24*time.Hour), cfg.Content.HomepageTTL, nil, logger)
	layoutUC := usecase.NewLayoutUseCase(pg.NewWidgetLayoutRepo(pool), pg.NewTxManager(pool), cfg.Layouts.Defaults, nil)

	// The bot and the digest act on the upstream as one staff account.
	var jobs *sched.Scheduler
	if cfg.Telegram.ServiceEmail != "" {
		service := usecase.NewServiceSession(api, botServiceSID, model.Credentials{
			Email:    cfg.Telegram.ServiceEmail,
			Password: cfg.Telegram.ServicePassword,
		})
		if realBot != nil {
			router := telegram.NewConsoleRouter(bot, consoleUC, service, rateLimiter, cfg.Telegram.AdminChatIDs, logger)
			go func() {
				if err := realBot.StartPolling(ctx, router); err != nil && ctx.Err() == nil {
					logger.Error().Err(err).Msg("telegram polling stopped")
				}
			}()
			defer realBot.StopPolling()
		}

		jobs = sched.NewScheduler(time.Minute, logger)
		digestUC := usecase.NewDigestUseCase(service, consoleUC, notifier, logger)
		if err := jobs.Add(sched.PendingDigestJob, cfg.Scheduler.PendingDigestCron, sched.PendingDigest(digestUC, logger)); err != nil {
			return err
		}
		jobs.Start()
	} else {
		logger.Warn().Msg("telegram.service_email not set, bot buttons and pending digest disabled")
	}

	// ---- HTTP ----
	proxies, err := web.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		return fmt.Errorf("http.trusted_proxies: %w", err)
	}
	sessions := web.NewSessionManager(cfg.Session.Secret, cfg.Session.CookieName, cfg.Session.Secure, cfg.Session.TTL)
	srv := web.NewServer(web.Services{
		Auth:      authUC,
		Catalog:   catalogUC,
		Checkout:  checkoutUC,
		Console:   consoleUC,
		Dashboard: dashboardUC,
		Content:   contentUC,
		Layouts:   layoutUC,
	}, sessions, web.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		ConfirmURL:     cfg.API.ConfirmURL,
		TrustedProxies: proxies,
	}, logger)

	err = srv.Run(ctx, fmt.Sprintf(":%d", cfg.HTTP.Port), cfg.HTTP.ShutdownTimeout)

	if jobs != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		jobs.Stop(stopCtx)
		cancel()
	}
	logger.Info().Msg("shutdown complete")
	return err
}

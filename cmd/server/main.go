package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fruitai/outreach/internal/audit"
	"github.com/fruitai/outreach/internal/config"
	"github.com/fruitai/outreach/internal/database"
	"github.com/fruitai/outreach/internal/discovery"
	"github.com/fruitai/outreach/internal/email"
	"github.com/fruitai/outreach/internal/generation"
	"github.com/fruitai/outreach/internal/handler"
	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/metadata"
	"github.com/fruitai/outreach/internal/middleware"
	"github.com/fruitai/outreach/internal/realtime"
	"github.com/fruitai/outreach/internal/repository"
	"github.com/fruitai/outreach/internal/router"
	"github.com/fruitai/outreach/internal/secret"
	"github.com/fruitai/outreach/internal/service"
	"github.com/fruitai/outreach/internal/template"
	"github.com/fruitai/outreach/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", handler.Version).Msg("starting outreach server")

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Connect to Redis
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("connected to Redis")

	box, err := secret.NewBox(cfg.Security.SecretKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid security.secret_key")
	}

	// Initialize repositories
	store := repository.NewStore(db,
		repository.NewCampaignRepository(db, box),
		repository.NewProspectRepository(db),
		repository.NewEmailRepository(db),
		repository.NewTransitionRepository(db),
		repository.NewEngagementRepository(db),
	)

	// Templates
	registry := template.NewRegistry()
	if cfg.Templates.Path != "" {
		n, err := registry.LoadFile(cfg.Templates.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Templates.Path).Msg("failed to load templates")
		}
		log.Info().Int("count", n).Str("path", cfg.Templates.Path).Msg("templates loaded")
	}
	renderer := template.NewRenderer(registry)

	// Delivery
	pool := email.NewPool(nil, email.SMTPOptions{
		DialTimeout: cfg.Email.SMTP.DialTimeout,
		TLSPolicy:   cfg.Email.SMTP.TLSPolicy,
	}, log)
	var secondary email.Sender
	if cfg.Email.Gmail.Enabled {
		gmailSender, err := email.NewGmailSender(context.Background(), email.GmailConfig{
			CredentialsJSON: cfg.Email.Gmail.CredentialsJSON,
			ClientID:        cfg.Email.Gmail.ClientID,
			ClientSecret:    cfg.Email.Gmail.ClientSecret,
			RefreshToken:    cfg.Email.Gmail.RefreshToken,
			SenderAddress:   cfg.Email.Gmail.SenderAddress,
			SenderName:      cfg.Email.Gmail.SenderName,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Gmail sender")
		}
		secondary = gmailSender
		log.Info().Str("sender", cfg.Email.Gmail.SenderAddress).Msg("gmail secondary transport enabled")
	}
	gateway := email.NewGateway(pool, secondary, log)

	// Status channel
	hub := realtime.NewHub(log)
	if cfg.AMQP.URL != "" {
		exporter, err := audit.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to AMQP broker")
		}
		hub.Connect(exporter)
		log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("audit exporter connected")
	}

	// Discovery
	httpClient := &http.Client{Timeout: 30 * time.Second}
	var sources []discovery.Source
	if cfg.Discovery.ServiceURL != "" {
		sources = append(sources, discovery.NewRemoteSource(&http.Client{}, cfg.Discovery.ServiceURL))
	}
	if cfg.Discovery.CrawlWebsite {
		sources = append(sources, discovery.NewWebsiteSource(httpClient, cfg.Discovery.MaxPages))
	}
	if len(sources) == 0 {
		log.Warn().Msg("no discovery sources configured, every campaign will fail discovery")
	}

	// Generation
	var generator generation.Generator
	if cfg.AI.APIKey != "" {
		g, err := generation.NewGenAIGenerator(context.Background(), generation.GenAIConfig{
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize GenAI generator")
		}
		generator = g
		log.Info().Str("model", cfg.AI.Model).Msg("AI generation enabled")
	}

	coordinator := workflow.New(workflow.Deps{
		Store:     store,
		Source:    discovery.NewMultiSource(log, sources...),
		Generator: generator,
		Renderer:  renderer,
		Mailer:    gateway,
		Events:    hub,
	}, workflow.Options{
		RenderConcurrency: cfg.Workflow.RenderConcurrency,
		MaxProspects:      cfg.Discovery.MaxProspects,
		DiscoveryTimeout:  cfg.Discovery.Timeout,
		TrackingBaseURL:   cfg.Tracking.BaseURL,
	}, log)

	recovered, err := coordinator.Recover(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to recover campaigns")
	}
	log.Info().Int("campaigns", recovered).Msg("campaign recovery finished")
	if cfg.Tracking.BaseURL == "" {
		log.Info().Msg("open and click tracking disabled, tracking.base_url is empty")
	}

	fetcher := metadata.NewFetcher(
		&http.Client{Timeout: cfg.Metadata.Timeout},
		metadata.NewRedisCache(rdb),
		cfg.Metadata.CacheTTL,
		log,
	)

	// Initialize handlers
	campaignSvc := service.NewCampaignService(store, coordinator, log)
	trackingSvc := service.NewTrackingService(store, hub, log)
	h := handler.New(db, rdb, log, campaignSvc, trackingSvc, renderer, fetcher)
	ws := realtime.NewServer(hub, h, cfg.Server.AllowedOrigins, log)

	// Initialize middleware
	mw := middleware.New(rdb, log, cfg)

	// Set up router
	r := router.New(h, mw, ws, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Cancelling an active stage waits for it to stop
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := coordinator.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("campaign runs did not stop in time")
	}
	hub.Close()
	if err := gateway.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close mail transports")
	}

	log.Info().Msg("server stopped")
}

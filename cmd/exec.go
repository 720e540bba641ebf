package cmd

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"eventease/config"
	"eventease/handlers"
	_ "eventease/migrations"
	"eventease/models"
	"eventease/monitoring"
	"eventease/security"
	"eventease/services"
	"eventease/store"
	"eventease/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize the live notifier; without PubNub keys it degrades to noop.
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		notifier = services.NewPubNubNotifier(pubnub.NewPubNub(pnConfig))
	}

	// Initialize storage and services
	pbStore := store.NewPocketBaseStore(app)
	checkinService := services.NewCheckinService(pbStore, pbStore, redisClient, notifier, cfg)
	scheduleService := services.NewScheduleService(pbStore)
	limiter := security.NewRateLimiter(redisClient)

	// Initialize handlers
	checkinHandler := handlers.NewCheckinHandler(app, checkinService, limiter, cfg)
	eventHandler := handlers.NewEventHandler(app, pbStore, pbStore, scheduleService, notifier, redisClient)
	adminHandler := handlers.NewAdminHandler(app, pbStore, pbStore, redisClient)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background reconciliation: open session caches are periodically
	// refreshed from the store so unconfirmed optimistic entries converge.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RefreshSchedule, func() {
		checkinService.RefreshSessions(context.Background())
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	monitoring.NewMonitor(redisClient).Start(ctx)

	if cfg.EnableMetrics {
		go startOpsServer(cfg, redisClient)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncActiveEventsToRedis(app, redisClient)

		// Event endpoints
		e.Router.GET("/api/v1/events", eventHandler.List)
		e.Router.GET("/api/v1/events/{eventId}", eventHandler.Get)
		e.Router.POST("/api/v1/events/{eventId}/cancel", eventHandler.Cancel)
		e.Router.POST("/api/v1/events/{eventId}/register", eventHandler.Register)

		// Schedule endpoints
		e.Router.GET("/api/v1/schedule", eventHandler.Schedule)
		e.Router.GET("/api/v1/schedule/feed.ics", eventHandler.ScheduleICS)

		// Check-in endpoints
		e.Router.POST("/api/v1/checkin/session", checkinHandler.OpenSession)
		e.Router.DELETE("/api/v1/checkin/session/{sessionId}", checkinHandler.CloseSession)
		e.Router.GET("/api/v1/checkin/session/{sessionId}/participants", checkinHandler.Participants)
		e.Router.GET("/api/v1/checkin/session/{sessionId}/export", checkinHandler.Export)
		e.Router.POST("/api/v1/checkin/scan", checkinHandler.Scan)
		e.Router.POST("/api/v1/checkin/manual", checkinHandler.Manual)
		e.Router.POST("/api/v1/checkin/logout", checkinHandler.Logout)

		// Admin endpoints
		e.Router.GET("/api/v1/admin/events/{eventId}/dashboard", adminHandler.Dashboard)
		e.Router.GET("/api/v1/admin/active-events", adminHandler.ActiveEvents)

		log.Println("Server routes registered")

		setupEventHooks(app, redisClient)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// startOpsServer exposes health and metrics on a side port, away from the
// public API surface.
func startOpsServer(cfg *config.Config, redisClient *redis.Client) {
	ops := echo.New()

	ops.GET("/health", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(200, map[string]string{"status": "healthy"})
	})

	ops.GET("/metrics", func(c echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})

	srv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           ops,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("ops server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("ops server failed", "error", err)
	}
}

// syncActiveEventsToRedis rebuilds the active-event registry on startup so
// the dashboard and monitor see a consistent picture after a restart.
func syncActiveEventsToRedis(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()
	now := time.Now()

	records, err := app.FindRecordsByFilter("events", "id != ''", "-date", 500, 0)
	if err != nil {
		log.Printf("Error fetching events for registry sync: %v", err)
		return
	}

	redisClient.Del(ctx, "active_events")

	var active []any
	for _, record := range records {
		event := store.EventFromRecord(record)
		switch services.ComputeStatus(event, now) {
		case models.StatusUpcoming, models.StatusOngoing:
			active = append(active, event.ID)
		}
	}

	if len(active) > 0 {
		redisClient.SAdd(ctx, "active_events", active...)
		log.Printf("Synced %d active events to Redis", len(active))
	}
}

// setupEventHooks keeps the Redis registry in step with record changes made
// through the PocketBase API.
func setupEventHooks(app *pocketbase.PocketBase, redisClient *redis.Client) {
	app.OnRecordCreateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		ctx := e.Request.Context()
		event := store.EventFromRecord(e.Record)

		switch services.ComputeStatus(event, time.Now()) {
		case models.StatusUpcoming, models.StatusOngoing:
			if err := redisClient.SAdd(ctx, "active_events", event.ID).Err(); err != nil {
				slog.Error("Failed to add new active event to Redis",
					"eventID", event.ID, "error", err)
				return nil
			}
			slog.Info("Added new active event to Redis", "eventID", event.ID)
		default:
			slog.Info("New event not active, skipping Redis add", "eventID", event.ID)
		}
		return nil
	})

	app.OnRecordDeleteRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		eventID := e.Record.Id
		if err := e.Next(); err != nil {
			return err
		}

		if err := redisClient.SRem(e.Request.Context(), "active_events", eventID).Err(); err != nil {
			slog.Error("Failed to remove deleted event from Redis",
				"eventID", eventID, "error", err)
			return nil
		}
		slog.Info("Removed deleted event from Redis", "eventID", eventID)
		return nil
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}

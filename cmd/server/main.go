package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-service/internal/app"
	"booking-service/internal/booking"
	"booking-service/internal/cache"
	"booking-service/internal/calendar"
	"booking-service/internal/config"
	"booking-service/internal/events"
	"booking-service/internal/metrics"
	"booking-service/internal/server"
	"booking-service/internal/store"
)

func main() {
	ctx := context.Background()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		log.Error("config.load_failed", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db.connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.Migrate(ctx); err != nil {
		log.Error("db.migrate_failed", "error", err)
		os.Exit(1)
	}

	gateway, err := calendar.NewGoogle(ctx, calendar.GoogleConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RefreshToken: cfg.Google.RefreshToken,
		CalendarID:   cfg.Google.CalendarID,
	})
	if err != nil {
		log.Error("calendar.init_failed", "error", err)
		os.Exit(1)
	}

	schedules, err := cache.NewScheduleCache(st, cfg.Cache.ScheduleSize)
	if err != nil {
		log.Error("cache.init_failed", "error", err)
		os.Exit(1)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQP.Enabled {
		amqpPub, err := events.NewAMQP(cfg.AMQP.URL, log)
		if err != nil {
			// Event delivery is best effort; a dead broker must not keep
			// bookings from being taken.
			log.Warn("events.init_failed", "error", err)
		} else {
			defer amqpPub.Close()
			publisher = amqpPub
		}
	}

	bookings := booking.NewService(st, schedules, gateway, publisher, log)

	appInstance := &app.App{
		Store:     st,
		Schedules: schedules,
		Bookings:  bookings,
		Log:       log,
	}

	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), metrics.Middleware())

	router.GET("/metrics", metrics.Handler())
	router.GET("/healthz", func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public booking surface: no owner authentication.
	book := router.Group("/book/:id/meeting-types/:mt_id")
	{
		book.GET("/slots", appInstance.GetSlotsHandler)
		book.POST("/bookings", appInstance.CreateBookingHandler)
	}

	api := router.Group("/api")
	api.Use(app.AuthMiddleware(cfg))
	{
		owners := api.Group("/owners/:id")
		{
			owners.PUT("/schedule", appInstance.SaveScheduleHandler)
			owners.GET("/schedule", appInstance.GetScheduleHandler)
			owners.POST("/meeting-types", appInstance.CreateMeetingTypeHandler)
			owners.GET("/meeting-types", appInstance.ListMeetingTypesHandler)
			owners.GET("/meeting-types/:mt_id", appInstance.GetMeetingTypeHandler)
			owners.PUT("/meeting-types/:mt_id", appInstance.UpdateMeetingTypeHandler)
			owners.DELETE("/meeting-types/:mt_id", appInstance.DeleteMeetingTypeHandler)
			owners.GET("/stats", appInstance.OwnerStatsHandler)
			owners.GET("/bookings", appInstance.ListBookingsHandler)
		}
		api.DELETE("/bookings/:id", appInstance.CancelBookingHandler)
	}

	if err := server.Run(router, cfg.Addr(), log); err != nil {
		log.Error("server.failed", "error", err)
		os.Exit(1)
	}
}

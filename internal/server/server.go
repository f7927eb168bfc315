package server

import (
	"backend-forestguard/internal/alert"
	"backend-forestguard/internal/auth"
	"backend-forestguard/internal/config"
	"backend-forestguard/internal/db"
	"backend-forestguard/internal/livemap"
	"backend-forestguard/internal/mapview"
	"backend-forestguard/internal/metrics"
	"backend-forestguard/internal/monitor"
	"backend-forestguard/internal/projects"
	"backend-forestguard/internal/stream"
	"backend-forestguard/internal/tracking"
	"backend-forestguard/internal/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub

	Tracking *tracking.Service
	Workers  *workers.Service
	Projects *projects.Service
	Paths    *livemap.Subscriber
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	// A nil pool must stay a nil interface so handlers fail instead of
	// calling methods on a nil *pgxpool.Pool.
	var q db.Querier
	if pool != nil {
		q = pool
	}

	hub := stream.NewHub(redisClient)
	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       pool,
		Redis:    redisClient,
		Stream:   hub,
		Tracking: tracking.NewService(q, hub, cfg.Location()),
		Workers:  workers.NewService(q),
		Projects: projects.NewService(q),
	}
	s.Paths = livemap.NewSubscriber(s.Tracking, s.Workers, hub, alert.LogAlerter{})

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	metrics.RegisterRoutes(s.App.Group("/metrics"))

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking, jwtMiddleware)
	workers.RegisterRoutes(s.App.Group("/workers"), s.Workers, jwtMiddleware)
	projects.RegisterRoutes(s.App.Group("/projects"), s.Projects, jwtMiddleware)

	fallback := mapview.RegionAround(s.Cfg.DefaultLatitude, s.Cfg.DefaultLongitude)
	mapGroup := s.App.Group("/map", jwtMiddleware)
	livemap.RegisterRoutes(mapGroup, s.Paths, s.Tracking, fallback)
	monitor.RegisterRoutes(mapGroup, s.Paths, s.Tracking, fallback)

	stream.RegisterRoutes(s.App.Group("/stream", jwtMiddleware), s.Stream)
}

package transport

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"realtime-backend/internal/config"
	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/resilience"
)

// Server wraps the fiber app, grounded on the teacher's internal/server/server.go.
type Server struct {
	app     *fiber.App
	cfg     *config.Config
	gateway *Gateway
	m       *metrics.Registry
	dm      *resilience.DegradationManager
	log     logging.Logger
}

// NewServer builds the fiber app and wires the websocket and health/metrics
// routes.
func NewServer(cfg *config.Config, gateway *Gateway, m *metrics.Registry, dm *resilience.DegradationManager, log logging.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:       "Realtime Translation Gateway",
		ServerHeader:  "Fiber",
		StrictRouting: true,
		CaseSensitive: true,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		Prefork:       false,
	})

	s := &Server{app: app, cfg: cfg, gateway: gateway, m: m, dm: dm, log: log}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CORS.AllowOrigins,
		AllowHeaders: s.cfg.CORS.AllowHeaders,
	}))
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		health := s.dm.GetSystemHealth()
		return c.JSON(fiber.Map{
			"status":           health.Status,
			"degradedServices": health.DegradedServices,
			"timestamp":        time.Now().Unix(),
		})
	})

	s.app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
		return c.SendString(s.m.RenderText())
	})

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws/session", websocket.New(s.gateway.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start runs the server and blocks until a shutdown signal arrives.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.log.Info("shutting down server")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			s.log.Error("server shutdown error", logging.Err(err))
		}
	}()

	s.log.Info("starting gateway", logging.String("port", s.cfg.Server.Port))
	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}

// Package httpapi — служебный HTTP-сервер: проверка живости и сводная статистика.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/features/ledger"
)

// Source — хранилище, которое опрашивает сервер.
type Source interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*ledger.Stats, error)
}

type Server struct {
	app     *fiber.App
	source  Source
	addr    string
	timeout time.Duration
}

func New(source Source, addr string) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})
	app.Use(recover.New())

	s := &Server{
		app:     app,
		source:  source,
		addr:    addr,
		timeout: 3 * time.Second,
	}

	app.Get("/health", s.health)
	app.Get("/stats", s.stats)
	return s
}

// App — для тестов через app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start блокируется до остановки сервера.
func (s *Server) Start() error {
	log.WithField("addr", s.addr).Info("HTTP-сервер запущен")
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()

	if err := s.source.Ping(ctx); err != nil {
		log.WithError(err).Warn("health check: хранилище недоступно")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
		})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

func (s *Server) stats(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()

	st, err := s.source.Stats(ctx)
	if err != nil {
		log.WithError(err).Error("stats: ошибка чтения")
		return fiber.NewError(fiber.StatusInternalServerError, "stats unavailable")
	}
	return c.JSON(st)
}

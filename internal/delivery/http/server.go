package http

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberSwagger "github.com/swaggo/fiber-swagger"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/config"
	"github.com/policyhub-service/internal/delivery/http/handler"
	"github.com/policyhub-service/internal/delivery/http/middleware"
	"github.com/policyhub-service/internal/metrics"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/pkg/utils"
)

// Server - HTTP сервер на основе Fiber
type Server struct {
	app    *fiber.App
	config *config.Config
	logger *zap.Logger

	// Handlers
	workspaceHandler *handler.WorkspaceHandler
	hubHandler       *handler.HubHandler
}

// NewServer - создание нового HTTP сервера
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	workspaceHandler *handler.WorkspaceHandler,
	hubHandler *handler.HubHandler,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "Policy Hub Service",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: customErrorHandler(logger),
	})

	s := &Server{
		app:              app,
		config:           cfg,
		logger:           logger,
		workspaceHandler: workspaceHandler,
		hubHandler:       hubHandler,
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

// setupMiddlewares - настройка middleware
func (s *Server) setupMiddlewares() {
	s.app.Use(middleware.Recovery(s.logger))
	s.app.Use(middleware.Logger(s.logger))
	s.app.Use(middleware.CORS())
	s.app.Use(middleware.Actor())
	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
}

// setupRoutes - настройка маршрутов
func (s *Server) setupRoutes() {
	// Swagger documentation route
	s.app.Get("/swagger/*", fiberSwagger.WrapHandler)

	// Prometheus
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := s.app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"backend": s.config.HubAPI.Backend,
			"time":    time.Now(),
		})
	})

	edit := middleware.RequireEditToken(s.config.Server.EditToken)

	// Workspace routes - сессия дашборда
	ws := api.Group("/workspaces")
	ws.Post("/", s.workspaceHandler.Open)
	ws.Get("/:id", s.workspaceHandler.Get)
	ws.Delete("/:id", s.workspaceHandler.Close)
	ws.Get("/:id/hubs", s.workspaceHandler.Hubs)
	ws.Put("/:id/selection", s.workspaceHandler.Select)
	ws.Get("/:id/selection/hubs", s.workspaceHandler.SelectedHubs)
	ws.Put("/:id/drawing/mode", s.workspaceHandler.SetDrawingMode)
	ws.Post("/:id/drawing/features", s.workspaceHandler.AddFeature)
	ws.Post("/:id/drawing/pieces", s.workspaceHandler.AddPiece)
	ws.Post("/:id/drawing/save", edit, s.workspaceHandler.SaveDrawing)
	ws.Post("/:id/actions", edit, s.workspaceHandler.Execute)
	ws.Post("/:id/import/preprocess", s.workspaceHandler.PreprocessImport)
	ws.Post("/:id/import/confirm", edit, s.workspaceHandler.ConfirmImport)

	// Hub repository routes - stateless, зеркало HubRepository
	hubs := api.Group("/hubs")
	hubs.Get("/", s.hubHandler.List)
	hubs.Post("/", edit, s.hubHandler.Save)
	hubs.Post("/commit", edit, s.hubHandler.Commit)
	hubs.Post("/make-concept", edit, s.hubHandler.MakeConcept)
	hubs.Post("/derive-concept", edit, s.hubHandler.DeriveConcept)
	hubs.Post("/propose-retirement", edit, s.hubHandler.ProposeRetirement)
	hubs.Post("/import/preprocess", s.hubHandler.Preprocess)
	hubs.Post("/import", edit, s.hubHandler.Import)

	if s.hubHandler.HasBorders() {
		api.Put("/borders/:municipality", edit, s.hubHandler.SaveBorder)
	}
}

// App возвращает fiber приложение (для app.Test)
func (s *Server) App() *fiber.App {
	return s.app
}

// Start - запуск HTTP сервера
func (s *Server) Start() error {
	addr := s.config.GetServerAddr()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))
	return s.app.Listen(addr)
}

// Shutdown - graceful shutdown HTTP сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler - ошибки fiber (404 маршрута, лимит тела) в формате AppError
func customErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fe *fiber.Error
		if stderrors.As(err, &fe) {
			code = fe.Code
		}

		logger.Error("HTTP Error",
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		if code == fiber.StatusInternalServerError {
			return utils.SendError(c, err)
		}
		return utils.SendError(c, errors.New("HTTP_ERROR", err.Error(), code))
	}
}

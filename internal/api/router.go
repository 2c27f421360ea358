package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/campus-assist/backend/internal/api/handlers"
	"github.com/campus-assist/backend/internal/metrics"
	"github.com/campus-assist/backend/internal/middleware/security"
	"github.com/campus-assist/backend/internal/middleware/validation"
	"github.com/campus-assist/backend/pkg/logger"
)

type Deps struct {
	Pipeline    handlers.Asker
	Store       handlers.ConversationStore
	Speech      handlers.Speech
	DB          handlers.Pinger
	Title       string
	Development bool
	AccessLog   bool
}

// Register installs middleware and every route on app.
func Register(app *fiber.App, deps Deps) {
	app.Use(recover.New())
	if deps.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: deps.Development,
	}))
	app.Use(validation.Middleware(validation.Config{
		Logger: logger.GetLogger(),
	}))

	chatHandler := handlers.NewChatHandler(deps.Pipeline, deps.Store)
	voiceHandler := handlers.NewVoiceHandler(deps.Speech, deps.Pipeline)
	systemHandler := handlers.NewSystemHandler(deps.DB)
	pageHandler := handlers.NewPageHandler(deps.Title)
	wsHandler := handlers.NewWebSocketHandler(deps.Pipeline)

	app.Get("/", pageHandler.Index)
	app.Get("/health", systemHandler.Health)
	app.Get("/languages", systemHandler.Languages)
	app.Get("/metrics", metrics.MetricsHandler())

	app.Post("/ask", chatHandler.Ask)
	app.Post("/feedback", chatHandler.Feedback)
	app.Post("/forward-to-admin", chatHandler.ForwardToAdmin)
	app.Get("/sessions/:id/history", chatHandler.SessionHistory)
	app.Get("/admin/forwarded", chatHandler.Forwarded)

	voice := app.Group("/voice")
	voice.Post("/stt", voiceHandler.STT)
	voice.Post("/tts", voiceHandler.TTS)
	voice.Post("/chat", voiceHandler.Chat)
	voice.Get("/status", voiceHandler.Status)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))
}

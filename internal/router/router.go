package router

import (
	"eventhub/internal/config"
	"eventhub/internal/handlers"
	"eventhub/internal/metrics"
	"eventhub/internal/middleware"
	"eventhub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// New builds the engine with its middleware stack and every route.
func New(cfg config.Config, gdb *gorm.DB, m *metrics.Metrics, logger zerolog.Logger) *gin.Engine {
	handlers.RegisterValidators()

	authService := services.NewAuthService(gdb, m, logger)
	userService := services.NewUserService(gdb)
	eventService := services.NewEventService(gdb, m, logger)
	questionService := services.NewQuestionService(gdb, m, logger)

	r := gin.New()
	r.Use(
		middleware.RequestLogger(logger),
		middleware.Metrics(m),
		middleware.Recovery(),
		middleware.CORS(cfg.CORS),
		middleware.LoadUser(authService),
	)
	r.NoRoute(handlers.NotFound)

	RegisterRoutes(r, Handlers{
		Health:   handlers.NewHealthHandler(gdb),
		Auth:     handlers.NewAuthHandler(authService),
		User:     handlers.NewUserHandler(authService, userService),
		Event:    handlers.NewEventHandler(eventService),
		Question: handlers.NewQuestionHandler(questionService),
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	return r
}

type Handlers struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	User     *handlers.UserHandler
	Event    *handlers.EventHandler
	Question *handlers.QuestionHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	authRequired := middleware.AuthRequired()

	// Public
	r.GET("/", h.Health.Index)
	r.GET("/healthz", h.Health.Healthz)
	r.POST("/users", h.User.Create)
	r.GET("/users/:id", h.User.Get)
	r.POST("/login", h.Auth.Login)
	r.POST("/logout", authRequired, h.Auth.Logout)
	r.GET("/search", h.Event.Search)

	// The event routes answer under both prefixes.
	for _, prefix := range []string{"/events", "/event"} {
		events := r.Group(prefix)
		events.GET("/:id", h.Event.Get)
		events.POST("", authRequired, h.Event.Create)
		events.PATCH("/:id", authRequired, h.Event.Update)
		events.DELETE("/:id", authRequired, h.Event.Delete)
		events.POST("/:id", authRequired, h.Event.Register)
		events.POST("/:id/question", authRequired, h.Question.Ask)
	}

	questions := r.Group("/question")
	questions.Use(authRequired)
	{
		questions.GET("/user", h.Question.ListMine)
		questions.DELETE("/:id", h.Question.Delete)
		questions.POST("/:id/vote", h.Question.Upvote)
		questions.DELETE("/:id/vote", h.Question.Downvote)
	}
}

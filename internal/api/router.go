// Package api exposes the global state over HTTP.
package api

import (
	"context"
	"time"

	"wedgietracker/ingestion/internal/ingest"
	"wedgietracker/ingestion/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// StateService is the state store as seen by the handlers
type StateService interface {
	Get(ctx context.Context) (*models.GlobalState, error)
	Summary(ctx context.Context) (*models.Summary, error)
	ApplyPush(ctx context.Context, in models.PushInput) (*models.GlobalState, error)
	Replace(ctx context.Context, in models.GlobalStateInput) (*models.GlobalState, error)
	RecordWedgie(ctx context.Context, w *models.Wedgie, create bool) (*models.GlobalState, error)
	PurgeGamesBefore(ctx context.Context, before time.Time) (int64, *models.GlobalState, error)
	ReassignGamesAfter(ctx context.Context, after time.Time, season string) (int64, *models.GlobalState, error)
}

// Runner triggers an ingestion run
type Runner interface {
	Run(ctx context.Context, trigger string) (*ingest.Summary, error)
}

// HealthChecker reports dependency health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// SeasonReader looks up stored seasons
type SeasonReader interface {
	GetByName(ctx context.Context, name string) (*models.Season, error)
	Tallies(ctx context.Context) ([]models.SeasonTally, error)
}

// GameReader looks up stored games
type GameReader interface {
	GetByName(ctx context.Context, name string) (*models.Game, error)
	CountBySeason(ctx context.Context, season string) (int, error)
}

// WedgieReader looks up stored wedgies
type WedgieReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wedgie, error)
}

// Readers backs the read-only maintenance endpoints
type Readers struct {
	Seasons SeasonReader
	Games   GameReader
	Wedgies WedgieReader
}

// Config holds the API credentials
type Config struct {
	PushSecret       string
	PushSecretHeader string
	AdminJWTSecret   []byte
}

// Handler serves the HTTP API
type Handler struct {
	state   StateService
	runner  Runner
	health  HealthChecker
	readers Readers
	cfg     Config
}

// NewHandler creates a handler
func NewHandler(state StateService, runner Runner, health HealthChecker, readers Readers, cfg Config) *Handler {
	if cfg.PushSecretHeader == "" {
		cfg.PushSecretHeader = "X-Api-Key"
	}
	return &Handler{state: state, runner: runner, health: health, readers: readers, cfg: cfg}
}

// Router builds the gin engine with all routes registered
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogger(), gin.Recovery())

	r.GET("/health", h.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/global-state", h.getSummary)

	trusted := api.Group("", requireSharedSecret(h.cfg.PushSecretHeader, h.cfg.PushSecret))
	trusted.POST("/global-state", h.push)
	trusted.POST("/ingest", h.triggerIngest)

	admin := api.Group("/admin", requireAdmin(h.cfg.AdminJWTSecret))
	admin.GET("/global-state", h.getState)
	admin.PUT("/global-state", h.replaceState)
	admin.GET("/seasons", h.listSeasons)
	admin.GET("/seasons/games", h.seasonGames)
	admin.GET("/games", h.getGame)
	admin.POST("/games/reassign", h.reassignGames)
	admin.DELETE("/games", h.purgeGames)
	admin.GET("/wedgies/:id", h.getWedgie)
	admin.POST("/wedgies", h.createWedgie)
	admin.PUT("/wedgies/:id", h.updateWedgie)

	return r
}

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := log.Info()
		if status >= 500 {
			evt = log.Error()
		} else if status >= 400 {
			evt = log.Warn()
		}

		evt.
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

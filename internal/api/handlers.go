package api

import (
	"errors"
	"net/http"
	"time"

	"wedgietracker/ingestion/internal/ingest"
	"wedgietracker/ingestion/internal/metrics"
	"wedgietracker/ingestion/internal/models"
	"wedgietracker/ingestion/internal/repository"
	"wedgietracker/ingestion/internal/state"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, state.ErrInvalidInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, ingest.ErrRunInProgress), errors.Is(err, state.ErrSeasonChanged):
		status, message = http.StatusConflict, err.Error()
	default:
		metrics.RecordError("api", "internal")
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
	}

	c.JSON(status, gin.H{"error": message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func (h *Handler) healthCheck(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Health(c.Request.Context()); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) getSummary(c *gin.Context) {
	summary, err := h.state.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) getState(c *gin.Context) {
	gs, err := h.state.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gs)
}

func (h *Handler) push(c *gin.Context) {
	var in models.PushInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid push body: "+err.Error())
		return
	}

	gs, err := h.state.ApplyPush(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gs)
}

func (h *Handler) triggerIngest(c *gin.Context) {
	summary, err := h.runner.Run(c.Request.Context(), "http")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) replaceState(c *gin.Context) {
	var in models.GlobalStateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid global state: "+err.Error())
		return
	}

	gs, err := h.state.Replace(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("admin", adminSubject(c)).Str("season", gs.ActiveSeason).Msg("Global state replaced")
	c.JSON(http.StatusOK, gs)
}

func (h *Handler) listSeasons(c *gin.Context) {
	tallies, err := h.readers.Seasons.Tallies(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seasons": tallies})
}

type seasonGamesReport struct {
	Season      string `json:"season"`
	CachedGames int    `json:"cachedGames"`
	StoredGames int    `json:"storedGames"`
	InSync      bool   `json:"inSync"`
}

// seasonGames compares a season's cached game counter with its stored rows
func (h *Handler) seasonGames(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		badRequest(c, "name is required")
		return
	}

	ctx := c.Request.Context()
	season, err := h.readers.Seasons.GetByName(ctx, name)
	if err != nil {
		writeError(c, err)
		return
	}
	stored, err := h.readers.Games.CountBySeason(ctx, name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, seasonGamesReport{
		Season:      season.Name,
		CachedGames: season.TotalGames,
		StoredGames: stored,
		InSync:      season.TotalGames == stored,
	})
}

func (h *Handler) getGame(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		badRequest(c, "name is required")
		return
	}

	game, err := h.readers.Games.GetByName(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

type reassignRequest struct {
	After      string `json:"after" binding:"required"`
	SeasonName string `json:"seasonName" binding:"required"`
}

func (h *Handler) reassignGames(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid reassign request: "+err.Error())
		return
	}
	after, err := time.Parse(time.DateOnly, req.After)
	if err != nil {
		badRequest(c, "after must be YYYY-MM-DD")
		return
	}

	moved, gs, err := h.state.ReassignGamesAfter(c.Request.Context(), after, req.SeasonName)
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().
		Str("admin", adminSubject(c)).
		Str("after", req.After).
		Str("season", req.SeasonName).
		Int64("moved", moved).
		Msg("Games reassigned")

	c.JSON(http.StatusOK, gin.H{"moved": moved, "state": gs})
}

func (h *Handler) purgeGames(c *gin.Context) {
	before, err := time.Parse(time.DateOnly, c.Query("before"))
	if err != nil {
		badRequest(c, "before must be YYYY-MM-DD")
		return
	}

	deleted, gs, err := h.state.PurgeGamesBefore(c.Request.Context(), before)
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().
		Str("admin", adminSubject(c)).
		Str("before", c.Query("before")).
		Int64("deleted", deleted).
		Msg("Games purged")

	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "state": gs})
}

func (h *Handler) getWedgie(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid wedgie id")
		return
	}

	w, err := h.readers.Wedgies.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) createWedgie(c *gin.Context) {
	var in models.WedgieInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid wedgie: "+err.Error())
		return
	}
	w, err := in.ToWedgie(uuid.New())
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.recordWedgie(c, w, true, http.StatusCreated)
}

func (h *Handler) updateWedgie(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid wedgie id")
		return
	}

	var in models.WedgieInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid wedgie: "+err.Error())
		return
	}
	w, err := in.ToWedgie(id)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.recordWedgie(c, w, false, http.StatusOK)
}

func (h *Handler) recordWedgie(c *gin.Context, w *models.Wedgie, create bool, status int) {
	if w.GameDate.IsZero() {
		w.GameDate = time.Now().UTC()
	}

	gs, err := h.state.RecordWedgie(c.Request.Context(), w, create)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, gin.H{"wedgie": w, "state": gs})
}

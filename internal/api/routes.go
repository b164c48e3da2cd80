package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/debatearena/server/internal/debate"
	"github.com/debatearena/server/internal/store"
)

// Archive is the read side of the finished-debate archive.
type Archive interface {
	Latest(ctx context.Context, roomID string) (store.DebateRecord, error)
	History(ctx context.Context, userID string, limit int) ([]store.DebateRecord, error)
}

// Ledger is the read side of the hype ledger.
type Ledger interface {
	Hype(ctx context.Context, userID string) (int64, error)
	Top(ctx context.Context, n int64) ([]store.Standing, error)
}

// Deps are the collaborators behind the REST routes. Archive and Ledger are
// optional; their routes answer 503 when absent.
type Deps struct {
	Service *debate.Service
	Archive Archive
	Ledger  Ledger
}

func SetupRoutes(r *gin.Engine, d Deps) {
	h := &handlers{d}
	api := r.Group("/api")
	{
		api.GET("/rooms/:id", h.getRoom)
		api.GET("/queue", h.getQueue)
		api.GET("/debates/:id", h.getDebate)
		api.GET("/users/:id/debates", h.getHistory)
		api.GET("/users/:id/hype", h.getHype)
		api.GET("/leaderboard", h.getLeaderboard)
	}
}

type handlers struct {
	Deps
}

func (h *handlers) getRoom(c *gin.Context) {
	snap, err := h.Service.GetState(c.Param("id"), "")
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": debate.Code(err)})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) getQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"queued": h.Service.Queue().Len(), "rooms": h.Service.Rooms().Len()})
}

func (h *handlers) getDebate(c *gin.Context) {
	if h.Archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive_disabled"})
		return
	}
	rec, err := h.Archive.Latest(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "debate_not_found"})
		return
	}
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handlers) getHistory(c *gin.Context) {
	if h.Archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive_disabled"})
		return
	}
	recs, err := h.Archive.History(c.Request.Context(), c.Param("id"), limitParam(c, 20, 100))
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"debates": recs})
}

func (h *handlers) getHype(c *gin.Context) {
	if h.Ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger_disabled"})
		return
	}
	hype, err := h.Ledger.Hype(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": c.Param("id"), "hype": hype})
}

func (h *handlers) getLeaderboard(c *gin.Context) {
	if h.Ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger_disabled"})
		return
	}
	top, err := h.Ledger.Top(c.Request.Context(), int64(limitParam(c, 10, 100)))
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": top})
}

func (h *handlers) internal(c *gin.Context, err error) {
	log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}

func limitParam(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

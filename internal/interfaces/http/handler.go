package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	tickersvc "main/internal/application/service/ticker"
	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
	"main/internal/infrastructure/cache"

	"github.com/gin-gonic/gin"
)

const tickerBasePath = "/api/v1/ticker"

var (
	errInvalidToken = errors.New("token path param must be a positive integer")
	errInvalidMode  = errors.New("mode must be one of ltp, quote, full")
)

// TickerService is the orchestration surface the API exposes.
type TickerService interface {
	AddInstrument(ctx context.Context, token int64, mode interfaces.SubscriptionMode) error
	RemoveInstrument(ctx context.Context, token int64) error
	Stats() tickersvc.Stats
}

var _ TickerService = (*tickersvc.Orchestrator)(nil)

// SnapshotReader serves the latest published record per token.
type SnapshotReader interface {
	GetUnderlyingBar(ctx context.Context, token int64) (*entity.UnderlyingBar, error)
	GetOptionSnapshot(ctx context.Context, token int64) (*entity.OptionSnapshot, error)
}

type Handler struct {
	router    *gin.Engine
	ticker    TickerService
	snapshots SnapshotReader
}

func NewHandler(ticker TickerService, snapshots SnapshotReader) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:    router,
		ticker:    ticker,
		snapshots: snapshots,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.health)

	ticker := h.router.Group(tickerBasePath)
	{
		ticker.GET("/stats", h.getStats)
		ticker.POST("/subscriptions/:token", h.addSubscription)
		ticker.DELETE("/subscriptions/:token", h.removeSubscription)

		if h.snapshots != nil {
			ticker.GET("/bars/:token", h.getBar)
			ticker.GET("/options/:token", h.getOption)
		}
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.ticker.Stats())
}

// addSubscription subscribes one token, assigning it to an account with
// spare capacity. The optional mode query param defaults to full depth.
func (h *Handler) addSubscription(c *gin.Context) {
	token, err := parseTokenParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	mode, err := parseMode(c.DefaultQuery("mode", string(interfaces.ModeFull)))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.ticker.AddInstrument(c.Request.Context(), token, mode); err != nil {
		if errors.Is(err, tickersvc.ErrNoCapacity) {
			writeError(c, http.StatusConflict, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "mode": mode})
}

func (h *Handler) removeSubscription(c *gin.Context) {
	token, err := parseTokenParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.ticker.RemoveInstrument(c.Request.Context(), token); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getBar(c *gin.Context) {
	token, err := parseTokenParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	bar, err := h.snapshots.GetUnderlyingBar(c.Request.Context(), token)
	if err != nil {
		writeSnapshotError(c, err)
		return
	}
	c.JSON(http.StatusOK, bar)
}

func (h *Handler) getOption(c *gin.Context) {
	token, err := parseTokenParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	snapshot, err := h.snapshots.GetOptionSnapshot(c.Request.Context(), token)
	if err != nil {
		writeSnapshotError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func parseTokenParam(c *gin.Context) (int64, error) {
	token, err := strconv.ParseInt(c.Param("token"), 10, 64)
	if err != nil || token <= 0 {
		return 0, errInvalidToken
	}
	return token, nil
}

func parseMode(raw string) (interfaces.SubscriptionMode, error) {
	switch mode := interfaces.SubscriptionMode(raw); mode {
	case interfaces.ModeLTP, interfaces.ModeQuote, interfaces.ModeFull:
		return mode, nil
	default:
		return "", errInvalidMode
	}
}

func writeSnapshotError(c *gin.Context, err error) {
	if errors.Is(err, cache.ErrNotCached) {
		writeError(c, http.StatusNotFound, err)
		return
	}
	writeError(c, http.StatusInternalServerError, err)
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	tickersvc "main/internal/application/service/ticker"
	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
	"main/internal/infrastructure/cache"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTicker struct {
	mu      sync.Mutex
	added   []int64
	removed []int64
	addErr  error
	stats   tickersvc.Stats
}

func (s *stubTicker) AddInstrument(_ context.Context, token int64, _ interfaces.SubscriptionMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.added = append(s.added, token)
	return nil
}

func (s *stubTicker) RemoveInstrument(_ context.Context, token int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, token)
	return nil
}

func (s *stubTicker) Stats() tickersvc.Stats {
	return s.stats
}

type stubSnapshots struct {
	bars    map[int64]*entity.UnderlyingBar
	options map[int64]*entity.OptionSnapshot
}

func (s *stubSnapshots) GetUnderlyingBar(_ context.Context, token int64) (*entity.UnderlyingBar, error) {
	bar, ok := s.bars[token]
	if !ok {
		return nil, cache.ErrNotCached
	}
	return bar, nil
}

func (s *stubSnapshots) GetOptionSnapshot(_ context.Context, token int64) (*entity.OptionSnapshot, error) {
	snapshot, ok := s.options[token]
	if !ok {
		return nil, cache.ErrNotCached
	}
	return snapshot, nil
}

func doRequest(h *Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewHandler(&stubTicker{}, nil)
	rec := doRequest(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStats(t *testing.T) {
	ticker := &stubTicker{stats: tickersvc.Stats{Running: true, Accounts: 2, Assigned: 7}}
	h := NewHandler(ticker, nil)

	rec := doRequest(h, http.MethodGet, "/api/v1/ticker/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running":true`)
	assert.Contains(t, rec.Body.String(), `"assigned":7`)
}

func TestAddSubscription(t *testing.T) {
	ticker := &stubTicker{}
	h := NewHandler(ticker, nil)

	rec := doRequest(h, http.MethodPost, "/api/v1/ticker/subscriptions/256265?mode=quote")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []int64{256265}, ticker.added)
}

func TestAddSubscriptionDefaultsToFullMode(t *testing.T) {
	ticker := &stubTicker{}
	h := NewHandler(ticker, nil)

	rec := doRequest(h, http.MethodPost, "/api/v1/ticker/subscriptions/256265")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mode":"full"`)
}

func TestAddSubscriptionRejectsBadInput(t *testing.T) {
	h := NewHandler(&stubTicker{}, nil)

	rec := doRequest(h, http.MethodPost, "/api/v1/ticker/subscriptions/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodPost, "/api/v1/ticker/subscriptions/256265?mode=depth")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddSubscriptionNoCapacityIsConflict(t *testing.T) {
	ticker := &stubTicker{addErr: tickersvc.ErrNoCapacity}
	h := NewHandler(ticker, nil)

	rec := doRequest(h, http.MethodPost, "/api/v1/ticker/subscriptions/256265")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddSubscriptionOtherErrorIsInternal(t *testing.T) {
	ticker := &stubTicker{addErr: errors.New("registry unavailable")}
	h := NewHandler(ticker, nil)

	rec := doRequest(h, http.MethodPost, "/api/v1/ticker/subscriptions/256265")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRemoveSubscription(t *testing.T) {
	ticker := &stubTicker{}
	h := NewHandler(ticker, nil)

	rec := doRequest(h, http.MethodDelete, "/api/v1/ticker/subscriptions/256265")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{256265}, ticker.removed)
}

func TestGetBar(t *testing.T) {
	snapshots := &stubSnapshots{
		bars: map[int64]*entity.UnderlyingBar{
			256265: {Token: 256265, Symbol: "NIFTY 50", Close: 24010.5},
		},
	}
	h := NewHandler(&stubTicker{}, snapshots)

	rec := doRequest(h, http.MethodGet, "/api/v1/ticker/bars/256265")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"NIFTY 50"`)

	rec = doRequest(h, http.MethodGet, "/api/v1/ticker/bars/111")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOption(t *testing.T) {
	snapshots := &stubSnapshots{
		options: map[int64]*entity.OptionSnapshot{
			9604354: {Token: 9604354, Symbol: "NIFTY25SEP24000CE", LastPrice: 182.4},
		},
	}
	h := NewHandler(&stubTicker{}, snapshots)

	rec := doRequest(h, http.MethodGet, "/api/v1/ticker/options/9604354")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"NIFTY25SEP24000CE"`)
}

func TestSnapshotRoutesAbsentWithoutReader(t *testing.T) {
	h := NewHandler(&stubTicker{}, nil)
	rec := doRequest(h, http.MethodGet, "/api/v1/ticker/bars/256265")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

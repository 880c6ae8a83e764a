package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/owt-mfg/erpsync/internal/service"
)

// FetcherControl is the slice of FetcherService the sync handlers need.
type FetcherControl interface {
	TriggerNow(ctx context.Context, override *time.Time) (*service.CycleStats, error)
	Status() service.FetcherStatus
	Stop() (bool, error)
}

// SyncHandlers exposes the manual sync control surface.
type SyncHandlers struct {
	Fetcher FetcherControl
}

type triggerRequest struct {
	// FromDate optionally overrides the fetch window start (YYYY-MM-DD).
	FromDate string `json:"from_date,omitempty"`
}

// Trigger handles POST /api/sync/trigger. It runs a fetch cycle now (or
// joins the one in flight) and reports its counts.
func (h *SyncHandlers) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}

	var override *time.Time
	if req.FromDate != "" {
		t, err := time.Parse("2006-01-02", req.FromDate)
		if err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_from_date",
				Err:     errors.New("from_date must be YYYY-MM-DD"),
			})
			return
		}
		utc := t.UTC()
		override = &utc
	}

	stats, err := h.Fetcher.TriggerNow(r.Context(), override)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "sync_failed",
			Err:     err,
		})
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// Status handles GET /api/sync/status.
func (h *SyncHandlers) Status(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.Fetcher.Status())
}

// Stop handles POST /api/sync/stop. It disables scheduled cycles; a cycle
// already in flight must finish first (409).
func (h *SyncHandlers) Stop(w http.ResponseWriter, _ *http.Request) {
	stopped, err := h.Fetcher.Stop()
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusConflict,
			ErrCode: "fetch_in_progress",
			Err:     err,
		})
		return
	}
	if !stopped {
		WriteJSON(w, http.StatusOK, map[string]any{"stopped": false, "message": "scheduler already stopped"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"stopped": true})
}

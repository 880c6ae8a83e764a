package httpx

import (
	"context"
	"net/http"

	"github.com/owt-mfg/erpsync/internal/domain/model"
)

// JobStatsProvider is the slice of SyncJobRepo the job handlers need.
type JobStatsProvider interface {
	Stats(ctx context.Context) (*model.JobStats, error)
}

// JobHandlers exposes read-only queue introspection.
type JobHandlers struct {
	Jobs JobStatsProvider
}

// Stats handles GET /api/jobs/stats.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Jobs.Stats(r.Context())
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "stats_failed",
			Err:     err,
		})
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

package api

import (
	"errors"
	"net/http"

	"github.com/heimdex/transitiond/internal/export"
)

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.ExportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.FrameRate <= 0 {
			req.FrameRate = cfg.FrameRate
		}

		seq := export.Sequence{
			Clips:       cfg.Timeline.ListClips(),
			Transitions: cfg.Timeline.ListTransitions(),
		}

		resp, err := export.Write(seq, req)
		if err != nil {
			if errors.Is(err, export.ErrInvalidRequest) {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			cfg.Logger.Error("export failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}
		if resp.ClipCount == 0 {
			cfg.Logger.Warn("exported EDL has no clips", "track", req.Track)
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

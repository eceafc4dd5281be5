package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/transitiond/internal/gentime"
	"github.com/heimdex/transitiond/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/clips", listClipsHandler(cfg))
		r.Post("/clips", createClipHandler(cfg))
		r.Get("/clips/{id}", getClipHandler(cfg))
		r.Patch("/clips/{id}", updateClipHandler(cfg))
		r.Delete("/clips/{id}", deleteClipHandler(cfg))

		r.Get("/transitions", listTransitionsHandler(cfg))
		r.Post("/transitions", attachTransitionHandler(cfg))
		r.Route("/transitions/{id}", func(r chi.Router) {
			r.Get("/", getTransitionHandler(cfg))
			r.Delete("/", deleteTransitionHandler(cfg))
			r.Post("/resize", resizeTransitionHandler(cfg))
			r.Post("/move", moveTransitionHandler(cfg))
			r.Post("/direction", directionHandler(cfg))
			r.Post("/clone", cloneTransitionHandler(cfg))
			r.Put("/kind", kindHandler(cfg))
		})

		r.With(LoopbackGuard()).Post("/export/edl", exportEDLHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clips, transitions := cfg.Timeline.Counts()
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:      "ok",
			Version:     cfg.Version,
			UptimeS:     int64(time.Since(cfg.StartTime).Seconds()),
			Clips:       clips,
			Transitions: transitions,
		})
	}
}

// writeServiceError maps timeline errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeline.ErrClipNotFound), errors.Is(err, timeline.ErrTransitionNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, timeline.ErrInvalidClip):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clips := cfg.Timeline.ListClips()
		resp := ClipsResponse{Clips: make([]ClipResponse, len(clips))}
		for i := range clips {
			resp.Clips[i] = ClipToResponse(&clips[i])
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateClipRequest
		if !decodeBody(w, r, &req) {
			return
		}

		clip, err := cfg.Timeline.AddClip(r.Context(), timeline.ClipInput{
			Name:      req.Name,
			MediaPath: req.MediaPath,
			Track:     req.Track,
			Start:     gentime.Seconds(req.Start),
			CropStart: gentime.Seconds(req.CropStart),
			Duration:  gentime.Seconds(req.Duration),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		WriteJSON(w, http.StatusCreated, ClipToResponse(clip))
	}
}

func getClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clip, err := cfg.Timeline.GetClip(chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ClipToResponse(clip))
	}
}

func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req UpdateClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Track == nil && req.Start == nil && req.Duration == nil {
			WriteError(w, http.StatusBadRequest, "track, start or duration is required", "BAD_REQUEST")
			return
		}

		edit := timeline.ClipEdit{Track: req.Track}
		if req.Start != nil {
			start := gentime.Seconds(*req.Start)
			edit.Start = &start
		}
		if req.Duration != nil {
			duration := gentime.Seconds(*req.Duration)
			edit.Duration = &duration
		}

		clip, err := cfg.Timeline.EditClip(r.Context(), id, edit)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, ClipToResponse(clip))
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Timeline.RemoveClip(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listTransitionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views := cfg.Timeline.ListTransitions()
		resp := TransitionsResponse{Transitions: make([]TransitionResponse, len(views))}
		for i, v := range views {
			resp.Transitions[i] = TransitionToResponse(v)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func attachTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AttachTransitionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ClipID == "" {
			WriteError(w, http.StatusBadRequest, "clip_id is required", "BAD_REQUEST")
			return
		}

		v, err := cfg.Timeline.AttachTransition(r.Context(), req.ClipID, req.Kind, req.Parameters)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TransitionToResponse(v))
	}
}

func getTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cfg.Timeline.GetTransition(chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TransitionToResponse(v))
	}
}

func deleteTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Timeline.RemoveTransition(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func resizeTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req ResizeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var (
			v   timeline.TransitionView
			err error
		)
		at := gentime.Seconds(req.Time)
		switch strings.ToLower(req.Edge) {
		case "start":
			v, err = cfg.Timeline.ResizeTransitionStart(r.Context(), id, at)
		case "end":
			v, err = cfg.Timeline.ResizeTransitionEnd(r.Context(), id, at)
		default:
			WriteError(w, http.StatusBadRequest, "edge must be start or end", "BAD_REQUEST")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TransitionToResponse(v))
	}
}

func moveTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveRequest
		if !decodeBody(w, r, &req) {
			return
		}

		v, err := cfg.Timeline.MoveTransition(r.Context(), chi.URLParam(r, "id"), gentime.Seconds(req.Delta))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TransitionToResponse(v))
	}
}

func directionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DirectionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		v, err := cfg.Timeline.SetTransitionDirection(r.Context(), chi.URLParam(r, "id"), req.Invert)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TransitionToResponse(v))
	}
}

func cloneTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cfg.Timeline.CloneTransition(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TransitionToResponse(v))
	}
}

func kindHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KindRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Kind) == "" {
			WriteError(w, http.StatusBadRequest, "kind is required", "BAD_REQUEST")
			return
		}

		v, err := cfg.Timeline.SetTransitionKind(r.Context(), chi.URLParam(r, "id"), req.Kind, req.Parameters)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TransitionToResponse(v))
	}
}

package api

import (
	"time"

	"github.com/heimdex/transitiond/internal/timeline"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	UptimeS     int64  `json:"uptime_s"`
	Clips       int    `json:"clips"`
	Transitions int    `json:"transitions"`
}

type CreateClipRequest struct {
	Name      string  `json:"name"`
	MediaPath string  `json:"media_path"`
	Track     int     `json:"track"`
	Start     float64 `json:"start"`
	CropStart float64 `json:"crop_start,omitempty"`
	Duration  float64 `json:"duration"`
}

// UpdateClipRequest moves and/or trims a clip. Absent fields are unchanged.
type UpdateClipRequest struct {
	Track    *int     `json:"track,omitempty"`
	Start    *float64 `json:"start,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

type ClipResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	MediaPath string  `json:"media_path,omitempty"`
	Track     int     `json:"track"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	CropStart float64 `json:"crop_start"`
	Duration  float64 `json:"duration"`
	CreatedAt string  `json:"created_at"`
}

type ClipsResponse struct {
	Clips []ClipResponse `json:"clips"`
}

type AttachTransitionRequest struct {
	ClipID     string            `json:"clip_id"`
	Kind       string            `json:"kind,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type ResizeRequest struct {
	Edge string  `json:"edge"`
	Time float64 `json:"time"`
}

type MoveRequest struct {
	Delta float64 `json:"delta"`
}

type DirectionRequest struct {
	Invert bool `json:"invert"`
}

type KindRequest struct {
	Kind       string            `json:"kind"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type TransitionResponse struct {
	ID           string            `json:"id"`
	Kind         string            `json:"kind"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	SingleClip   bool              `json:"single_clip"`
	RefClipID    string            `json:"ref_clip_id"`
	SecondClipID string            `json:"second_clip_id,omitempty"`
	Start        float64           `json:"start"`
	End          float64           `json:"end"`
	Duration     float64           `json:"duration"`
	StartTrack   int               `json:"start_track"`
	EndTrack     int               `json:"end_track"`
	Invert       bool              `json:"invert"`
	CreatedAt    string            `json:"created_at"`
}

type TransitionsResponse struct {
	Transitions []TransitionResponse `json:"transitions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ClipToResponse(c *timeline.Clip) ClipResponse {
	return ClipResponse{
		ID:        c.ID,
		Name:      c.Name,
		MediaPath: c.MediaPath,
		Track:     c.Track,
		Start:     c.Start.Seconds(),
		End:       c.TrackEnd().Seconds(),
		CropStart: c.CropStart.Seconds(),
		Duration:  c.Duration.Seconds(),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func TransitionToResponse(v timeline.TransitionView) TransitionResponse {
	return TransitionResponse{
		ID:           v.ID,
		Kind:         v.Kind,
		Parameters:   v.Parameters,
		SingleClip:   v.SingleClip,
		RefClipID:    v.RefClipID,
		SecondClipID: v.SecondClipID,
		Start:        v.Start.Seconds(),
		End:          v.End.Seconds(),
		Duration:     v.Duration().Seconds(),
		StartTrack:   v.StartTrack,
		EndTrack:     v.EndTrack,
		Invert:       v.Invert,
		CreatedAt:    v.CreatedAt.Format(time.RFC3339),
	}
}

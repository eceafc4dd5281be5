package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/heimdex/transitiond/internal/gentime"
	"github.com/heimdex/transitiond/internal/transition"
)

var (
	ErrClipNotFound       = errors.New("clip not found")
	ErrTransitionNotFound = errors.New("transition not found")
	ErrInvalidClip        = errors.New("invalid clip")
)

// Clip is a clip placed on a timeline track. Higher track numbers are drawn
// on top. *Clip satisfies transition.Clip.
type Clip struct {
	ID        string
	Name      string
	MediaPath string
	Track     int
	Start     gentime.Time // position on the track
	CropStart gentime.Time // in-point within the source media
	Duration  gentime.Time // active (cropped) length
	CreatedAt time.Time
}

var _ transition.Clip = (*Clip)(nil)

func (c *Clip) TrackNumber() int { return c.Track }

func (c *Clip) TrackStart() gentime.Time { return c.Start }

func (c *Clip) TrackEnd() gentime.Time { return c.Start + c.Duration }

func (c *Clip) CropDuration() gentime.Time { return c.Duration }

// Overlaps reports whether c and o share any time on the timeline. Clips
// that merely touch do not overlap.
func (c *Clip) Overlaps(o *Clip) bool {
	return c.Start < o.TrackEnd() && o.Start < c.TrackEnd()
}

// MaxTimelineLength bounds clip positions and lengths so that every end
// time on the timeline fits in a gentime.Time.
const MaxTimelineLength = 24 * gentime.Hour

// ClipInput describes a clip to add.
type ClipInput struct {
	Name      string
	MediaPath string
	Track     int
	Start     gentime.Time
	CropStart gentime.Time
	Duration  gentime.Time
}

func validateClip(track int, start, duration gentime.Time) error {
	if track < 0 {
		return fmt.Errorf("%w: track must not be negative", ErrInvalidClip)
	}
	if start < 0 {
		return fmt.Errorf("%w: start must not be negative", ErrInvalidClip)
	}
	if duration < gentime.MinTransition {
		return fmt.Errorf("%w: duration must be at least %v", ErrInvalidClip, gentime.MinTransition)
	}
	if start > MaxTimelineLength || duration > MaxTimelineLength-start {
		return fmt.Errorf("%w: clip must end within %v", ErrInvalidClip, MaxTimelineLength)
	}
	return nil
}

// TransitionView is a snapshot of a transition taken under the timeline lock.
type TransitionView struct {
	ID           string
	Kind         string
	Parameters   map[string]string
	SingleClip   bool
	RefClipID    string
	SecondClipID string
	Start        gentime.Time
	End          gentime.Time
	StartTrack   int
	EndTrack     int
	Invert       bool
	CreatedAt    time.Time
}

func (v TransitionView) Duration() gentime.Time {
	return v.End - v.Start
}

// TransitionRecord is the persisted form of a transition. Start and Duration
// are the single-clip offsets and are zero for automatic transitions.
type TransitionRecord struct {
	ID           string
	Kind         string
	Parameters   map[string]string
	SingleClip   bool
	RefClipID    string
	SecondClipID string
	Start        gentime.Time
	Duration     gentime.Time
	Invert       bool
	CreatedAt    time.Time
}

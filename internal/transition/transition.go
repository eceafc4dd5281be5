// Package transition places video transitions on the timeline.
//
// A transition is either attached to a single clip, where it is positioned by
// an offset and duration relative to that clip and can be resized or moved,
// or it is automatic, spanning the overlap of two clips on neighbouring
// tracks and recomputed from their current positions on every query.
//
// Transitions borrow their clips. The owner of the clips must remove a
// transition before the clips it refers to go away, and must serialize
// access: nothing here is safe for concurrent use.
package transition

import (
	"maps"

	"github.com/heimdex/transitiond/internal/gentime"
)

// DefaultKind is the effect used when none is chosen.
const DefaultKind = "luma"

const (
	// defaultDuration applies to the two-clip entry point called without a
	// second clip.
	defaultDuration = 1500 * gentime.Millisecond
	// defaultSingleDuration applies to NewSingleClip.
	defaultSingleDuration = 2500 * gentime.Millisecond
)

// Clip is the read-only view of a timeline clip a transition depends on.
// Implementations are compared by identity, so pointer receivers are
// expected. TrackEnd is assumed to equal TrackStart plus CropDuration.
type Clip interface {
	TrackNumber() int
	TrackStart() gentime.Time
	TrackEnd() gentime.Time
	CropDuration() gentime.Time
}

// placement is either *single or *automatic.
type placement interface {
	isPlacement()
}

type single struct {
	start    gentime.Time // offset from the reference clip's track start
	duration gentime.Time
	invert   bool
}

type automatic struct {
	second Clip
	// invert as captured at construction; Invert recomputes it live.
	invert bool
}

func (*single) isPlacement() {}
func (*automatic) isPlacement() {}

// Transition is a single transition instance.
type Transition struct {
	kind   string
	params map[string]string
	ref    Clip
	place  placement
}

// New is the two-clip entry point. With b non-nil it builds an automatic
// transition whose reference clip is the one on the higher track. With b nil
// it builds a single-clip transition on a with a default duration of 1.5s,
// shortened to a's crop duration when that is smaller.
//
// a must not be nil. A typed nil pointer passed as b is not nil.
func New(a, b Clip) *Transition {
	if b == nil {
		return newSingle(a, defaultDuration)
	}

	ref, second := a, b
	if a.TrackNumber() < b.TrackNumber() {
		ref, second = b, a
	}
	return &Transition{
		kind: DefaultKind,
		ref:  ref,
		place: &automatic{
			second: second,
			invert: a.TrackStart() < b.TrackStart(),
		},
	}
}

// NewAutomatic builds a transition spanning the overlap of a and b. The
// caller is responsible for having detected the overlap.
func NewAutomatic(a, b Clip) *Transition {
	if b == nil {
		panic("transition: NewAutomatic requires two clips")
	}
	return New(a, b)
}

// NewSingleClip attaches a transition to clip with a default duration of
// 2.5s, shortened to the clip's crop duration when that is smaller. clip
// must not be nil.
func NewSingleClip(clip Clip) *Transition {
	return newSingle(clip, defaultSingleDuration)
}

func newSingle(clip Clip, def gentime.Time) *Transition {
	return &Transition{
		kind: DefaultKind,
		ref:  clip,
		place: &single{
			duration: gentime.Min(def, clip.CropDuration()),
		},
	}
}

func (t *Transition) Kind() string {
	return t.kind
}

func (t *Transition) SetKind(kind string) {
	t.kind = kind
}

// Parameters returns a copy of the effect parameters.
func (t *Transition) Parameters() map[string]string {
	return maps.Clone(t.params)
}

func (t *Transition) SetParameters(params map[string]string) {
	t.params = maps.Clone(params)
}

func (t *Transition) IsSingleClip() bool {
	_, ok := t.place.(*single)
	return ok
}

func (t *Transition) ReferenceClip() Clip {
	return t.ref
}

// SecondClip returns nil for single-clip transitions.
func (t *Transition) SecondClip() Clip {
	if a, ok := t.place.(*automatic); ok {
		return a.second
	}
	return nil
}

// Invert reports the effective direction. Automatic transitions are
// inverted when the reference clip starts before the second clip, evaluated
// against current positions.
func (t *Transition) Invert() bool {
	switch p := t.place.(type) {
	case *automatic:
		return t.ref.TrackStart() < p.second.TrackStart()
	case *single:
		return p.invert
	}
	return false
}

// SetDirection overwrites the stored direction flag. Only single-clip
// transitions read it back.
func (t *Transition) SetDirection(invert bool) {
	switch p := t.place.(type) {
	case *automatic:
		p.invert = invert
	case *single:
		p.invert = invert
	}
}

func (t *Transition) StartTrack() int {
	return t.ref.TrackNumber()
}

// EndTrack is the second clip's track for automatic transitions. Single-clip
// transitions target two tracks below the reference to step over its audio
// track, or the track directly below when the reference is on track 0 or 1.
func (t *Transition) EndTrack() int {
	if a, ok := t.place.(*automatic); ok {
		return a.second.TrackNumber()
	}
	if start := t.StartTrack(); start > 1 {
		return start - 2
	}
	return t.StartTrack() - 1
}

// StartTime is the absolute timeline position where the transition begins.
func (t *Transition) StartTime() gentime.Time {
	switch p := t.place.(type) {
	case *automatic:
		sb := p.second.TrackStart()
		if sb > t.ref.TrackEnd() {
			return t.ref.TrackEnd() - gentime.MinTransition
		}
		return gentime.Max(t.ref.TrackStart(), sb)
	case *single:
		return t.ref.TrackStart() + p.start
	}
	return t.ref.TrackStart()
}

// EndTime is the absolute timeline position where the transition ends.
// Automatic transitions always report an interval touching the reference
// clip, even when the two clips no longer overlap.
func (t *Transition) EndTime() gentime.Time {
	switch p := t.place.(type) {
	case *automatic:
		ea := t.ref.TrackEnd()
		if p.second.TrackStart() > ea {
			return ea
		}
		eb := p.second.TrackEnd()
		if eb < t.ref.TrackStart() {
			return t.ref.TrackStart() + gentime.MinTransition
		}
		return gentime.Min(ea, eb)
	case *single:
		if p.start+p.duration > t.ref.CropDuration() {
			return t.ref.TrackEnd()
		}
		return t.ref.TrackStart() + p.start + p.duration
	}
	return t.ref.TrackEnd()
}

// Interval returns StartTime and EndTime together.
func (t *Transition) Interval() (start, end gentime.Time) {
	return t.StartTime(), t.EndTime()
}

// ResizeStart moves the start edge of a single-clip transition to at,
// keeping the end edge fixed. at is clamped to the clip start and to
// MinTransition before the end. Automatic transitions are left untouched.
// It reports whether the stored geometry changed.
func (t *Transition) ResizeStart(at gentime.Time) bool {
	p, ok := t.place.(*single)
	if !ok {
		return false
	}
	before := *p

	if at < t.ref.TrackStart() {
		at = t.ref.TrackStart()
	}
	end := t.EndTime()
	if end-at < gentime.MinTransition {
		at = end - gentime.MinTransition
	}
	p.duration = end - at
	p.start = at - t.ref.TrackStart()

	return *p != before
}

// ResizeEnd moves the end edge of a single-clip transition to at, clamped to
// the clip end and to MinTransition after the start. Automatic transitions
// are left untouched. It reports whether the stored geometry changed.
func (t *Transition) ResizeEnd(at gentime.Time) bool {
	p, ok := t.place.(*single)
	if !ok {
		return false
	}
	before := *p

	if at > t.ref.TrackEnd() {
		at = t.ref.TrackEnd()
	}
	start := t.StartTime()
	if at-start < gentime.MinTransition {
		at = start + gentime.MinTransition
	}
	p.duration = at - (t.ref.TrackStart() + p.start)

	return *p != before
}

// Move shifts a single-clip transition by delta along its clip. The offset
// stays within [0, CropDuration-MinTransition]. Automatic transitions are
// left untouched. It reports whether the stored geometry changed.
func (t *Transition) Move(delta gentime.Time) bool {
	p, ok := t.place.(*single)
	if !ok {
		return false
	}
	before := p.start
	p.start = gentime.Clamp(p.start+delta, 0, t.ref.CropDuration()-gentime.MinTransition)
	return p.start != before
}

// ReferencesClip reports whether clip is this transition's second clip. The
// reference clip is deliberately not considered; owners deleting a clip must
// also compare against ReferenceClip.
func (t *Transition) ReferencesClip(clip Clip) bool {
	if a, ok := t.place.(*automatic); ok {
		return a.second == clip
	}
	return false
}

// Clone returns a new transition on the same clips with the same kind and
// parameters. Geometry is derived afresh: a single-clip clone starts at the
// clip start with the NewSingleClip default duration.
func (t *Transition) Clone() *Transition {
	var c *Transition
	if a, ok := t.place.(*automatic); ok {
		c = New(t.ref, a.second)
	} else {
		c = NewSingleClip(t.ref)
	}
	c.kind = t.kind
	c.params = maps.Clone(t.params)
	return c
}

// Offsets returns the stored single-clip geometry. ok is false for automatic
// transitions.
func (t *Transition) Offsets() (start, duration gentime.Time, invert, ok bool) {
	p, ok := t.place.(*single)
	if !ok {
		return 0, 0, false, false
	}
	return p.start, p.duration, p.invert, true
}

// Restore replaces the stored single-clip geometry, typically with values
// read back from storage. The offset is clamped as Move clamps it and the
// duration is raised to MinTransition if shorter. Automatic transitions are
// left untouched.
func (t *Transition) Restore(start, duration gentime.Time, invert bool) {
	p, ok := t.place.(*single)
	if !ok {
		return
	}
	p.start = gentime.Clamp(start, 0, t.ref.CropDuration()-gentime.MinTransition)
	p.duration = gentime.Max(duration, gentime.MinTransition)
	p.invert = invert
}

package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/transitiond/internal/gentime"
	"github.com/heimdex/transitiond/internal/logging"
	"github.com/heimdex/transitiond/internal/metrics"
	"github.com/heimdex/transitiond/internal/transition"
)

// Operation names reported to metrics.
const (
	OpResizeStart = "resize_start"
	OpResizeEnd   = "resize_end"
	OpMove        = "move"
	OpDirection   = "direction"
)

type entry struct {
	id        string
	tr        *transition.Transition
	createdAt time.Time
}

// Service owns the clips of one timeline and the transitions between them.
// Every method takes the service lock, so transitions and the clips they
// borrow are only ever touched by one goroutine at a time.
type Service struct {
	mu          sync.Mutex
	repo        Repository
	logger      *slog.Logger
	metrics     *metrics.Metrics
	clips       map[string]*Clip
	transitions map[string]*entry
}

// NewService creates an empty timeline. repo and m may be nil; without a
// repository nothing is persisted.
func NewService(repo Repository, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		repo:        repo,
		logger:      logging.WithComponent(logger, "timeline"),
		metrics:     m,
		clips:       make(map[string]*Clip),
		transitions: make(map[string]*entry),
	}
}

// Load replaces the in-memory timeline with the repository contents.
// Transitions whose clips are missing are skipped.
func (s *Service) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	clips, err := s.repo.ListClips(ctx)
	if err != nil {
		return fmt.Errorf("failed to load clips: %w", err)
	}
	records, err := s.repo.ListTransitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load transitions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clips = make(map[string]*Clip, len(clips))
	for _, c := range clips {
		s.clips[c.ID] = c
	}

	s.transitions = make(map[string]*entry, len(records))
	for _, rec := range records {
		tr, err := s.restore(rec)
		if err != nil {
			s.logger.Warn("skipping stored transition", "transition_id", rec.ID, "error", err)
			continue
		}
		s.transitions[rec.ID] = &entry{id: rec.ID, tr: tr, createdAt: rec.CreatedAt}
	}

	s.logger.Info("timeline loaded", "clips", len(s.clips), "transitions", len(s.transitions))
	s.updateCounts()
	return nil
}

func (s *Service) restore(rec *TransitionRecord) (*transition.Transition, error) {
	ref, ok := s.clips[rec.RefClipID]
	if !ok {
		return nil, fmt.Errorf("reference clip %s: %w", rec.RefClipID, ErrClipNotFound)
	}

	var tr *transition.Transition
	if rec.SingleClip {
		tr = transition.NewSingleClip(ref)
		tr.Restore(rec.Start, rec.Duration, rec.Invert)
	} else {
		second, ok := s.clips[rec.SecondClipID]
		if !ok {
			return nil, fmt.Errorf("second clip %s: %w", rec.SecondClipID, ErrClipNotFound)
		}
		tr = transition.NewAutomatic(ref, second)
	}
	if rec.Kind != "" {
		tr.SetKind(rec.Kind)
	}
	tr.SetParameters(rec.Parameters)
	return tr, nil
}

// AddClip places a new clip and creates automatic transitions for any
// overlaps it introduces.
func (s *Service) AddClip(ctx context.Context, in ClipInput) (*Clip, error) {
	if err := validateClip(in.Track, in.Start, in.Duration); err != nil {
		return nil, err
	}
	if in.CropStart < 0 {
		return nil, fmt.Errorf("%w: crop start must not be negative", ErrInvalidClip)
	}
	if in.CropStart > MaxTimelineLength {
		return nil, fmt.Errorf("%w: crop start must be within %v", ErrInvalidClip, MaxTimelineLength)
	}

	clip := &Clip{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		MediaPath: in.MediaPath,
		Track:     in.Track,
		Start:     in.Start,
		CropStart: in.CropStart,
		Duration:  in.Duration,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.CreateClip(ctx, clip); err != nil {
			return nil, fmt.Errorf("failed to store clip: %w", err)
		}
	}
	s.clips[clip.ID] = clip
	logging.WithClipID(s.logger, clip.ID).Info("clip added", "track", clip.Track, "start", clip.Start, "duration", clip.Duration)

	if err := s.syncAutomatic(ctx); err != nil {
		return nil, err
	}
	s.updateCounts()
	c := *clip
	return &c, nil
}

func (s *Service) GetClip(id string) (*Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[id]
	if !ok {
		return nil, fmt.Errorf("clip %s: %w", id, ErrClipNotFound)
	}
	c := *clip
	return &c, nil
}

// ListClips returns copies of all clips ordered by track, then start.
func (s *Service) ListClips() []Clip {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Clip, 0, len(s.clips))
	for _, c := range s.sortedClips() {
		out = append(out, *c)
	}
	return out
}

// MoveClip repositions a clip. Automatic transitions follow it; new overlaps
// get their own automatic transition.
func (s *Service) MoveClip(ctx context.Context, id string, track int, start gentime.Time) (*Clip, error) {
	return s.EditClip(ctx, id, ClipEdit{Track: &track, Start: &start})
}

// TrimClip changes a clip's active duration. Single-clip transitions on the
// clip are pulled back inside it.
func (s *Service) TrimClip(ctx context.Context, id string, duration gentime.Time) (*Clip, error) {
	return s.EditClip(ctx, id, ClipEdit{Duration: &duration})
}

// ClipEdit lists the clip fields to change. Nil fields keep their value.
type ClipEdit struct {
	Track    *int
	Start    *gentime.Time
	Duration *gentime.Time
}

// EditClip moves and trims a clip in one step. The edited clip is validated
// as a whole before anything changes, so a rejected edit leaves the clip
// where it was.
func (s *Service) EditClip(ctx context.Context, id string, edit ClipEdit) (*Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[id]
	if !ok {
		return nil, fmt.Errorf("clip %s: %w", id, ErrClipNotFound)
	}

	next := *clip
	if edit.Track != nil {
		next.Track = *edit.Track
	}
	if edit.Start != nil {
		next.Start = *edit.Start
	}
	if edit.Duration != nil {
		next.Duration = *edit.Duration
	}
	if err := validateClip(next.Track, next.Start, next.Duration); err != nil {
		return nil, err
	}

	prev := *clip
	*clip = next
	if err := s.saveClip(ctx, clip); err != nil {
		*clip = prev
		return nil, err
	}
	log := logging.WithClipID(s.logger, id)
	if edit.Track != nil || edit.Start != nil {
		log.Info("clip moved", "track", clip.Track, "start", clip.Start)
	}
	if edit.Duration != nil {
		log.Info("clip trimmed", "duration", clip.Duration)
		s.pullInside(ctx, clip)
	}

	if err := s.syncAutomatic(ctx); err != nil {
		return nil, err
	}
	s.updateCounts()
	c := *clip
	return &c, nil
}

// pullInside re-clamps the single-clip transitions of a trimmed clip. A
// transition that fails to save keeps its clamped geometry in memory; the
// stored offsets clamp to the same interval when the timeline is reloaded.
func (s *Service) pullInside(ctx context.Context, clip *Clip) {
	for _, e := range s.transitions {
		if e.tr.ReferenceClip() != transition.Clip(clip) {
			continue
		}
		start, dur, invert, ok := e.tr.Offsets()
		if !ok {
			continue
		}
		e.tr.Restore(start, dur, invert)
		if err := s.saveTransition(ctx, e); err != nil {
			logging.WithTransitionID(s.logger, e.id).Warn("failed to store trimmed transition", "error", err)
		}
	}
}

// RemoveClip deletes a clip together with every transition that borrows it,
// whether as reference or as second clip.
func (s *Service) RemoveClip(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[id]
	if !ok {
		return fmt.Errorf("clip %s: %w", id, ErrClipNotFound)
	}

	for tid, e := range s.transitions {
		if !e.tr.ReferencesClip(clip) && e.tr.ReferenceClip() != transition.Clip(clip) {
			continue
		}
		if s.repo != nil {
			if err := s.repo.DeleteTransition(ctx, tid); err != nil {
				return fmt.Errorf("failed to delete transition %s: %w", tid, err)
			}
		}
		delete(s.transitions, tid)
		logging.WithTransitionID(s.logger, tid).Info("transition removed with clip", "clip_id", id)
	}

	if s.repo != nil {
		if err := s.repo.DeleteClip(ctx, id); err != nil {
			return fmt.Errorf("failed to delete clip: %w", err)
		}
	}
	delete(s.clips, id)
	logging.WithClipID(s.logger, id).Info("clip removed")
	s.updateCounts()
	return nil
}

// AttachTransition places a single-clip transition at the start of a clip.
// An empty kind keeps the default.
func (s *Service) AttachTransition(ctx context.Context, clipID, kind string, params map[string]string) (TransitionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[clipID]
	if !ok {
		return TransitionView{}, fmt.Errorf("clip %s: %w", clipID, ErrClipNotFound)
	}

	tr := transition.NewSingleClip(clip)
	if kind != "" {
		tr.SetKind(kind)
	}
	tr.SetParameters(params)

	e, err := s.insert(ctx, tr)
	if err != nil {
		return TransitionView{}, err
	}
	logging.WithTransitionID(s.logger, e.id).Info("transition attached", "clip_id", clipID, "kind", tr.Kind())
	s.updateCounts()
	return s.view(e), nil
}

func (s *Service) ResizeTransitionStart(ctx context.Context, id string, at gentime.Time) (TransitionView, error) {
	at = gentime.Clamp(at, 0, MaxTimelineLength)
	return s.mutate(ctx, id, OpResizeStart, func(tr *transition.Transition) bool {
		return tr.ResizeStart(at)
	})
}

func (s *Service) ResizeTransitionEnd(ctx context.Context, id string, at gentime.Time) (TransitionView, error) {
	at = gentime.Clamp(at, 0, MaxTimelineLength)
	return s.mutate(ctx, id, OpResizeEnd, func(tr *transition.Transition) bool {
		return tr.ResizeEnd(at)
	})
}

// MoveTransition shifts a single-clip transition by delta. Deltas longer
// than the timeline are clamped since no clip can absorb more.
func (s *Service) MoveTransition(ctx context.Context, id string, delta gentime.Time) (TransitionView, error) {
	delta = gentime.Clamp(delta, -MaxTimelineLength, MaxTimelineLength)
	return s.mutate(ctx, id, OpMove, func(tr *transition.Transition) bool {
		return tr.Move(delta)
	})
}

// SetTransitionDirection overwrites the stored direction. For automatic
// transitions the effective direction still follows the clips.
func (s *Service) SetTransitionDirection(ctx context.Context, id string, invert bool) (TransitionView, error) {
	return s.mutate(ctx, id, OpDirection, func(tr *transition.Transition) bool {
		before := tr.Invert()
		tr.SetDirection(invert)
		return tr.Invert() != before
	})
}

func (s *Service) mutate(ctx context.Context, id, op string, fn func(*transition.Transition) bool) (TransitionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.transitions[id]
	if !ok {
		return TransitionView{}, fmt.Errorf("transition %s: %w", id, ErrTransitionNotFound)
	}

	applied := fn(e.tr)
	s.metrics.ObserveOp(op, applied)
	if applied {
		if err := s.saveTransition(ctx, e); err != nil {
			return TransitionView{}, err
		}
	}

	start, end := e.tr.Interval()
	logging.WithTransitionID(s.logger, id).Debug("transition updated",
		"op", op, "applied", applied, "start", start, "end", end)
	return s.view(e), nil
}

// SetTransitionKind replaces the effect and its parameters.
func (s *Service) SetTransitionKind(ctx context.Context, id, kind string, params map[string]string) (TransitionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.transitions[id]
	if !ok {
		return TransitionView{}, fmt.Errorf("transition %s: %w", id, ErrTransitionNotFound)
	}
	if kind == "" {
		kind = transition.DefaultKind
	}
	e.tr.SetKind(kind)
	e.tr.SetParameters(params)
	if err := s.saveTransition(ctx, e); err != nil {
		return TransitionView{}, err
	}
	logging.WithTransitionID(s.logger, id).Info("transition kind changed", "kind", kind)
	return s.view(e), nil
}

// CloneTransition adds a copy of a transition on the same clips. Single-clip
// clones start over with default geometry.
func (s *Service) CloneTransition(ctx context.Context, id string) (TransitionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.transitions[id]
	if !ok {
		return TransitionView{}, fmt.Errorf("transition %s: %w", id, ErrTransitionNotFound)
	}

	clone, err := s.insert(ctx, e.tr.Clone())
	if err != nil {
		return TransitionView{}, err
	}
	logging.WithTransitionID(s.logger, clone.id).Info("transition cloned", "source_id", id)
	s.updateCounts()
	return s.view(clone), nil
}

func (s *Service) RemoveTransition(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transitions[id]; !ok {
		return fmt.Errorf("transition %s: %w", id, ErrTransitionNotFound)
	}
	if s.repo != nil {
		if err := s.repo.DeleteTransition(ctx, id); err != nil {
			return fmt.Errorf("failed to delete transition: %w", err)
		}
	}
	delete(s.transitions, id)
	logging.WithTransitionID(s.logger, id).Info("transition removed")
	s.updateCounts()
	return nil
}

func (s *Service) GetTransition(id string) (TransitionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.transitions[id]
	if !ok {
		return TransitionView{}, fmt.Errorf("transition %s: %w", id, ErrTransitionNotFound)
	}
	return s.view(e), nil
}

// ListTransitions returns all transitions ordered by start time, then ID.
func (s *Service) ListTransitions() []TransitionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TransitionView, 0, len(s.transitions))
	for _, e := range s.transitions {
		out = append(out, s.view(e))
	}
	slices.SortFunc(out, func(a, b TransitionView) int {
		if a.Start != b.Start {
			if a.Start < b.Start {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Counts returns the number of clips and transitions.
func (s *Service) Counts() (clips, transitions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clips), len(s.transitions)
}

// syncAutomatic ensures every overlapping pair of clips on neighbouring
// tracks has an automatic transition. Existing automatic transitions are
// kept even when their clips drift apart. Callers hold s.mu.
func (s *Service) syncAutomatic(ctx context.Context) error {
	clips := s.sortedClips()
	for i, a := range clips {
		for _, b := range clips[i+1:] {
			if abs(a.Track-b.Track) != 1 || !a.Overlaps(b) {
				continue
			}
			if s.hasAutomatic(a, b) {
				continue
			}
			e, err := s.insert(ctx, transition.NewAutomatic(a, b))
			if err != nil {
				return err
			}
			logging.WithTransitionID(s.logger, e.id).Info("automatic transition created",
				"ref_clip_id", clipID(e.tr.ReferenceClip()), "second_clip_id", clipID(e.tr.SecondClip()))
		}
	}
	return nil
}

func (s *Service) hasAutomatic(a, b *Clip) bool {
	for _, e := range s.transitions {
		if e.tr.IsSingleClip() {
			continue
		}
		ref, second := e.tr.ReferenceClip(), e.tr.SecondClip()
		if (ref == transition.Clip(a) && second == transition.Clip(b)) ||
			(ref == transition.Clip(b) && second == transition.Clip(a)) {
			return true
		}
	}
	return false
}

func (s *Service) insert(ctx context.Context, tr *transition.Transition) (*entry, error) {
	e := &entry{id: uuid.NewString(), tr: tr, createdAt: time.Now().UTC()}
	if err := s.saveTransition(ctx, e); err != nil {
		return nil, err
	}
	s.transitions[e.id] = e
	return e, nil
}

func (s *Service) saveTransition(ctx context.Context, e *entry) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveTransition(ctx, s.record(e)); err != nil {
		return fmt.Errorf("failed to store transition %s: %w", e.id, err)
	}
	return nil
}

func (s *Service) saveClip(ctx context.Context, c *Clip) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.UpdateClip(ctx, c); err != nil {
		return fmt.Errorf("failed to store clip %s: %w", c.ID, err)
	}
	return nil
}

func (s *Service) record(e *entry) *TransitionRecord {
	rec := &TransitionRecord{
		ID:           e.id,
		Kind:         e.tr.Kind(),
		Parameters:   e.tr.Parameters(),
		SingleClip:   e.tr.IsSingleClip(),
		RefClipID:    clipID(e.tr.ReferenceClip()),
		SecondClipID: clipID(e.tr.SecondClip()),
		CreatedAt:    e.createdAt,
	}
	if start, dur, invert, ok := e.tr.Offsets(); ok {
		rec.Start, rec.Duration, rec.Invert = start, dur, invert
	}
	return rec
}

func (s *Service) view(e *entry) TransitionView {
	start, end := e.tr.Interval()
	return TransitionView{
		ID:           e.id,
		Kind:         e.tr.Kind(),
		Parameters:   e.tr.Parameters(),
		SingleClip:   e.tr.IsSingleClip(),
		RefClipID:    clipID(e.tr.ReferenceClip()),
		SecondClipID: clipID(e.tr.SecondClip()),
		Start:        start,
		End:          end,
		StartTrack:   e.tr.StartTrack(),
		EndTrack:     e.tr.EndTrack(),
		Invert:       e.tr.Invert(),
		CreatedAt:    e.createdAt,
	}
}

func (s *Service) sortedClips() []*Clip {
	clips := make([]*Clip, 0, len(s.clips))
	for _, c := range s.clips {
		clips = append(clips, c)
	}
	slices.SortFunc(clips, func(a, b *Clip) int {
		switch {
		case a.Track != b.Track:
			return a.Track - b.Track
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return clips
}

func (s *Service) updateCounts() {
	s.metrics.SetCounts(len(s.clips), len(s.transitions))
}

func clipID(c transition.Clip) string {
	if tc, ok := c.(*Clip); ok && tc != nil {
		return tc.ID
	}
	return ""
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

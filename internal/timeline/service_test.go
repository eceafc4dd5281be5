package timeline

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/heimdex/transitiond/internal/db"
	"github.com/heimdex/transitiond/internal/gentime"
	"github.com/heimdex/transitiond/internal/metrics"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRepository(database.Conn())
	return database, repo
}

func sec(s float64) gentime.Time { return gentime.Seconds(s) }

func mustAddClip(t *testing.T, svc *Service, track int, start, duration float64) *Clip {
	t.Helper()
	clip, err := svc.AddClip(context.Background(), ClipInput{
		Name:     "clip",
		Track:    track,
		Start:    sec(start),
		Duration: sec(duration),
	})
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	return clip
}

func TestService_AddClip_CreatesAutomaticTransition(t *testing.T) {
	svc := NewService(nil, nil, nil)
	a := mustAddClip(t, svc, 2, 0, 10)
	b := mustAddClip(t, svc, 1, 8, 7)

	trs := svc.ListTransitions()
	if len(trs) != 1 {
		t.Fatalf("len(ListTransitions()) = %d, want 1", len(trs))
	}
	tr := trs[0]
	if tr.SingleClip {
		t.Error("automatic transition reported as single-clip")
	}
	if tr.RefClipID != a.ID || tr.SecondClipID != b.ID {
		t.Errorf("ref/second = %s/%s, want %s/%s", tr.RefClipID, tr.SecondClipID, a.ID, b.ID)
	}
	if tr.Start != sec(8) || tr.End != sec(10) {
		t.Errorf("interval = (%v, %v), want (8s, 10s)", tr.Start, tr.End)
	}
	if tr.StartTrack != 2 || tr.EndTrack != 1 {
		t.Errorf("tracks = %d->%d, want 2->1", tr.StartTrack, tr.EndTrack)
	}
}

func TestService_AutomaticDetection(t *testing.T) {
	tests := []struct {
		name    string
		trackA  int
		startA  float64
		trackB  int
		startB  float64
		wantLen int
	}{
		{"adjacent overlapping", 1, 0, 2, 4, 1},
		{"adjacent touching", 1, 0, 2, 5, 0},
		{"adjacent apart", 1, 0, 2, 9, 0},
		{"same track", 1, 0, 1, 4, 0},
		{"tracks two apart", 1, 0, 3, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil, nil, nil)
			mustAddClip(t, svc, tt.trackA, tt.startA, 5)
			mustAddClip(t, svc, tt.trackB, tt.startB, 5)

			if got := len(svc.ListTransitions()); got != tt.wantLen {
				t.Errorf("transitions = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestService_MoveClip_IsIdempotentAndLive(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	mustAddClip(t, svc, 2, 0, 10)
	b := mustAddClip(t, svc, 1, 8, 7)

	if _, err := svc.MoveClip(ctx, b.ID, 1, sec(6)); err != nil {
		t.Fatalf("MoveClip() error = %v", err)
	}

	trs := svc.ListTransitions()
	if len(trs) != 1 {
		t.Fatalf("transitions after move = %d, want 1", len(trs))
	}
	if trs[0].Start != sec(6) || trs[0].End != sec(10) {
		t.Errorf("interval after move = (%v, %v), want (6s, 10s)", trs[0].Start, trs[0].End)
	}

	// Moving the pair apart keeps the transition with a degenerate interval.
	if _, err := svc.MoveClip(ctx, b.ID, 1, sec(20)); err != nil {
		t.Fatalf("MoveClip() error = %v", err)
	}
	tr := svc.ListTransitions()[0]
	if tr.Start != sec(9.88) || tr.End != sec(10) {
		t.Errorf("degenerate interval = (%v, %v), want (9.88s, 10s)", tr.Start, tr.End)
	}
}

func TestService_RemoveClip_RemovesBorrowingTransitions(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	a := mustAddClip(t, svc, 2, 0, 10)
	b := mustAddClip(t, svc, 1, 8, 7)

	single, err := svc.AttachTransition(ctx, b.ID, "", nil)
	if err != nil {
		t.Fatalf("AttachTransition() error = %v", err)
	}

	// a is the reference clip of the automatic transition, which the
	// transition's own ReferencesClip check does not cover.
	if err := svc.RemoveClip(ctx, a.ID); err != nil {
		t.Fatalf("RemoveClip() error = %v", err)
	}
	trs := svc.ListTransitions()
	if len(trs) != 1 || trs[0].ID != single.ID {
		t.Fatalf("after removing reference clip: %+v, want only %s", trs, single.ID)
	}

	if err := svc.RemoveClip(ctx, b.ID); err != nil {
		t.Fatalf("RemoveClip() error = %v", err)
	}
	if clips, trs := svc.Counts(); clips != 0 || trs != 0 {
		t.Errorf("Counts() = (%d, %d), want (0, 0)", clips, trs)
	}
}

func TestService_RemoveClip_SecondClip(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	mustAddClip(t, svc, 2, 0, 10)
	b := mustAddClip(t, svc, 1, 8, 7)

	if err := svc.RemoveClip(ctx, b.ID); err != nil {
		t.Fatalf("RemoveClip() error = %v", err)
	}
	if got := len(svc.ListTransitions()); got != 0 {
		t.Errorf("transitions after removing second clip = %d, want 0", got)
	}
}

func TestService_SingleClipEdits(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, metrics.New())
	c := mustAddClip(t, svc, 3, 10, 10)

	tr, err := svc.AttachTransition(ctx, c.ID, "wipe", map[string]string{"softness": "0.1"})
	if err != nil {
		t.Fatalf("AttachTransition() error = %v", err)
	}
	if !tr.SingleClip || tr.Kind != "wipe" {
		t.Fatalf("attached transition = %+v", tr)
	}
	if tr.Duration() != sec(2.5) || tr.EndTrack != 1 {
		t.Errorf("duration/end track = %v/%d, want 2.5s/1", tr.Duration(), tr.EndTrack)
	}

	tr, err = svc.ResizeTransitionEnd(ctx, tr.ID, sec(10.05))
	if err != nil {
		t.Fatalf("ResizeTransitionEnd() error = %v", err)
	}
	if tr.End != sec(10.12) {
		t.Errorf("End = %v, want 10.12s", tr.End)
	}

	tr, err = svc.MoveTransition(ctx, tr.ID, sec(100))
	if err != nil {
		t.Fatalf("MoveTransition() error = %v", err)
	}
	if tr.Start != sec(19.88) || tr.End != sec(20) {
		t.Errorf("interval after move = (%v, %v), want (19.88s, 20s)", tr.Start, tr.End)
	}

	tr, err = svc.ResizeTransitionStart(ctx, tr.ID, sec(15))
	if err != nil {
		t.Fatalf("ResizeTransitionStart() error = %v", err)
	}
	if tr.Start != sec(15) || tr.End != sec(20) {
		t.Errorf("interval after resize = (%v, %v), want (15s, 20s)", tr.Start, tr.End)
	}

	tr, err = svc.SetTransitionDirection(ctx, tr.ID, true)
	if err != nil {
		t.Fatalf("SetTransitionDirection() error = %v", err)
	}
	if !tr.Invert {
		t.Error("Invert = false after SetTransitionDirection(true)")
	}
}

func TestService_AutomaticMutationsAreNoops(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	mustAddClip(t, svc, 2, 0, 10)
	mustAddClip(t, svc, 1, 8, 7)
	id := svc.ListTransitions()[0].ID

	tr, err := svc.MoveTransition(ctx, id, sec(1))
	if err != nil {
		t.Fatalf("MoveTransition() error = %v", err)
	}
	if tr.Start != sec(8) || tr.End != sec(10) {
		t.Errorf("automatic transition moved to (%v, %v)", tr.Start, tr.End)
	}
	if _, err := svc.ResizeTransitionEnd(ctx, id, sec(9)); err != nil {
		t.Fatalf("ResizeTransitionEnd() error = %v", err)
	}
	if got, _ := svc.GetTransition(id); got.End != sec(10) {
		t.Errorf("automatic transition resized to end %v", got.End)
	}
}

func TestService_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)

	if _, err := svc.MoveTransition(ctx, "missing", sec(1)); !errors.Is(err, ErrTransitionNotFound) {
		t.Errorf("MoveTransition() error = %v, want ErrTransitionNotFound", err)
	}
	if err := svc.RemoveTransition(ctx, "missing"); !errors.Is(err, ErrTransitionNotFound) {
		t.Errorf("RemoveTransition() error = %v, want ErrTransitionNotFound", err)
	}
	if _, err := svc.AttachTransition(ctx, "missing", "", nil); !errors.Is(err, ErrClipNotFound) {
		t.Errorf("AttachTransition() error = %v, want ErrClipNotFound", err)
	}
	if err := svc.RemoveClip(ctx, "missing"); !errors.Is(err, ErrClipNotFound) {
		t.Errorf("RemoveClip() error = %v, want ErrClipNotFound", err)
	}
}

func TestService_InvalidClip(t *testing.T) {
	svc := NewService(nil, nil, nil)
	tests := []ClipInput{
		{Track: 1, Start: 0, Duration: 0},
		{Track: 1, Start: sec(-1), Duration: sec(1)},
		{Track: -1, Start: 0, Duration: sec(1)},
		{Track: 1, CropStart: sec(-1), Duration: sec(1)},
		{Track: 1, Duration: sec(0.05)},
		{Track: 1, Start: sec(9.2e12), Duration: sec(1e11)},
		{Track: 1, Start: MaxTimelineLength - sec(1), Duration: sec(2)},
		{Track: 1, Duration: sec(1e300)},
		{Track: 1, CropStart: MaxTimelineLength + 1, Duration: sec(1)},
	}
	for _, in := range tests {
		if _, err := svc.AddClip(context.Background(), in); !errors.Is(err, ErrInvalidClip) {
			t.Errorf("AddClip(%+v) error = %v, want ErrInvalidClip", in, err)
		}
	}
}

func TestService_ClipLengthBounds(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)

	if _, err := svc.AddClip(ctx, ClipInput{Track: 1, Start: sec(10), Duration: sec(0.05)}); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("AddClip(50ms) error = %v, want ErrInvalidClip", err)
	}
	if _, err := svc.AddClip(ctx, ClipInput{Track: 2, Start: MaxTimelineLength - sec(1), Duration: sec(1)}); err != nil {
		t.Fatalf("AddClip(ending at the limit) error = %v", err)
	}

	c, err := svc.AddClip(ctx, ClipInput{Track: 1, Start: sec(10), Duration: gentime.MinTransition})
	if err != nil {
		t.Fatalf("AddClip(0.12s) error = %v", err)
	}
	tr, err := svc.AttachTransition(ctx, c.ID, "", nil)
	if err != nil {
		t.Fatalf("AttachTransition() error = %v", err)
	}
	got, _ := svc.ResizeTransitionStart(ctx, tr.ID, 0)
	if got.Start != sec(10) || got.End != sec(10.12) {
		t.Errorf("interval after resize = (%v, %v), want (10s, 10.12s)", got.Start, got.End)
	}

	if _, err := svc.TrimClip(ctx, c.ID, sec(0.05)); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("TrimClip(50ms) error = %v, want ErrInvalidClip", err)
	}
	if _, err := svc.MoveClip(ctx, c.ID, 1, sec(9.2e12)); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("MoveClip(past the limit) error = %v, want ErrInvalidClip", err)
	}
	after, _ := svc.GetClip(c.ID)
	if after.Start != sec(10) || after.Duration != gentime.MinTransition {
		t.Errorf("clip after rejected edits = (%v, %v), want (10s, 0.12s)", after.Start, after.Duration)
	}
}

func TestService_TransitionEditsSaturate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	c := mustAddClip(t, svc, 1, 5, 10)
	tr, _ := svc.AttachTransition(ctx, c.ID, "", nil)

	got, _ := svc.MoveTransition(ctx, tr.ID, math.MaxInt64)
	if got.End != sec(15) {
		t.Errorf("end after huge move = %v, want 15s", got.End)
	}
	got, _ = svc.MoveTransition(ctx, tr.ID, math.MinInt64)
	if got.Start != sec(5) {
		t.Errorf("start after huge negative move = %v, want 5s", got.Start)
	}
	got, _ = svc.ResizeTransitionEnd(ctx, tr.ID, math.MaxInt64)
	if got.Start != sec(5) || got.End != sec(15) {
		t.Errorf("interval after huge resize = (%v, %v), want (5s, 15s)", got.Start, got.End)
	}
}

func TestService_EditClip_RejectsWholeEdit(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	c := mustAddClip(t, svc, 1, 0, 10)

	track, start, duration := 3, sec(2), gentime.Time(0)
	if _, err := svc.EditClip(ctx, c.ID, ClipEdit{Track: &track, Start: &start, Duration: &duration}); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("EditClip() error = %v, want ErrInvalidClip", err)
	}
	got, _ := svc.GetClip(c.ID)
	if got.Track != 1 || got.Start != 0 || got.Duration != sec(10) {
		t.Errorf("clip after rejected edit = track %d (%v, %v), want track 1 (0s, 10s)", got.Track, got.Start, got.Duration)
	}

	duration = sec(4)
	edited, err := svc.EditClip(ctx, c.ID, ClipEdit{Track: &track, Start: &start, Duration: &duration})
	if err != nil {
		t.Fatalf("EditClip() error = %v", err)
	}
	if edited.Track != 3 || edited.Start != sec(2) || edited.Duration != sec(4) {
		t.Errorf("edited clip = track %d (%v, %v), want track 3 (2s, 4s)", edited.Track, edited.Start, edited.Duration)
	}
}

func TestService_TrimClip_PullsTransitionInside(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	c := mustAddClip(t, svc, 1, 0, 10)

	tr, _ := svc.AttachTransition(ctx, c.ID, "", nil)
	if _, err := svc.MoveTransition(ctx, tr.ID, sec(8)); err != nil {
		t.Fatalf("MoveTransition() error = %v", err)
	}

	if _, err := svc.TrimClip(ctx, c.ID, sec(5)); err != nil {
		t.Fatalf("TrimClip() error = %v", err)
	}
	got, _ := svc.GetTransition(tr.ID)
	if got.Start != sec(4.88) || got.End != sec(5) {
		t.Errorf("interval after trim = (%v, %v), want (4.88s, 5s)", got.Start, got.End)
	}
}

type failingRepository struct {
	Repository
	failTransitions bool
}

func (r *failingRepository) SaveTransition(ctx context.Context, rec *TransitionRecord) error {
	if r.failTransitions {
		return errors.New("disk I/O error")
	}
	return r.Repository.SaveTransition(ctx, rec)
}

func TestService_TrimClip_TransitionSaveFails(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	failing := &failingRepository{Repository: repo}
	svc := NewService(failing, nil, nil)
	c := mustAddClip(t, svc, 1, 0, 10)
	tr, _ := svc.AttachTransition(ctx, c.ID, "", nil)
	if _, err := svc.MoveTransition(ctx, tr.ID, sec(8)); err != nil {
		t.Fatalf("MoveTransition() error = %v", err)
	}

	failing.failTransitions = true
	trimmed, err := svc.TrimClip(ctx, c.ID, sec(5))
	if err != nil {
		t.Fatalf("TrimClip() error = %v", err)
	}
	if trimmed.Duration != sec(5) {
		t.Errorf("trimmed duration = %v, want 5s", trimmed.Duration)
	}
	got, _ := svc.GetTransition(tr.ID)
	if got.Start != sec(4.88) || got.End != sec(5) {
		t.Errorf("interval after trim = (%v, %v), want (4.88s, 5s)", got.Start, got.End)
	}

	reloaded := NewService(repo, nil, nil)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	clip, _ := reloaded.GetClip(c.ID)
	if clip.Duration != sec(5) {
		t.Errorf("reloaded duration = %v, want 5s", clip.Duration)
	}
	got, _ = reloaded.GetTransition(tr.ID)
	if got.Start != sec(4.88) || got.End != sec(5) {
		t.Errorf("reloaded interval = (%v, %v), want (4.88s, 5s)", got.Start, got.End)
	}
}

func TestService_CloneTransition(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	c := mustAddClip(t, svc, 1, 0, 10)

	tr, _ := svc.AttachTransition(ctx, c.ID, "wipe", nil)
	svc.MoveTransition(ctx, tr.ID, sec(3))

	clone, err := svc.CloneTransition(ctx, tr.ID)
	if err != nil {
		t.Fatalf("CloneTransition() error = %v", err)
	}
	if clone.ID == tr.ID {
		t.Fatal("clone shares ID with source")
	}
	if clone.Start != 0 || clone.Duration() != sec(2.5) || clone.Kind != "wipe" {
		t.Errorf("clone = %+v, want fresh default geometry with kind wipe", clone)
	}
}

func TestService_PersistAndLoad(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	svc := NewService(repo, nil, nil)
	a := mustAddClip(t, svc, 2, 0, 10)
	mustAddClip(t, svc, 1, 8, 7)
	single, _ := svc.AttachTransition(ctx, a.ID, "luma", map[string]string{"resource": "wipe.pgm"})
	svc.MoveTransition(ctx, single.ID, sec(1))
	svc.ResizeTransitionEnd(ctx, single.ID, sec(2))
	svc.SetTransitionDirection(ctx, single.ID, true)

	reloaded := NewService(repo, nil, nil)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if clips, trs := reloaded.Counts(); clips != 2 || trs != 2 {
		t.Fatalf("Counts() = (%d, %d), want (2, 2)", clips, trs)
	}
	got, err := reloaded.GetTransition(single.ID)
	if err != nil {
		t.Fatalf("GetTransition() error = %v", err)
	}
	if got.Start != sec(1) || got.End != sec(2) || !got.Invert {
		t.Errorf("reloaded single = (%v, %v, invert=%v), want (1s, 2s, true)", got.Start, got.End, got.Invert)
	}
	if got.Parameters["resource"] != "wipe.pgm" {
		t.Errorf("reloaded parameters = %v", got.Parameters)
	}

	// Loading must not duplicate the automatic transition on the next edit.
	if _, err := reloaded.MoveClip(ctx, a.ID, 2, sec(1)); err != nil {
		t.Fatalf("MoveClip() error = %v", err)
	}
	if _, trs := reloaded.Counts(); trs != 2 {
		t.Errorf("transitions after reload and move = %d, want 2", trs)
	}
}

func TestService_ConcurrentEdits(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	c := mustAddClip(t, svc, 1, 0, 10)
	tr, _ := svc.AttachTransition(ctx, c.ID, "", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i%2 == 0 {
					svc.MoveTransition(ctx, tr.ID, sec(0.5))
				} else {
					svc.ResizeTransitionStart(ctx, tr.ID, sec(float64(j%10)))
				}
				svc.ListTransitions()
			}
		}(i)
	}
	wg.Wait()

	got, _ := svc.GetTransition(tr.ID)
	if got.End-got.Start < gentime.MinTransition || got.Start < 0 || got.End > sec(10) {
		t.Errorf("interval after concurrent edits = (%v, %v)", got.Start, got.End)
	}
}

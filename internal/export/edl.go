package export

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/heimdex/transitiond/internal/gentime"
	"github.com/heimdex/transitiond/internal/timeline"
)

// Edit types used in the event line.
const (
	EditCut      = "C"
	EditDissolve = "D"
	EditWipe     = "W001"
)

// Sequence is the timeline content handed to the EDL writer.
type Sequence struct {
	Clips       []timeline.Clip
	Transitions []timeline.TransitionView
}

// EditType maps a transition kind to its CMX3600 edit type. Luma and mix
// transitions are written as dissolves, everything else as a wipe.
func EditType(kind string) string {
	switch strings.ToLower(kind) {
	case "luma", "dissolve", "mix", "":
		return EditDissolve
	default:
		return EditWipe
	}
}

// Result is a generated EDL and the number of events of each kind in it.
type Result struct {
	Text        string
	Clips       int
	Transitions int
}

// GenerateEDL writes the clips on track as cut events in timeline order. Each
// transition touching track follows the event of the clip it belongs to, with
// its length in frames.
func GenerateEDL(seq Sequence, track int, title string, frameRate float64) Result {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01
	tc := func(t gentime.Time) string { return t.Timecode(fps) }

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		tc = func(t gentime.Time) string { return t.DropFrameTimecode(frameRate) }
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	var clips []timeline.Clip
	for _, c := range seq.Clips {
		if c.Track == track {
			clips = append(clips, c)
		}
	}
	slices.SortFunc(clips, func(a, b timeline.Clip) int {
		return cmp.Compare(a.Start, b.Start)
	})

	written := make(map[string]bool)
	event := 0
	for _, clip := range clips {
		event++
		reel := ReelName(clip.Name)
		srcIn := tc(clip.CropStart)
		srcOut := tc(clip.CropStart + clip.Duration)
		recIn := tc(clip.Start)
		recOut := tc(clip.TrackEnd())

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s %-4s     %s %s %s %s", event, reel, "V", EditCut, srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.Name),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)

		for _, tr := range seq.Transitions {
			if written[tr.ID] || (tr.RefClipID != clip.ID && tr.SecondClipID != clip.ID) {
				continue
			}
			if tr.StartTrack != track && tr.EndTrack != track {
				continue
			}
			written[tr.ID] = true
			event++
			lines = append(lines, transitionEvent(event, reel, tr, fps, tc)...)
		}
	}

	lines = append(lines, "")
	return Result{
		Text:        strings.Join(lines, "\n"),
		Clips:       len(clips),
		Transitions: len(written),
	}
}

func transitionEvent(event int, reel string, tr timeline.TransitionView, fps int, tc func(gentime.Time) string) []string {
	frames := FrameCount(tr.Duration(), fps)
	recIn := tc(tr.Start)
	recOut := tc(tr.End)

	out := []string{
		fmt.Sprintf("%03d  %-8s %-5s %-4s %03d %s %s %s %s", event, reel, "V", EditType(tr.Kind), frames, recIn, recOut, recIn, recOut),
		fmt.Sprintf("* TRANSITION:  %s", tr.Kind),
	}
	if tr.Invert {
		out = append(out, "* DIRECTION:  REVERSE")
	}
	return out
}

// FrameCount is the EDL frame count for a transition length.
func FrameCount(d gentime.Time, fps int) int {
	return max(d.Frames(float64(fps)), 1)
}

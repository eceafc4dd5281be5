// Package gentime provides the fixed-point timeline timestamp used by clips
// and transitions. Values are whole microseconds so comparisons are exact.
package gentime

import (
	"fmt"
	"math"
)

// Time is a signed timeline position or duration in microseconds.
type Time int64

const (
	Microsecond Time = 1
	Millisecond Time = 1000 * Microsecond
	Second      Time = 1000 * Millisecond
	Minute      Time = 60 * Second
	Hour        Time = 60 * Minute

	// MinTransition is the shortest interval a transition may cover,
	// about three frames.
	MinTransition Time = 120 * Millisecond
)

// Seconds converts floating point seconds, rounding to the nearest
// microsecond. Values outside the int64 range saturate and NaN is zero.
func Seconds(s float64) Time {
	us := math.Round(s * float64(Second))
	switch {
	case math.IsNaN(us):
		return 0
	case us >= math.MaxInt64:
		return math.MaxInt64
	case us <= math.MinInt64:
		return math.MinInt64
	}
	return Time(us)
}

// Milliseconds converts whole milliseconds.
func Milliseconds(ms int64) Time {
	return Time(ms) * Millisecond
}

func (t Time) Seconds() float64 {
	return float64(t) / float64(Second)
}

// Ms returns t truncated to whole milliseconds.
func (t Time) Ms() int64 {
	return int64(t / Millisecond)
}

// Frames returns t expressed in frames at fps, rounded to the nearest frame.
func (t Time) Frames(fps float64) int {
	return int(math.Round(t.Seconds() * fps))
}

func (t Time) String() string {
	return fmt.Sprintf("%.3fs", t.Seconds())
}

func Max(a, b Time) Time {
	if a > b {
		return a
	}
	return b
}

func Min(a, b Time) Time {
	if a < b {
		return a
	}
	return b
}

// Clamp bounds t to [lo, hi]. When lo > hi, lo wins.
func Clamp(t, lo, hi Time) Time {
	if t > hi {
		t = hi
	}
	if t < lo {
		t = lo
	}
	return t
}

// Timecode renders t as HH:MM:SS:FF at an integer frame rate.
func (t Time) Timecode(fps int) string {
	if fps <= 0 {
		fps = 30
	}
	totalFrames := t.Frames(float64(fps))
	if totalFrames < 0 {
		totalFrames = 0
	}
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}

// DropFrameTimecode renders t as HH:MM:SS;FF in SMPTE drop-frame notation
// for 29.97 or 59.94 fps. Frames are counted at the real rate and labelled
// at the nominal one, skipping the first labels of every minute that is not
// a multiple of ten.
func (t Time) DropFrameTimecode(fps float64) string {
	nominal := int(math.Round(fps))
	if nominal <= 0 {
		nominal, fps = 30, 29.97
	}
	drop := nominal / 15
	framesPerMinute := nominal*60 - drop
	framesPer10Minutes := int(math.Round(fps * 600))

	n := max(t.Frames(fps), 0)
	d := n / framesPer10Minutes
	m := n % framesPer10Minutes
	n += drop * 9 * d
	if m > drop {
		n += drop * ((m - drop) / framesPerMinute)
	}

	frames := n % nominal
	totalSeconds := n / nominal
	return fmt.Sprintf("%02d:%02d:%02d;%02d", totalSeconds/3600, totalSeconds/60%60, totalSeconds%60, frames)
}

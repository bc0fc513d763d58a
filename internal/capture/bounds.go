package capture

import (
	"fmt"

	"github.com/kdimtricp/mediasnap/internal/models"
)

// MaxClipDuration is the longest clip, in seconds, that will be extracted.
const MaxClipDuration = 600.0

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// clampToMedia bounds t to [0, duration]. A non-positive duration means the
// upstream did not report one, so only the lower bound applies; clamping to
// 0 there would pin every capture of that session to the first frame.
func clampToMedia(t, duration float64) float64 {
	t = max(0, t)
	if duration > 0 {
		t = min(t, duration)
	}
	return t
}

// ScreenshotTimestamp is the media position a screenshot taken offset seconds
// from the session's playhead lands on.
func ScreenshotTimestamp(session models.Session, offset float64) float64 {
	return clampToMedia(session.PositionSeconds+offset, session.DurationSeconds)
}

// ClipBounds resolves a clip request against the session's playhead.
// Relative requests cover the span between the playhead and
// playhead+relative whichever way it points. Explicit bounds are clamped to
// the media but never reordered. A request must use exactly one of the two
// forms.
func ClipBounds(session models.Session, req models.ClipRequest) (start, end float64, err error) {
	explicit := req.StartSeconds != nil || req.EndSeconds != nil

	switch {
	case req.RelativeSeconds != nil && explicit:
		return 0, 0, validationErrorf("provide either relative_seconds or start_seconds + end_seconds, not both")
	case req.RelativeSeconds != nil:
		start = max(0, session.PositionSeconds+*req.RelativeSeconds)
		end = session.PositionSeconds
		if start > end {
			start, end = end, start
		}
	case req.StartSeconds != nil && req.EndSeconds != nil:
		start = max(0, *req.StartSeconds)
		end = *req.EndSeconds
		if session.DurationSeconds > 0 {
			end = min(end, session.DurationSeconds)
		}
	default:
		return 0, 0, validationErrorf("provide relative_seconds or start_seconds + end_seconds")
	}

	duration := end - start
	if duration <= 0 {
		return 0, 0, validationErrorf("clip duration must be positive")
	}
	if duration > MaxClipDuration {
		return 0, 0, validationErrorf("maximum clip duration is %d minutes", int(MaxClipDuration/60))
	}
	return start, end, nil
}

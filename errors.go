package kinopy

import "errors"

// Error kinds returned by the builder. Callers can classify failures with
// errors.Is; the wrapped message carries the segment or file that caused it.
var (
	// ErrConfiguration marks invalid input to the timeline: overlay windows
	// that outrun the final timeline, freeze frames sampled past the end of
	// their source, malformed positions or colors, odd canvas dimensions.
	ErrConfiguration = errors.New("configuration error")

	// ErrResource marks a missing optional resource such as a font file.
	// The engine recovers from these internally (falling back to the
	// built-in face) and only logs them; they never abort a render.
	ErrResource = errors.New("resource unavailable")

	// ErrExternal marks failures of external collaborators: unreadable
	// source clips, a missing or failing ffmpeg/ffprobe binary. These are
	// fatal and the render produces no output file.
	ErrExternal = errors.New("external failure")
)

package units

import "fmt"

const (
	msPerSecond = 1000
	secsPerHour = 3600
	secsPerMin  = 60
)

// FormatDuration renders milliseconds as H:MM:SS when the value reaches an
// hour, otherwise M:SS. Sub-second remainders are truncated, never rounded.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / msPerSecond
	hours := total / secsPerHour
	mins := (total % secsPerHour) / secsPerMin
	secs := total % secsPerMin
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}

// FormatProgress renders "elapsed / total".
func FormatProgress(elapsedMs, durationMs int64) string {
	return FormatDuration(elapsedMs) + " / " + FormatDuration(durationMs)
}

// EpisodeCode renders S01E05 style codes. Either part may be nil; when both
// are nil the result is empty.
func EpisodeCode(season, episode *int) string {
	switch {
	case season != nil && episode != nil:
		return fmt.Sprintf("S%02dE%02d", *season, *episode)
	case season != nil:
		return fmt.Sprintf("S%02d", *season)
	case episode != nil:
		return fmt.Sprintf("E%02d", *episode)
	default:
		return ""
	}
}

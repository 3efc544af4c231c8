package models

import (
	"fmt"

	"plexpresence/internal/units"
)

type MediaKind string

const (
	MediaKindMovie   MediaKind = "movie"
	MediaKindEpisode MediaKind = "episode"
	MediaKindTrack   MediaKind = "track"
	MediaKindUnknown MediaKind = "unknown"
)

// MediaKinds lists every kind. Renderers that switch on MediaKind pin its
// length so a new kind fails to compile until they handle it.
var MediaKinds = [...]MediaKind{MediaKindMovie, MediaKindEpisode, MediaKindTrack, MediaKindUnknown}

const MediaKindCount = len(MediaKinds)

var _ = [1]struct{}{}[MediaKindCount-4]

type PlayState string

const (
	PlayStatePlaying   PlayState = "playing"
	PlayStatePaused    PlayState = "paused"
	PlayStateBuffering PlayState = "buffering"
)

// PlaybackRecord is one normalized "now playing" snapshot. It is built once
// per poll and never mutated afterwards.
type PlaybackRecord struct {
	Title          string
	Kind           MediaKind
	Year           *int
	SeriesOrArtist *string // show for episodes, artist for tracks
	AlbumOrSeason  *string // season label for episodes, album for tracks
	SeasonNumber   *int
	EpisodeNumber  *int
	Artwork        *string // public image URL, when one is known
	IMDbID         *string // e.g. "tt0903747"
	DurationMs     *int64
	ElapsedMs      *int64
	State          PlayState
}

// DisplayTitle is the first presence line, e.g. "Show - Pilot" or "Dune (2021)".
func (r *PlaybackRecord) DisplayTitle() string {
	switch r.Kind {
	case MediaKindEpisode, MediaKindTrack:
		if r.SeriesOrArtist != nil {
			return *r.SeriesOrArtist + " - " + r.Title
		}
		return r.Title
	case MediaKindMovie, MediaKindUnknown:
		if r.Year != nil {
			return fmt.Sprintf("%s (%d)", r.Title, *r.Year)
		}
		return r.Title
	}
	return r.Title
}

func (r *PlaybackRecord) StateText() string {
	switch r.State {
	case PlayStatePaused:
		return "Paused"
	case PlayStateBuffering:
		return "Buffering"
	default:
		return "Playing"
	}
}

// ProgressText returns "elapsed / duration" when both are known.
func (r *PlaybackRecord) ProgressText() (string, bool) {
	if r.ElapsedMs == nil || r.DurationMs == nil {
		return "", false
	}
	return units.FormatProgress(*r.ElapsedMs, *r.DurationMs), true
}

// StateLine is the second presence line: a kind-specific decoration joined
// with the progress text.
func (r *PlaybackRecord) StateLine() string {
	progress, _ := r.ProgressText()
	switch r.Kind {
	case MediaKindEpisode:
		return joinDecoration(units.EpisodeCode(r.SeasonNumber, r.EpisodeNumber), progress)
	case MediaKindTrack:
		album := ""
		if r.AlbumOrSeason != nil {
			album = *r.AlbumOrSeason
		}
		return joinDecoration(album, progress)
	case MediaKindMovie, MediaKindUnknown:
		if progress != "" {
			return progress
		}
		return r.StateText()
	}
	return progress
}

func joinDecoration(decoration, progress string) string {
	switch {
	case decoration != "" && progress != "":
		return decoration + " | " + progress
	case decoration != "":
		return decoration
	default:
		return progress
	}
}

// StatusText is the tray status line.
func (r *PlaybackRecord) StatusText() string {
	if progress, ok := r.ProgressText(); ok {
		return fmt.Sprintf("%s [%s]", r.DisplayTitle(), progress)
	}
	return fmt.Sprintf("%s (%s)", r.DisplayTitle(), r.StateText())
}

// IdentityKey changes whenever the title, state or displayed progress does.
// It is only used to suppress duplicate status updates.
func (r *PlaybackRecord) IdentityKey() string {
	progress, _ := r.ProgressText()
	return r.Title + "-" + string(r.State) + "-" + progress
}

// RemainingMs is duration minus elapsed. It may be negative when the server
// reports an offset past the end.
func (r *PlaybackRecord) RemainingMs() (int64, bool) {
	if r.ElapsedMs == nil || r.DurationMs == nil {
		return 0, false
	}
	return *r.DurationMs - *r.ElapsedMs, true
}

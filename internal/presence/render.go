package presence

import (
	"time"

	"plexpresence/internal/models"
	"plexpresence/internal/presence/ipc"
)

const (
	smallImage = "plex"
	smallText  = "Plex"
)

// Pin the kind count; kindAsset below must handle every kind.
var _ = [1]struct{}{}[models.MediaKindCount-4]

// kindAsset returns the pre-registered application asset for a kind.
func kindAsset(k models.MediaKind) (image, text string) {
	switch k {
	case models.MediaKindMovie:
		return "movie", "Watching a Movie"
	case models.MediaKindEpisode:
		return "tv", "Watching TV"
	case models.MediaKindTrack:
		return "music", "Listening to Music"
	case models.MediaKindUnknown:
		return "plex", "Plex"
	}
	return "plex", "Plex"
}

// Render builds the activity shown for rec at time now.
func Render(rec *models.PlaybackRecord, now time.Time) *ipc.Activity {
	largeImage, largeText := kindAsset(rec.Kind)
	if rec.Artwork != nil && *rec.Artwork != "" {
		largeImage, largeText = *rec.Artwork, rec.DisplayTitle()
	}

	a := &ipc.Activity{
		Details: rec.DisplayTitle(),
		State:   rec.StateLine(),
		Assets: &ipc.Assets{
			LargeImage: largeImage,
			LargeText:  largeText,
			SmallImage: smallImage,
			SmallText:  smallText,
		},
	}

	if rec.State == models.PlayStatePlaying {
		if remaining, ok := rec.RemainingMs(); ok {
			a.Timestamps = &ipc.Timestamps{End: now.Unix() + remaining/1000}
		}
	}
	return a
}

package media

import (
	"context"

	"plexpresence/internal/models"
)

// SessionSource yields the current playback on a media server. NowPlaying
// returns a nil record when nothing is playing.
type SessionSource interface {
	Name() string
	NowPlaying(ctx context.Context) (*models.PlaybackRecord, error)
	TestConnection(ctx context.Context) error
}

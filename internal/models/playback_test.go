package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }
func msPtr(v int64) *int64    { return &v }

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name string
		rec  PlaybackRecord
		want string
	}{
		{"episode with show", PlaybackRecord{Kind: MediaKindEpisode, Title: "Pilot", SeriesOrArtist: strPtr("Show")}, "Show - Pilot"},
		{"episode without show", PlaybackRecord{Kind: MediaKindEpisode, Title: "Pilot"}, "Pilot"},
		{"track with artist", PlaybackRecord{Kind: MediaKindTrack, Title: "Song", SeriesOrArtist: strPtr("Band")}, "Band - Song"},
		{"track ignores year", PlaybackRecord{Kind: MediaKindTrack, Title: "Song", Year: intPtr(1999)}, "Song"},
		{"movie with year", PlaybackRecord{Kind: MediaKindMovie, Title: "Dune", Year: intPtr(2021)}, "Dune (2021)"},
		{"movie without year", PlaybackRecord{Kind: MediaKindMovie, Title: "Dune"}, "Dune"},
		{"unknown with year", PlaybackRecord{Kind: MediaKindUnknown, Title: "Clip", Year: intPtr(2020)}, "Clip (2020)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.DisplayTitle())
		})
	}
}

func TestProgressText(t *testing.T) {
	rec := PlaybackRecord{DurationMs: msPtr(3725000), ElapsedMs: msPtr(65000)}
	got, ok := rec.ProgressText()
	assert.True(t, ok)
	assert.Equal(t, "1:05 / 1:02:05", got)

	_, ok = (&PlaybackRecord{DurationMs: msPtr(1000)}).ProgressText()
	assert.False(t, ok, "elapsed missing")
	_, ok = (&PlaybackRecord{ElapsedMs: msPtr(1000)}).ProgressText()
	assert.False(t, ok, "duration missing")
}

func TestStateLine(t *testing.T) {
	progress := func(r PlaybackRecord) PlaybackRecord {
		r.DurationMs = msPtr(120000)
		r.ElapsedMs = msPtr(30000)
		return r
	}
	tests := []struct {
		name string
		rec  PlaybackRecord
		want string
	}{
		{"episode both", progress(PlaybackRecord{Kind: MediaKindEpisode, SeasonNumber: intPtr(1), EpisodeNumber: intPtr(5)}), "S01E05 | 0:30 / 2:00"},
		{"episode decoration only", PlaybackRecord{Kind: MediaKindEpisode, SeasonNumber: intPtr(2)}, "S02"},
		{"episode progress only", progress(PlaybackRecord{Kind: MediaKindEpisode}), "0:30 / 2:00"},
		{"episode neither", PlaybackRecord{Kind: MediaKindEpisode}, ""},
		{"track both", progress(PlaybackRecord{Kind: MediaKindTrack, AlbumOrSeason: strPtr("Album")}), "Album | 0:30 / 2:00"},
		{"track album only", PlaybackRecord{Kind: MediaKindTrack, AlbumOrSeason: strPtr("Album")}, "Album"},
		{"track progress only", progress(PlaybackRecord{Kind: MediaKindTrack}), "0:30 / 2:00"},
		{"track neither", PlaybackRecord{Kind: MediaKindTrack}, ""},
		{"movie progress", progress(PlaybackRecord{Kind: MediaKindMovie}), "0:30 / 2:00"},
		{"movie falls back to state", PlaybackRecord{Kind: MediaKindMovie, State: PlayStatePaused}, "Paused"},
		{"unknown falls back to state", PlaybackRecord{Kind: MediaKindUnknown, State: PlayStateBuffering}, "Buffering"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.StateLine())
		})
	}
}

func TestStatusText(t *testing.T) {
	rec := PlaybackRecord{Kind: MediaKindMovie, Title: "Dune", Year: intPtr(2021), State: PlayStatePaused}
	assert.Equal(t, "Dune (2021) (Paused)", rec.StatusText())

	rec.DurationMs = msPtr(60000)
	rec.ElapsedMs = msPtr(1000)
	assert.Equal(t, "Dune (2021) [0:01 / 1:00]", rec.StatusText())
}

func TestIdentityKey(t *testing.T) {
	a := PlaybackRecord{Title: "Dune", State: PlayStatePlaying, DurationMs: msPtr(60000), ElapsedMs: msPtr(1000)}
	b := a
	assert.Equal(t, a.IdentityKey(), b.IdentityKey())

	b.State = PlayStatePaused
	assert.NotEqual(t, a.IdentityKey(), b.IdentityKey())

	c := a
	c.ElapsedMs = msPtr(2000)
	assert.NotEqual(t, a.IdentityKey(), c.IdentityKey())

	// sub-second progress does not change the displayed text
	d := a
	d.ElapsedMs = msPtr(1500)
	assert.Equal(t, a.IdentityKey(), d.IdentityKey())
}

func TestRemainingToleratesSkew(t *testing.T) {
	rec := PlaybackRecord{DurationMs: msPtr(1000), ElapsedMs: msPtr(5000)}
	rem, ok := rec.RemainingMs()
	assert.True(t, ok)
	assert.Equal(t, int64(-4000), rem)

	_, ok = (&PlaybackRecord{}).RemainingMs()
	assert.False(t, ok)
}

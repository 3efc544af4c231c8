package plex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"plexpresence/internal/httputil"
	xlog "plexpresence/internal/log"
	"plexpresence/internal/models"
)

var (
	ErrTransport      = errors.New("plex: transport error")
	ErrDecode         = errors.New("plex: decode error")
	ErrServerRejected = errors.New("plex: server rejected request")
)

// ServerRejectedError reports a non-2xx answer from the server.
type ServerRejectedError struct {
	StatusCode int
	Body       string
}

func (e *ServerRejectedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("plex returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("plex returned status %d: %s", e.StatusCode, e.Body)
}

func (e *ServerRejectedError) Is(target error) bool { return target == ErrServerRejected }

// ArtworkResolver finds a public poster URL for an IMDb id. An empty
// result means there is none.
type ArtworkResolver interface {
	Poster(ctx context.Context, imdbID string) (string, error)
}

type Server struct {
	name    string
	url     string
	token   string
	client  *http.Client
	artwork ArtworkResolver
	logger  zerolog.Logger
}

type Option func(*Server)

// WithArtwork resolves posters for sessions that carry an IMDb id.
func WithArtwork(r ArtworkResolver) Option {
	return func(s *Server) { s.artwork = r }
}

func New(serverURL, token string, opts ...Option) *Server {
	s := &Server{
		name:   "plex",
		url:    strings.TrimRight(serverURL, "/"),
		token:  token,
		client: httputil.NewClient(),
		logger: xlog.WithComponent("plex"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Name() string { return s.name }
func (s *Server) URL() string  { return s.url }

// TestConnection issues a bare GET against the server root. It is used once
// at startup to fail fast on a bad URL or token.
func (s *Server) TestConnection(ctx context.Context) error {
	resp, err := s.get(ctx, "/")
	if err != nil {
		return err
	}
	httputil.DrainBody(resp)
	return nil
}

// NowPlaying returns the first active session, or nil when nothing is
// playing. Servers with several concurrent sessions are not disambiguated.
func (s *Server) NowPlaying(ctx context.Context) (*models.PlaybackRecord, error) {
	resp, err := s.get(ctx, "/status/sessions?includeGuids=1")
	if err != nil {
		return nil, err
	}
	defer httputil.DrainBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading sessions: %v", ErrTransport, err)
	}
	rec, err := parseSessions(body)
	if err != nil || rec == nil {
		return rec, err
	}
	s.resolveArtwork(ctx, rec)
	return rec, nil
}

// resolveArtwork fills in rec.Artwork when a poster is known. Lookup
// failures leave the kind icon in place.
func (s *Server) resolveArtwork(ctx context.Context, rec *models.PlaybackRecord) {
	if s.artwork == nil || rec.IMDbID == nil {
		return
	}
	poster, err := s.artwork.Poster(ctx, *rec.IMDbID)
	if err != nil {
		s.logger.Debug().Err(err).Str("imdb_id", *rec.IMDbID).Msg("poster lookup failed")
		return
	}
	if poster != "" {
		rec.Artwork = &poster
	}
}

func (s *Server) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		httputil.DrainBody(resp)
		s.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("plex rejected request")
		return nil, &ServerRejectedError{StatusCode: resp.StatusCode, Body: httputil.Truncate(snippet, 120)}
	}
	return resp, nil
}

func (s *Server) setHeaders(req *http.Request) {
	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("Accept", "application/json")
}

type sessionsResponse struct {
	MediaContainer mediaContainer `json:"MediaContainer"`
}

type mediaContainer struct {
	Size     int        `json:"size"`
	Metadata []metadata `json:"Metadata"`
}

type metadata struct {
	Type             *string `json:"type"`
	Title            *string `json:"title"`
	Year             *int    `json:"year"`
	GrandparentTitle *string `json:"grandparentTitle"`
	ParentTitle      *string `json:"parentTitle"`
	ParentIndex      *int    `json:"parentIndex"`
	Index            *int    `json:"index"`
	Duration         *int64  `json:"duration"`
	ViewOffset       *int64  `json:"viewOffset"`
	Guid             []guid  `json:"Guid"`
	Player           *player `json:"Player"`
}

type guid struct {
	ID string `json:"id"`
}

type player struct {
	State *string `json:"state"`
}

func parseSessions(data []byte) (*models.PlaybackRecord, error) {
	var sr sessionsResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("%w: parsing plex JSON: %v", ErrDecode, err)
	}
	if len(sr.MediaContainer.Metadata) == 0 {
		return nil, nil
	}
	rec := buildRecord(sr.MediaContainer.Metadata[0])
	return &rec, nil
}

func buildRecord(m metadata) models.PlaybackRecord {
	title := "Unknown"
	if m.Title != nil {
		title = *m.Title
	}
	var state *string
	if m.Player != nil {
		state = m.Player.State
	}
	return models.PlaybackRecord{
		Title:          title,
		Kind:           plexMediaKind(m.Type),
		Year:           m.Year,
		SeriesOrArtist: m.GrandparentTitle,
		AlbumOrSeason:  m.ParentTitle,
		SeasonNumber:   m.ParentIndex,
		EpisodeNumber:  m.Index,
		// Plex thumbnails need the token, so only a resolved poster is used.
		Artwork:    nil,
		IMDbID:     imdbID(m.Guid),
		DurationMs: m.Duration,
		ElapsedMs:  m.ViewOffset,
		State:      plexPlayState(state),
	}
}

func imdbID(guids []guid) *string {
	for _, g := range guids {
		if id, ok := strings.CutPrefix(g.ID, "imdb://"); ok && id != "" {
			return &id
		}
	}
	return nil
}

func plexMediaKind(t *string) models.MediaKind {
	if t == nil {
		return models.MediaKindUnknown
	}
	switch *t {
	case "movie":
		return models.MediaKindMovie
	case "episode":
		return models.MediaKindEpisode
	case "track":
		return models.MediaKindTrack
	default:
		return models.MediaKindUnknown
	}
}

// plexPlayState fails open: anything unrecognised, including a missing
// Player element, is treated as playing.
func plexPlayState(s *string) models.PlayState {
	if s == nil {
		return models.PlayStatePlaying
	}
	switch *s {
	case "paused":
		return models.PlayStatePaused
	case "buffering":
		return models.PlayStateBuffering
	default:
		return models.PlayStatePlaying
	}
}

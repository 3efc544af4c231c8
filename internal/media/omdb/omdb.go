// Package omdb looks up public poster URLs by IMDb id.
package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"plexpresence/internal/httputil"
	xlog "plexpresence/internal/log"
)

const (
	DefaultBaseURL = "https://www.omdbapi.com"
	requestTimeout = 5 * time.Second
	cacheSize      = 256
	maxBody        = 64 << 10
)

var (
	ErrTransport = errors.New("omdb: transport error")
	ErrRejected  = errors.New("omdb: request rejected")
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	posters *lru.Cache[string, string]
	logger  zerolog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func New(apiKey string, opts ...Option) *Client {
	// only fails for a non-positive size
	posters, _ := lru.New[string, string](cacheSize)
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  httputil.NewClientWithTimeout(requestTimeout),
		posters: posters,
		logger:  xlog.WithComponent("omdb"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type titleResponse struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Poster   string `json:"Poster"`
}

// Poster returns the poster URL for imdbID, or "" when OMDb has none.
// Answers are cached, including the absence of a poster; failures are not.
func (c *Client) Poster(ctx context.Context, imdbID string) (string, error) {
	if poster, ok := c.posters.Get(imdbID); ok {
		return poster, nil
	}

	q := url.Values{"i": {imdbID}, "apikey": {c.apiKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		// the request URL carries the API key
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer httputil.DrainBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}
	var tr titleResponse
	if jerr := json.Unmarshal(body, &tr); jerr != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("%w: bad response: %v", ErrRejected, jerr)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, tr.Error)
	}

	poster := ""
	if strings.EqualFold(tr.Response, "True") && tr.Poster != "N/A" && strings.HasPrefix(tr.Poster, "http") {
		poster = tr.Poster
	} else if tr.Error != "" {
		c.logger.Debug().Str("imdb_id", imdbID).Str("error", tr.Error).Msg("no title found")
	}
	c.posters.Add(imdbID, poster)
	return poster, nil
}

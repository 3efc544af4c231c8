package omdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return New("secret-key", WithBaseURL(ts.URL+"/")), &hits
}

func TestPosterFoundAndCached(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tt0903747", r.URL.Query().Get("i"))
		assert.Equal(t, "secret-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`{"Title":"Breaking Bad","Poster":"https://m.media-amazon.com/images/bb.jpg","imdbRating":"9.5","Response":"True"}`))
	})

	for i := 0; i < 2; i++ {
		poster, err := c.Poster(context.Background(), "tt0903747")
		require.NoError(t, err)
		assert.Equal(t, "https://m.media-amazon.com/images/bb.jpg", poster)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestPosterAbsent(t *testing.T) {
	tests := map[string]string{
		"poster n/a": `{"Title":"Obscure","Poster":"N/A","Response":"True"}`,
		"unknown id": `{"Response":"False","Error":"Incorrect IMDb ID."}`,
		"not a url":  `{"Poster":"poster.jpg","Response":"True"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			poster, err := c.Poster(context.Background(), "tt1")
			require.NoError(t, err)
			assert.Empty(t, poster)

			_, err = c.Poster(context.Background(), "tt1")
			require.NoError(t, err)
			assert.Equal(t, int32(1), hits.Load(), "absence is cached")
		})
	}
}

func TestPosterRejectedIsNotCached(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"Response":"False","Error":"Invalid API key!"}`))
	})

	_, err := c.Poster(context.Background(), "tt1")
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Invalid API key!")

	_, err = c.Poster(context.Background(), "tt1")
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(2), hits.Load())
}

func TestPosterTransportErrorHidesKey(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New("secret-key", WithBaseURL(url)).Poster(context.Background(), "tt1")
	require.ErrorIs(t, err, ErrTransport)
	assert.NotContains(t, err.Error(), "secret-key")
}

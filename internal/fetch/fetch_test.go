package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUsesETagAndCachedBody(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(`[{"id":"1"}]`))
	}))
	defer srv.Close()

	f := New(t.TempDir(), time.Second)
	h := http.Header{"Authorization": []string{"Bearer k"}}

	first, err := f.Get(context.Background(), srv.URL+"/events/today", h)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, `[{"id":"1"}]`, string(first.Body))

	second, err := f.Get(context.Background(), srv.URL+"/events/today", h)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGetFallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := New(t.TempDir(), time.Second)
	f.StaleOnError = true

	_, err := f.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "payload", string(res.Body))
}

func TestGetServerErrorIgnoresCacheByDefault(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := New(t.TempDir(), time.Second)

	_, err := f.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	fail.Store(true)
	_, err = f.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	// A closed upstream is a network error; the stale body stays unused.
	srv.Close()
	_, err = f.Get(context.Background(), srv.URL, nil)
	assert.Error(t, err)
}

func TestGetRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789abcdefXYZ"))
	}))
	defer srv.Close()

	f := New(t.TempDir(), time.Second)
	f.maxBody = 16

	_, err := f.Get(context.Background(), srv.URL, nil)
	require.ErrorIs(t, err, ErrBodyTooLarge)

	f.maxBody = 19
	res, err := f.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdefXYZ", string(res.Body))
}

func TestGetErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New("", time.Second)
	_, err := f.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestGetEmptyURL(t *testing.T) {
	_, err := New("", time.Second).Get(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", RedactURL("https://example.com/path/private.ics?token=abcd"))
	assert.Equal(t, "https://example.com/...(redacted)", RedactURL("https://example.com?token=abcd"))
	assert.Equal(t, "url://...(redacted)", RedactURL("not a url"))
}

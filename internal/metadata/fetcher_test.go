package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fruitai/outreach/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", errors.New("miss")
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]string{}
	}
	c.data[key] = value
	c.sets++
	return nil
}

func TestFetcher_ParsesAndCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
			<title>Acme | Home</title>
			<meta property="og:site_name" content="Acme Corporation">
			<meta name="description" content="Anvils and more">
			<link rel="icon" href="/favicon.ico">
		</head><body><p>hello</p></body></html>`)
	}))
	defer srv.Close()

	cache := &memCache{}
	f := NewFetcher(srv.Client(), cache, time.Hour, logger.Nop())

	info := f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, "Acme Corporation", info.Name)
	assert.Equal(t, "Anvils and more", info.Description)
	assert.Equal(t, srv.URL+"/favicon.ico", info.Logo)
	assert.False(t, info.Placeholder)

	again := f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, info, again)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, cache.sets)
}

func TestFetcher_PlaceholderOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := &memCache{}
	f := NewFetcher(srv.Client(), cache, time.Hour, logger.Nop())

	info := f.Fetch(context.Background(), srv.URL)
	assert.True(t, info.Placeholder)
	assert.NotEmpty(t, info.Name)
	assert.Equal(t, 0, cache.sets, "placeholders are not cached")

	info = f.Fetch(context.Background(), "not a url at all ::")
	assert.True(t, info.Placeholder)
}

func TestHostName(t *testing.T) {
	for in, want := range map[string]string{
		"https://www.acme-corp.com":   "Acme Corp",
		"http://globex.io/about":      "Globex",
		"https://sub.initech.example": "Sub",
	} {
		u, err := normalize(in)
		require.NoError(t, err)
		assert.Equal(t, want, hostName(u), in)
	}

	u, err := normalize("acme.com")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.com", u.String())
}

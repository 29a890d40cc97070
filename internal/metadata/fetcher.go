// Package metadata fetches best-effort descriptive information about a website.
package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fruitai/outreach/internal/database"
	"github.com/fruitai/outreach/internal/logger"
	"golang.org/x/net/html"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; OutreachBot/1.0; +https://github.com/fruitai/outreach)"
	maxPageBytes = 1 << 20
	cachePrefix  = "metadata:"
)

// Info describes a website
type Info struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
	// Placeholder is set when the site could not be read
	Placeholder bool `json:"placeholder,omitempty"`
}

// Cache stores encoded Info values
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache adapts the Redis wrapper to Cache
type RedisCache struct {
	rdb *database.Redis
}

// NewRedisCache creates a RedisCache
func NewRedisCache(rdb *database.Redis) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.GetString(ctx, key)
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.SetWithTTL(ctx, key, value, ttl)
}

// Fetcher reads website metadata, caching successful lookups
type Fetcher struct {
	client *http.Client
	cache  Cache
	ttl    time.Duration
	log    *logger.Logger
}

// NewFetcher creates a Fetcher. cache may be nil.
func NewFetcher(client *http.Client, cache Cache, ttl time.Duration, log *logger.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Fetcher{client: client, cache: cache, ttl: ttl, log: log.WithComponent("metadata")}
}

// Fetch returns metadata for rawURL. It never fails: when the site cannot be
// read a placeholder derived from the host name is returned.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Info {
	u, err := normalize(rawURL)
	if err != nil {
		return Info{URL: rawURL, Name: strings.TrimSpace(rawURL), Placeholder: true}
	}

	key := cacheKey(u.String())
	if f.cache != nil {
		if raw, err := f.cache.Get(ctx, key); err == nil {
			var info Info
			if json.Unmarshal([]byte(raw), &info) == nil {
				return info
			}
		}
	}

	info, err := f.fetch(ctx, u)
	if err != nil {
		f.log.Debug().Err(err).Str("url", u.String()).Msg("metadata fetch failed, using placeholder")
		return placeholder(u)
	}

	if f.cache != nil && f.ttl > 0 {
		if raw, err := json.Marshal(info); err == nil {
			if err := f.cache.Set(ctx, key, string(raw), f.ttl); err != nil {
				f.log.Warn().Err(err).Msg("failed to cache metadata")
			}
		}
	}
	return info
}

func (f *Fetcher) fetch(ctx context.Context, u *url.URL) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Info{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Info{}, err
	}

	info := parse(doc, resp.Request.URL)
	info.URL = u.String()
	if info.Name == "" {
		info.Name = hostName(u)
	}
	return info, nil
}

func parse(doc *html.Node, base *url.URL) Info {
	var (
		info      Info
		title     string
		siteName  string
		ogTitle   string
		icon      string
		appleIcon string
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
				}
			case "meta":
				prop := strings.ToLower(attr(n, "property") + attr(n, "name"))
				content := strings.TrimSpace(attr(n, "content"))
				switch prop {
				case "og:site_name":
					siteName = content
				case "og:title":
					ogTitle = content
				case "description", "og:description":
					if info.Description == "" {
						info.Description = content
					}
				case "og:image":
					if info.Logo == "" {
						info.Logo = absolute(base, content)
					}
				}
			case "link":
				rel := strings.ToLower(attr(n, "rel"))
				switch {
				case strings.Contains(rel, "apple-touch-icon"):
					appleIcon = absolute(base, attr(n, "href"))
				case strings.Contains(rel, "icon"):
					icon = absolute(base, attr(n, "href"))
				}
			case "body":
				return
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)

	for _, name := range []string{siteName, ogTitle, title} {
		if name != "" {
			info.Name = name
			break
		}
	}
	if info.Logo == "" {
		info.Logo = appleIcon
	}
	if info.Logo == "" {
		info.Logo = icon
	}
	return info
}

func placeholder(u *url.URL) Info {
	return Info{URL: u.String(), Name: hostName(u), Placeholder: true}
}

func normalize(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", raw)
	}
	u.Fragment = ""
	return u, nil
}

// hostName turns "www.acme-corp.com" into "Acme Corp"
func hostName(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if i := strings.Index(host, "."); i > 0 {
		host = host[:i]
	}
	words := strings.FieldsFunc(host, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func absolute(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func cacheKey(u string) string {
	sum := sha256.Sum256([]byte(u))
	return cachePrefix + hex.EncodeToString(sum[:16])
}

package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fruitai/outreach/internal/model"
	"golang.org/x/net/html"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; OutreachBot/1.0; +https://github.com/fruitai/outreach)"
	maxPageBytes = 2 << 20
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Paths that usually list people, crawled first
	priorityHints = []string{"contact", "about", "team", "people", "staff", "leadership", "company"}

	// File suffixes that look like addresses inside asset names (logo@2x.png)
	assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"}

	skipLinkSuffixes = append(append([]string(nil), assetSuffixes...), ".pdf", ".zip")
)

// WebsiteSource crawls the campaign's target website and extracts addresses
// from mailto links and page text. Only pages on the same host are visited.
type WebsiteSource struct {
	client   *http.Client
	maxPages int
}

// NewWebsiteSource creates a WebsiteSource. A nil client uses a 15s timeout.
func NewWebsiteSource(client *http.Client, maxPages int) *WebsiteSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxPages <= 0 {
		maxPages = 20
	}
	return &WebsiteSource{client: client, maxPages: maxPages}
}

// Name implements Source
func (s *WebsiteSource) Name() string { return "website" }

// Discover implements Source
func (s *WebsiteSource) Discover(ctx context.Context, c Criteria, emit EmitFunc) error {
	start, err := url.Parse(c.TargetWebsite)
	if err != nil || (start.Scheme != "http" && start.Scheme != "https") || start.Host == "" {
		return fmt.Errorf("invalid target website %q", c.TargetWebsite)
	}
	start.Fragment = ""

	queue := []*url.URL{start}
	visited := map[string]struct{}{start.String(): {}}
	seen := make(map[string]struct{})
	company := companyFromHost(start.Hostname())
	fetched := 0
	var firstErr error

	for len(queue) > 0 && fetched < s.maxPages {
		if err := ctx.Err(); err != nil {
			return err
		}

		page := queue[0]
		queue = queue[1:]

		doc, err := s.fetch(ctx, page.String())
		fetched++
		if err != nil {
			if fetched == 1 {
				firstErr = err
			}
			continue
		}

		if fetched == 1 {
			if title := pageTitle(doc); title != "" {
				company = title
			}
		}

		found, links := extract(doc, page)
		for _, p := range found {
			key := model.NormalizeEmail(p.Email)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			p.Company = company
			p.Metadata = map[string]any{
				"source":  s.Name(),
				"page":    page.String(),
				"website": start.String(),
			}
			if err := emit(p); err != nil {
				return err
			}
		}

		var next []*url.URL
		for _, l := range links {
			if l.Hostname() != start.Hostname() {
				continue
			}
			if _, ok := visited[l.String()]; ok {
				continue
			}
			visited[l.String()] = struct{}{}
			next = append(next, l)
		}
		sort.SliceStable(next, func(i, j int) bool { return priority(next[i]) > priority(next[j]) })
		queue = append(queue, next...)
	}

	if len(seen) == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}

func (s *WebsiteSource) fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", pageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("GET %s: unsupported content type %q", pageURL, ct)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// extract returns the prospects and outgoing links of a parsed page
func extract(doc *html.Node, base *url.URL) ([]model.Prospect, []*url.URL) {
	var (
		prospects []model.Prospect
		links     []*url.URL
		inPage    = make(map[string]int)
	)

	add := func(addr, name string) {
		addr = strings.TrimSpace(strings.Trim(addr, ".,;:"))
		if !plausible(addr) {
			return
		}
		key := model.NormalizeEmail(addr)
		if i, ok := inPage[key]; ok {
			if prospects[i].Name == "" && name != "" {
				prospects[i].Name = name
			}
			return
		}
		inPage[key] = len(prospects)
		prospects = append(prospects, model.Prospect{Email: addr, Name: name})
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "a":
				href := attr(n, "href")
				if strings.HasPrefix(strings.ToLower(href), "mailto:") {
					addr := strings.SplitN(href[len("mailto:"):], "?", 2)[0]
					if decoded, err := url.PathUnescape(addr); err == nil {
						addr = decoded
					}
					add(addr, linkName(textContent(n)))
				} else if u := resolve(base, href); u != nil {
					links = append(links, u)
				}
			}
		}
		if n.Type == html.TextNode {
			for _, m := range emailPattern.FindAllString(n.Data, -1) {
				add(m, "")
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)

	return prospects, links
}

func plausible(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return false
	}
	lower := strings.ToLower(addr)
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	domain := lower[strings.LastIndex(lower, "@")+1:]
	return domain != "example.com" && domain != "domain.com" && !strings.HasPrefix(lower, "noreply@") &&
		!strings.HasPrefix(lower, "no-reply@")
}

// linkName uses the anchor text as a display name unless it is the address itself
func linkName(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || strings.Contains(text, "@") || len(text) > 80 {
		return ""
	}
	if strings.EqualFold(text, "email") || strings.EqualFold(text, "email us") || strings.EqualFold(text, "contact") {
		return ""
	}
	return text
}

func resolve(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") ||
		strings.HasPrefix(strings.ToLower(href), "tel:") {
		return nil
	}
	u, err := base.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil
	}
	u.Fragment = ""
	for _, suffix := range skipLinkSuffixes {
		if strings.HasSuffix(strings.ToLower(u.Path), suffix) {
			return nil
		}
	}
	return u
}

func priority(u *url.URL) int {
	p := strings.ToLower(u.Path)
	for i, hint := range priorityHints {
		if strings.Contains(p, hint) {
			return len(priorityHints) - i
		}
	}
	return 0
}

func pageTitle(doc *html.Node) string {
	var title string
	var find func(n *html.Node)
	find = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			title = strings.Join(strings.Fields(textContent(n)), " ")
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			find(ch)
		}
	}
	find(doc)

	// "Acme Corp | Home" -> "Acme Corp"
	for _, sep := range []string{" | ", " - ", " – ", " :: "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
		}
	}
	return strings.TrimSpace(title)
}

func companyFromHost(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if i := strings.Index(host, "."); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return ""
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return sb.String()
}

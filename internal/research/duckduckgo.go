package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/slidecoffee/brew-service/internal/config"
	"github.com/slidecoffee/brew-service/pkg/logger"
)

const maxBodyBytes = 1 << 20

var (
	selResult  = cascadia.MustCompile("div.result:not(.result--ad)")
	selTitle   = cascadia.MustCompile("a.result__a")
	selSnippet = cascadia.MustCompile(".result__snippet")

	// text nodes may still carry markup that arrived entity-encoded
	textPolicy = bluemonday.StripTagsPolicy()
)

// DuckDuckGo scrapes the keyless DuckDuckGo HTML endpoint.
type DuckDuckGo struct {
	endpoint  string
	userAgent string
	timeout   time.Duration
	client    *http.Client
}

func NewDuckDuckGo(cfg config.SearchConfig) *DuckDuckGo {
	d := &DuckDuckGo{
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		client:    &http.Client{},
	}
	if d.endpoint == "" {
		d.endpoint = "https://html.duckduckgo.com/html/"
	}
	if d.userAgent == "" {
		d.userAgent = "SlideCoffee/1.0 (AI Research Bot)"
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	return d
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) (*Response, error) {
	start := time.Now()
	q, err := SanitizeQuery(query)
	if err != nil {
		return nil, err
	}
	limit = ClampResults(limit)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	u := d.endpoint + "?q=" + url.QueryEscape(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search service returned %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	results, err := ParseResults(body, limit)
	if err != nil {
		return nil, err
	}
	logger.Debugf("web search %q returned %d results", q, len(results))
	return &Response{Query: q, Results: results, SearchTime: time.Since(start)}, nil
}

// ParseResults extracts up to limit organic results from a DuckDuckGo HTML page.
func ParseResults(r io.Reader, limit int) ([]Source, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	var out []Source
	for _, n := range selResult.MatchAll(doc) {
		if len(out) >= limit {
			break
		}
		a := selTitle.MatchFirst(n)
		if a == nil {
			continue
		}
		src := Source{
			URL:   decodeRedirect(attr(a, "href")),
			Title: cleanText(a),
		}
		if src.URL == "" || src.Title == "" {
			continue
		}
		if sn := selSnippet.MatchFirst(n); sn != nil {
			src.Snippet = cleanText(sn)
		}
		out = append(out, src)
	}
	return out, nil
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg=<target> links.
func decodeRedirect(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func cleanText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	text := html.UnescapeString(textPolicy.Sanitize(b.String()))
	return strings.Join(strings.Fields(text), " ")
}

package transcoder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"relayfeed/internal/domain/entity"
)

// maxPageBytes bounds how much of a landing page is parsed.
const maxPageBytes = 2 << 20

// Resolver turns a feed landing link into a link the transcode service can download.
type Resolver struct {
	template    string
	resolvePage bool
	client      *http.Client
	userAgent   string
}

// NewResolver creates a Resolver. client is only used when resolvePage is true.
func NewResolver(template string, resolvePage bool, client *http.Client, userAgent string) *Resolver {
	if template == "" {
		template = DefaultDownloadTemplate
	}
	return &Resolver{template: template, resolvePage: resolvePage, client: client, userAgent: userAgent}
}

// Resolve returns the direct download link for link.
//
// Direct links (magnet URIs or paths ending in .torrent) pass through unchanged.
// /view/<id> landing links are rewritten with the download template. Other http(s)
// links are scraped for the first .torrent or magnet anchor when page resolution is enabled.
func (r *Resolver) Resolve(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if isDirect(link) {
		return link, nil
	}
	if id, ok := entity.ExtractViewID(link); ok {
		return fmt.Sprintf(r.template, id), nil
	}
	if r.resolvePage && r.client != nil {
		resolved, err := r.scrape(ctx, link)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnresolvableLink, err)
		}
		return resolved, nil
	}
	return "", ErrUnresolvableLink
}

func isDirect(link string) bool {
	if strings.HasPrefix(link, "magnet:?") {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && strings.HasSuffix(strings.ToLower(u.Path), ".torrent")
}

func (r *Resolver) scrape(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return "", fmt.Errorf("not an http link")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch landing page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("landing page status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("parse landing page: %w", err)
	}

	for _, selector := range []string{`a[href$=".torrent"]`, `a[href^="magnet:"]`} {
		href, ok := doc.Find(selector).First().Attr("href")
		if !ok || href == "" {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String(), nil
	}
	return "", fmt.Errorf("no download anchor on landing page")
}

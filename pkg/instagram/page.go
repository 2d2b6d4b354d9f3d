package instagram

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	errs "igleads/pkg/errors"
	"igleads/pkg/logger"
	"igleads/pkg/models"
)

var (
	followersPattern = regexp.MustCompile(`(?i)([\d][\d.,]*\s*[kmb]?)\s+(?:followers|seguidores)`)
	bioPattern       = regexp.MustCompile(`(?s)on Instagram:\s*"(.*)"\s*$`)
	titlePattern     = regexp.MustCompile(`^(.*?)\s*\(@[^)]+\)`)
)

// PageFetcher reads the public profile page and pulls what it can out of the
// Open Graph and description meta tags. It needs no session, so it is the
// fallback when the API refuses a request.
type PageFetcher struct {
	client *Client
	logger logger.Logger
}

// NewPageFetcher creates a page fetcher on top of client
func NewPageFetcher(client *Client, log logger.Logger) *PageFetcher {
	return &PageFetcher{
		client: client,
		logger: logger.OrDefault(log).WithField("component", "page_fetcher"),
	}
}

// Fetch implements Fetcher
func (p *PageFetcher) Fetch(ctx context.Context, handle models.Handle) (models.ProfileRecord, error) {
	doc, err := p.client.GetHTML(ctx, PublicProfileURL(p.client.BaseURL(), handle.String()))
	if err != nil {
		return models.ProfileRecord{}, errs.NewFetchError(handle.String(), err)
	}

	rec, ok := ParseProfilePage(doc, handle)
	if !ok {
		return models.ProfileRecord{}, errs.NewFetchError(handle.String(), &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "profile page has no profile metadata",
			Code:    http.StatusOK,
		})
	}
	p.logger.DebugWithFields("Parsed profile page", map[string]interface{}{"handle": handle.String()})
	return rec, nil
}

// ParseProfilePage extracts a profile record from a public profile document.
// It reports false when the page carries none of the expected meta tags.
func ParseProfilePage(doc *goquery.Document, handle models.Handle) (models.ProfileRecord, bool) {
	meta := func(selector string) string {
		v, _ := doc.Find(selector).First().Attr("content")
		return strings.TrimSpace(v)
	}

	title := meta(`meta[property="og:title"]`)
	ogDesc := meta(`meta[property="og:description"]`)
	desc := meta(`meta[name="description"]`)
	if title == "" && ogDesc == "" && desc == "" {
		return models.ProfileRecord{}, false
	}

	rec := models.ProfileRecord{
		Handle:     handle,
		ProfileURL: handle.ProfileURL(),
	}

	if m := titlePattern.FindStringSubmatch(title); m != nil {
		rec.DisplayName = strings.TrimSpace(m[1])
	}

	for _, d := range []string{desc, ogDesc} {
		if rec.FollowerCount == nil {
			if m := followersPattern.FindStringSubmatch(d); m != nil {
				if n, ok := ParseCount(m[1]); ok {
					rec.FollowerCount = &n
				}
			}
		}
		if rec.Bio == "" {
			if m := bioPattern.FindStringSubmatch(d); m != nil {
				rec.Bio = strings.TrimSpace(m[1])
			}
		}
	}

	return rec, true
}

// ParseCount parses abbreviated counts such as "1,234", "1.2k" and "3M"
func ParseCount(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier, s = 1e6, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "b"):
		multiplier, s = 1e9, strings.TrimSuffix(s, "b")
	}
	s = strings.TrimSpace(s)

	if multiplier == 1 {
		// without a suffix both separators group thousands
		s = strings.NewReplacer(",", "", ".", "").Replace(s)
		n, err := strconv.Atoi(s)
		return n, err == nil
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return int(f*multiplier + 0.5), true
}

package artifact_source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/turbot/edgar-log-pipeline/filepaths"
	"github.com/turbot/edgar-log-pipeline/helpers"
	"github.com/turbot/edgar-log-pipeline/types"
)

const SecEdgarSourceIdentifier = "sec_edgar"

var archiveLinkExpr = regexp.MustCompile(`(?i)log(\d{8})\.zip$`)

// SecEdgarSource downloads archives from the SEC. The link for a date is found on the
// yearly index page <base_url>/edgar<year>.html, which is fetched once per year per run.
type SecEdgarSource struct {
	baseUrl   *url.URL
	userAgent string
	client    *http.Client

	linksLock sync.Mutex
	// year -> date -> archive url
	links map[int]map[string]string
}

func NewSecEdgarSource(baseUrl, userAgent string, client *http.Client) (*SecEdgarSource, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("a user agent is required to download from the SEC")
	}
	u, err := url.Parse(strings.TrimRight(baseUrl, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseUrl, err)
	}
	if client == nil {
		client = SharedHTTPClient()
	}
	return &SecEdgarSource{
		baseUrl:   u,
		userAgent: userAgent,
		client:    client,
		links:     make(map[int]map[string]string),
	}, nil
}

func (s *SecEdgarSource) Identifier() string {
	return SecEdgarSourceIdentifier
}

func (s *SecEdgarSource) Fetch(ctx context.Context, date time.Time, destPath string) error {
	dateStr := helpers.FormatDate(date)
	fetchErr := func(err error) error {
		return &types.FetchError{Date: dateStr, Source: s.Identifier(), Err: err}
	}

	links, err := s.yearLinks(ctx, date.Year())
	if err != nil {
		return fetchErr(err)
	}
	link, ok := links[dateStr]
	if !ok {
		return fetchErr(fmt.Errorf("no log published for %s in the %d index", dateStr, date.Year()))
	}

	slog.Info("Downloading archive", "date", dateStr, "url", link)
	if err := s.download(ctx, link, destPath); err != nil {
		return fetchErr(err)
	}
	return nil
}

func (s *SecEdgarSource) Close() error {
	return nil
}

func (s *SecEdgarSource) yearLinks(ctx context.Context, year int) (map[string]string, error) {
	s.linksLock.Lock()
	defer s.linksLock.Unlock()

	if links, ok := s.links[year]; ok {
		return links, nil
	}

	indexUrl := s.baseUrl.ResolveReference(&url.URL{Path: fmt.Sprintf("edgar%d.html", year)})
	resp, err := s.get(ctx, indexUrl.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index page %s: %w", indexUrl, err)
	}

	links := parseArchiveLinks(doc, indexUrl)
	slog.Debug("Parsed SEC index page", "url", indexUrl.String(), "archives", len(links))
	s.links[year] = links
	return links, nil
}

// parseArchiveLinks returns the absolute url of every archive linked from the index page, keyed by date
func parseArchiveLinks(doc *goquery.Document, pageUrl *url.URL) map[string]string {
	links := make(map[string]string)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		m := archiveLinkExpr.FindStringSubmatch(href)
		if m == nil {
			return
		}
		d, err := time.Parse("20060102", m[1])
		if err != nil {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links[helpers.FormatDate(d)] = pageUrl.ResolveReference(ref).String()
	})
	return links
}

func (s *SecEdgarSource) download(ctx context.Context, link, destPath string) error {
	resp, err := s.get(ctx, link)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return filepaths.WriteAtomic(destPath, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	})
}

func (s *SecEdgarSource) get(ctx context.Context, link string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", link, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("request %s: server returned %s", link, resp.Status)
	}
	return resp, nil
}

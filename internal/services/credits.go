package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/shared"
	"github.com/samber/lo"
)

const (
	defaultUserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultAcceptLanguage = "en-US,en;q=0.9"
	maxPageBytes          = 8 << 20
)

// CreditsScraper extracts engineer credits from public track pages.
type CreditsScraper struct {
	client         *http.Client
	gate           *RequestGate
	parsers        []CreditParser
	userAgent      string
	acceptLanguage string
	logger         *log.Logger
}

// ScraperOpts configures a [CreditsScraper].
type ScraperOpts struct {
	Gate           *RequestGate // shared by every scraper in the process
	Transport      http.RoundTripper
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	Parsers        []CreditParser // defaults to [DefaultCreditParsers]
	Logger         *log.Logger
}

// NewCreditsScraper creates a scraper. Redirects are followed by the default client policy.
func NewCreditsScraper(opts ScraperOpts) *CreditsScraper {
	if opts.Gate == nil {
		opts.Gate = NewRequestGate(5*time.Second, 10*time.Second)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = defaultAcceptLanguage
	}
	if len(opts.Parsers) == 0 {
		opts.Parsers = DefaultCreditParsers()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &CreditsScraper{
		client:         &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		gate:           opts.Gate,
		parsers:        opts.Parsers,
		userAgent:      opts.UserAgent,
		acceptLanguage: opts.AcceptLanguage,
		logger:         shared.WithLogger(opts.Logger, "component", "credits"),
	}
}

// errPageMissing marks a page that no longer exists, which is a definite "no credits".
var errPageMissing = errors.New("credits page missing")

// Fetch returns the credits found on pageURL.
//
// A page that answered 404 or 410 yields an empty list and no error. Any other fetch failure
// is returned so the caller can retry the page on a later run.
func (s *CreditsScraper) Fetch(ctx context.Context, pageURL string) ([]models.Credit, error) {
	doc, err := s.fetch(ctx, pageURL)
	if errors.Is(err, errPageMissing) {
		return []models.Credit{}, nil
	}
	if err != nil {
		return nil, err
	}

	for _, p := range s.parsers {
		credits := s.parse(p, doc)
		if len(credits) > 0 {
			s.logger.Debug("credits found", "url", pageURL, "parser", p.Name(), "count", len(credits))
			return DedupeCredits(credits), nil
		}
	}

	return []models.Credit{}, nil
}

// FetchCredits is [CreditsScraper.Fetch] with failures logged and turned into an empty list.
func (s *CreditsScraper) FetchCredits(ctx context.Context, pageURL string) []models.Credit {
	credits, err := s.Fetch(ctx, pageURL)
	if err != nil {
		s.logger.Warn("credits page unavailable", "url", pageURL, "error", err)
		return []models.Credit{}
	}
	return credits
}

func (s *CreditsScraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.gate.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPageFetch, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", s.acceptLanguage)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPageFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("%w: status %d", errPageMissing, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", shared.ErrPageFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPageFetch, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPageFetch, err)
	}
	return doc, nil
}

// parse runs one strategy, treating a panic as "nothing found".
func (s *CreditsScraper) parse(p CreditParser, doc *goquery.Document) (credits []models.Credit) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("credit parser panicked", "parser", p.Name(), "panic", r)
			credits = nil
		}
	}()
	return p.Parse(doc)
}

// NewCredit normalizes a name and role and derives the engineer slug.
func NewCredit(name, role string) models.Credit {
	name = strings.Join(strings.Fields(name), " ")
	role = strings.Join(strings.Fields(role), " ")
	return models.Credit{Name: name, Role: role, Slug: shared.Slugify(name)}
}

// DedupeCredits drops repeated (name, role) pairs, comparing case-insensitively. First occurrence wins.
func DedupeCredits(credits []models.Credit) []models.Credit {
	return lo.UniqBy(credits, func(c models.Credit) string {
		return strings.ToLower(c.Name) + "|" + strings.ToLower(c.Role)
	})
}

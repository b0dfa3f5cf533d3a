package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/shared"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse html: %v", err)
	}
	return doc
}

func hasCredit(credits []models.Credit, name, role string) bool {
	for _, c := range credits {
		if c.Name == name && c.Role == role {
			return true
		}
	}
	return false
}

func TestCreditParsers(t *testing.T) {
	t.Run("EmbeddedJSONParser", func(t *testing.T) {
		doc := mustDoc(t, `<html><body>
			<script type="application/json">{"page":{"credits":[
				{"name":"Steven Wilson","role":"Immersive Mix Engineer"},
				{"name":"Bob Ludwig","roleName":"Mastering Engineer"},
				{"name":"Not a credit"}
			]}}</script>
			<script type="application/json">{not json</script>
		</body></html>`)

		credits := EmbeddedJSONParser{}.Parse(doc)
		if len(credits) != 2 {
			t.Fatalf("expected 2 credits, got %+v", credits)
		}
		if !hasCredit(credits, "Steven Wilson", "Immersive Mix Engineer") || !hasCredit(credits, "Bob Ludwig", "Mastering Engineer") {
			t.Errorf("unexpected credits %+v", credits)
		}
		if credits[0].Slug != "steven-wilson" {
			t.Errorf("expected slug steven-wilson, got %s", credits[0].Slug)
		}
	})

	t.Run("SelectorParser", func(t *testing.T) {
		doc := mustDoc(t, `<html><body><ul class="song-credits">
			<li><span class="credit-role">Dolby Atmos Mixer</span><span class="credit-name">Giles Martin, Sam Okell</span></li>
			<li><span class="credit-role"></span><span class="credit-name">Nobody</span></li>
		</ul></body></html>`)

		credits := DefaultSelectorParser().Parse(doc)
		if len(credits) != 2 || !hasCredit(credits, "Sam Okell", "Dolby Atmos Mixer") {
			t.Errorf("unexpected credits %+v", credits)
		}
	})

	t.Run("PatternParser", func(t *testing.T) {
		doc := mustDoc(t, `<html><body>
			<p>Immersive Mix Engineer: Steven Wilson</p>
			<dl><dt>Mastering Engineer</dt><dd>Bob Ludwig</dd></dl>
			<p>mix engineer - Andy Wallace</p>
			<p>Mix Engineer: ab</p>
		</body></html>`)

		credits := NewPatternParser(TargetRoles).Parse(doc)

		if !hasCredit(credits, "Steven Wilson", "Immersive Mix Engineer") {
			t.Errorf("missing immersive credit: %+v", credits)
		}
		if !hasCredit(credits, "Bob Ludwig", "Mastering Engineer") {
			t.Errorf("missing mastering credit: %+v", credits)
		}
		if !hasCredit(credits, "Andy Wallace", "Mix Engineer") {
			t.Errorf("missing case-insensitive role match: %+v", credits)
		}
		if hasCredit(credits, "Steven Wilson", "Mix Engineer") {
			t.Error("shorter role re-matched inside a longer one")
		}
		for _, c := range credits {
			if len(c.Name) < 3 {
				t.Errorf("short name accepted: %+v", c)
			}
		}
	})

	t.Run("PatternParser ignores scripts", func(t *testing.T) {
		doc := mustDoc(t, `<html><body><script>var s = "Mix Engineer: Hidden Person";</script></body></html>`)
		if credits := NewPatternParser(TargetRoles).Parse(doc); len(credits) != 0 {
			t.Errorf("expected no credits, got %+v", credits)
		}
	})

	t.Run("PatternParser leaves the document intact for later strategies", func(t *testing.T) {
		doc := mustDoc(t, `<html><body>
			<p>Mix Engineer: Andy Wallace</p>
			<script type="application/json">{"name":"Bob Clearmountain","role":"Mix Engineer"}</script>
			<template><p>Mastering Engineer: Hidden Person</p></template>
		</body></html>`)

		if credits := NewPatternParser(TargetRoles).Parse(doc); len(credits) != 1 {
			t.Fatalf("expected only the visible credit, got %+v", credits)
		}
		if n := doc.Find("script, template").Length(); n != 2 {
			t.Errorf("expected script and template to remain, found %d", n)
		}
		if credits := (EmbeddedJSONParser{}).Parse(doc); !hasCredit(credits, "Bob Clearmountain", "Mix Engineer") {
			t.Errorf("expected embedded JSON credit after pattern parse, got %+v", credits)
		}
	})

	t.Run("DedupeCredits", func(t *testing.T) {
		credits := DedupeCredits([]models.Credit{
			NewCredit("Steven Wilson", "Mix Engineer"),
			NewCredit("steven wilson", "mix engineer"),
			NewCredit("Steven  Wilson", "Mastering Engineer"),
		})
		if len(credits) != 2 {
			t.Errorf("expected 2 unique credits, got %+v", credits)
		}
	})
}

type panicParser struct{}

func (panicParser) Name() string                              { return "panic" }
func (panicParser) Parse(*goquery.Document) []models.Credit { panic("boom") }

func TestCreditsScraper(t *testing.T) {
	ctx := context.Background()

	newScraper := func(parsers ...CreditParser) *CreditsScraper {
		return NewCreditsScraper(ScraperOpts{
			Gate:    NewRequestGate(0, 0),
			Parsers: parsers,
			Logger:  shared.NewLogger(io.Discard),
		})
	}

	t.Run("sends browser headers and parses page", func(t *testing.T) {
		var gotUA, gotLang string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotLang = r.Header.Get("Accept-Language")
			fmt.Fprint(w, `<html><body><p>Dolby Atmos Mixer: Giles Martin</p><p>Dolby Atmos Mixer: Giles Martin</p></body></html>`)
		}))
		defer srv.Close()

		credits := newScraper().FetchCredits(ctx, srv.URL)
		if len(credits) != 1 || !hasCredit(credits, "Giles Martin", "Dolby Atmos Mixer") {
			t.Errorf("unexpected credits %+v", credits)
		}
		if !strings.Contains(gotUA, "Mozilla/5.0") || !strings.HasPrefix(gotLang, "en-US") {
			t.Errorf("unexpected headers ua=%q lang=%q", gotUA, gotLang)
		}
	})

	t.Run("follows redirects", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<p>Mastering Engineer: Bob Ludwig</p>`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		if credits := newScraper().FetchCredits(ctx, srv.URL+"/old"); len(credits) != 1 {
			t.Errorf("expected 1 credit after redirect, got %+v", credits)
		}
	})

	t.Run("non-200 yields empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		credits := newScraper().FetchCredits(ctx, srv.URL)
		if credits == nil || len(credits) != 0 {
			t.Errorf("expected empty non-nil list, got %#v", credits)
		}
	})

	t.Run("Fetch reports server errors so the page can be retried", func(t *testing.T) {
		hits := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			if hits == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `<p>Immersive Mix Engineer: Steven Wilson</p>`)
		}))
		defer srv.Close()

		scraper := newScraper()
		credits, err := scraper.Fetch(ctx, srv.URL)
		if !errors.Is(err, shared.ErrPageFetch) || credits != nil {
			t.Fatalf("expected ErrPageFetch and no credits, got %+v %v", credits, err)
		}

		credits, err = scraper.Fetch(ctx, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error on retry: %v", err)
		}
		if !hasCredit(credits, "Steven Wilson", "Immersive Mix Engineer") {
			t.Errorf("expected credits on retry, got %+v", credits)
		}
	})

	t.Run("Fetch treats a missing page as no credits", func(t *testing.T) {
		for _, status := range []int{http.StatusNotFound, http.StatusGone} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))

			credits, err := newScraper().Fetch(ctx, srv.URL)
			srv.Close()
			if err != nil || credits == nil || len(credits) != 0 {
				t.Errorf("status %d: expected empty list without error, got %#v %v", status, credits, err)
			}
		}
	})

	t.Run("Fetch reports unreachable hosts", func(t *testing.T) {
		if _, err := newScraper().Fetch(ctx, "http://127.0.0.1:1/nothing"); !errors.Is(err, shared.ErrPageFetch) {
			t.Errorf("expected ErrPageFetch, got %v", err)
		}
	})

	t.Run("unreachable host yields empty list", func(t *testing.T) {
		if credits := newScraper().FetchCredits(ctx, "http://127.0.0.1:1/nothing"); len(credits) != 0 {
			t.Errorf("expected no credits, got %+v", credits)
		}
	})

	t.Run("malformed html yields empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><body><div><<<>>></span><script type="application/json">{"a":</script>`)
		}))
		defer srv.Close()

		if credits := newScraper().FetchCredits(ctx, srv.URL); len(credits) != 0 {
			t.Errorf("expected no credits, got %+v", credits)
		}
	})

	t.Run("panicking strategy falls through to the next", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<p>Mix Engineer: Andy Wallace</p>`)
		}))
		defer srv.Close()

		credits := newScraper(panicParser{}, NewPatternParser(TargetRoles)).FetchCredits(ctx, srv.URL)
		if len(credits) != 1 {
			t.Errorf("expected fallback credits, got %+v", credits)
		}
	})

	t.Run("first strategy with results wins", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><body>
				<script type="application/json">{"name":"From Json","role":"Mix Engineer"}</script>
				<p>Mix Engineer: From Text</p></body></html>`)
		}))
		defer srv.Close()

		credits := newScraper().FetchCredits(ctx, srv.URL)
		if len(credits) != 1 || credits[0].Name != "From Json" {
			t.Errorf("expected embedded JSON credits only, got %+v", credits)
		}
	})
}

package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/desertthunder/selecta/internal/models"
	"github.com/tidwall/gjson"
)

// TargetRoles are the credit labels the pattern strategy looks for.
var TargetRoles = []string{
	"Immersive Mix Engineer",
	"Dolby Atmos Mixer",
	"Surround Mix Engineer",
	"Mix Engineer",
	"Mastering Engineer",
}

const (
	minNameLen   = 3
	maxNameLen   = 49
	maxJSONDepth = 32
)

// CreditParser extracts credits from a parsed page.
type CreditParser interface {
	Name() string
	Parse(doc *goquery.Document) []models.Credit
}

// DefaultCreditParsers returns the strategies in priority order: embedded JSON, DOM selectors, text patterns.
func DefaultCreditParsers() []CreditParser {
	return []CreditParser{
		EmbeddedJSONParser{},
		DefaultSelectorParser(),
		NewPatternParser(TargetRoles),
	}
}

// EmbeddedJSONParser walks JSON script blocks for objects carrying both a name and a role.
type EmbeddedJSONParser struct{}

func (EmbeddedJSONParser) Name() string { return "embedded-json" }

func (EmbeddedJSONParser) Parse(doc *goquery.Document) []models.Credit {
	var credits []models.Credit
	doc.Find(`script[type="application/json"], script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || !gjson.Valid(text) {
			return
		}
		walkCredits(gjson.Parse(text), 0, &credits)
	})
	return credits
}

func walkCredits(node gjson.Result, depth int, out *[]models.Credit) {
	if depth > maxJSONDepth {
		return
	}

	if node.IsObject() {
		name := node.Get("name")
		role := node.Get("role")
		if !role.Exists() {
			role = node.Get("roleName")
		}
		if name.Type == gjson.String && role.Type == gjson.String && name.String() != "" && role.String() != "" {
			*out = append(*out, NewCredit(name.String(), role.String()))
		}
	}

	if node.IsObject() || node.IsArray() {
		node.ForEach(func(_, child gjson.Result) bool {
			walkCredits(child, depth+1, out)
			return true
		})
	}
}

// SelectorParser reads credits from repeated markup blocks holding a role element and a name element.
type SelectorParser struct {
	Items string
	Role  string
	Names string
}

// DefaultSelectorParser covers the credit markup seen on common music pages.
func DefaultSelectorParser() SelectorParser {
	return SelectorParser{
		Items: `.credits .credit, .song-credits li, [data-testid="credit"], .credit-item, .credits-list li`,
		Role:  `.credit__role, .credit-role, .role, [data-testid="credit-role"]`,
		Names: `.credit__name, .credit-name, .name, [data-testid="credit-name"]`,
	}
}

func (SelectorParser) Name() string { return "dom-selectors" }

func (p SelectorParser) Parse(doc *goquery.Document) []models.Credit {
	var credits []models.Credit
	doc.Find(p.Items).Each(func(_ int, item *goquery.Selection) {
		role := strings.TrimSpace(item.Find(p.Role).First().Text())
		if role == "" {
			return
		}
		item.Find(p.Names).Each(func(_ int, n *goquery.Selection) {
			for _, name := range strings.Split(n.Text(), ",") {
				if name = strings.TrimSpace(name); validName(name) {
					credits = append(credits, NewCredit(name, role))
				}
			}
		})
	})
	return credits
}

// PatternParser scans page text for "<role>: <Name>" occurrences.
//
// Roles are tried longest first and matched text is consumed, so "Mix Engineer" never
// re-matches inside "Immersive Mix Engineer".
type PatternParser struct {
	roles    []string
	patterns []*regexp.Regexp
}

// NewPatternParser compiles one case-insensitive pattern per role.
func NewPatternParser(roles []string) *PatternParser {
	sorted := append([]string(nil), roles...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	p := &PatternParser{roles: sorted}
	for _, role := range sorted {
		p.patterns = append(p.patterns, regexp.MustCompile(
			`(?i:`+regexp.QuoteMeta(role)+`)[ \t]*[:|\-–]?\s*`+
				`(\p{Lu}[\p{L}0-9.'\-]*(?:[ \t]+\p{Lu}[\p{L}0-9.'\-]*)*)`,
		))
	}
	return p
}

func (*PatternParser) Name() string { return "text-patterns" }

func (p *PatternParser) Parse(doc *goquery.Document) []models.Credit {
	text := pageText(doc)
	var credits []models.Credit

	for i, re := range p.patterns {
		role := p.roles[i]
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			if sub := re.FindStringSubmatch(match); len(sub) == 2 {
				if name := strings.TrimSpace(sub[1]); validName(name) {
					credits = append(credits, NewCredit(name, role))
				}
			}
			return strings.Repeat(" ", len(match))
		})
	}
	return credits
}

// hiddenElements hold no visible text.
var hiddenElements = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}

// pageText returns the visible text of the page in document order, one text node per line.
// The document is only read, so parsers running later see the page unchanged.
func pageText(doc *goquery.Document) string {
	var lines []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, s *goquery.Selection) {
			name := goquery.NodeName(s)
			if hiddenElements[name] {
				return
			}
			if name != "#text" {
				walk(s)
				return
			}
			if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
				lines = append(lines, line)
			}
		})
	}
	walk(doc.Find("body"))

	return strings.Join(lines, "\n")
}

func validName(name string) bool {
	n := len([]rune(name))
	return n >= minNameLen && n <= maxNameLen
}

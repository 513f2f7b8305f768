// Package intent turns free-text Vietnamese or English search requests into a category, radius and search type.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/quanhday/internal/models"
)

var (
	kmRegex   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:km|kilomet(?:er|re)?s?|ki-lô-mét|cây số)`)
	nearRegex = regexp.MustCompile(`gần\s*(\d+(?:[.,]\d+)?)`)
)

// Parser extracts a ParsedIntent from text using an ordered rule table.
type Parser struct {
	rules         []Rule
	defaultRadius float64
}

// Option configures a Parser.
type Option func(*Parser)

// WithRules replaces the rule table.
func WithRules(rules []Rule) Option {
	return func(p *Parser) {
		p.rules = rules
	}
}

// WithDefaultRadius sets the radius used when the text names none.
func WithDefaultRadius(km float64) Option {
	return func(p *Parser) {
		if km > 0 {
			p.defaultRadius = km
		}
	}
}

// NewParser returns a Parser using DefaultRules and a 10 km default radius.
func NewParser(opts ...Option) *Parser {
	p := &Parser{rules: DefaultRules, defaultRadius: models.DefaultRadiusKm}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts radius, category and search type from text. It never fails;
// text with no recognizable category or type word searches both collections.
func (p *Parser) Parse(text string) *models.ParsedIntent {
	t := normalize(text)
	intent := &models.ParsedIntent{RadiusKm: p.radius(t)}

	for _, rule := range p.rules {
		if containsAny(t, rule.Keywords) {
			intent.Category = rule.Category
			intent.SearchType = rule.Type
			break
		}
	}

	// explicit type words override the category's type
	if containsAny(t, eventTypeWords) {
		intent.SearchType = models.SearchTypeEvent
	} else if containsAny(t, locationTypeWords) {
		intent.SearchType = models.SearchTypeLocation
	}
	return intent
}

// LooksLikeSearch reports whether text asks for something nearby.
func (p *Parser) LooksLikeSearch(text string) bool {
	t := normalize(text)
	if containsAny(t, searchWords) || containsAny(t, eventTypeWords) || containsAny(t, locationTypeWords) {
		return true
	}
	for _, rule := range p.rules {
		if containsAny(t, rule.Keywords) {
			return true
		}
	}
	return false
}

func (p *Parser) radius(t string) float64 {
	for _, re := range []*regexp.Regexp{kmRegex, nearRegex} {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err == nil && v > 0 {
			return v
		}
	}
	return p.defaultRadius
}

// normalize composes Vietnamese diacritics so precomposed and decomposed input match the table.
func normalize(text string) string {
	return strings.ToLower(norm.NFC.String(text))
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

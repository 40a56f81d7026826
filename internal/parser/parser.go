// Package parser turns raw page bytes into candidate record blocks and
// discovered navigation links. Parsing is structural only; interpreting the
// text inside a block belongs to the extract package.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mpetrenko/RecordHarvester/internal/config"
	"github.com/mpetrenko/RecordHarvester/internal/fetcher"
)

// ErrorKind classifies parse failures.
type ErrorKind string

// KindStructureMismatch means the page had no recognizable structure at
// all: no record blocks and no navigation the parser knows about. It lets
// callers distinguish "no records on this page" from "page format not
// understood".
const KindStructureMismatch ErrorKind = "structure_mismatch"

// ParseError is the typed failure returned by Parse.
type ParseError struct {
	Kind ErrorKind
	URL  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s failed: %s", e.URL, e.Kind)
}

// RawField is one named raw text value within a block.
type RawField struct {
	Name  string
	Value string
}

// RawRecordBlock is an ordered mapping of field name to raw text, scoped to
// one candidate record within one page. Blocks are transient: produced
// here, consumed once by the entity extractor.
type RawRecordBlock struct {
	SourceURL string
	Fields    []RawField
}

// Get returns the named field value, or "" when the field was not located.
func (b *RawRecordBlock) Get(name string) string {
	for _, f := range b.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// ParseResult carries the blocks found on one page plus pagination and
// pattern-matched links for the orchestrator to enqueue.
type ParseResult struct {
	Blocks   []RawRecordBlock
	NextURLs []string
}

// Parser parses pages of one known template family.
type Parser struct {
	blockSelector string
	fields        []config.FieldSelector
	followNext    bool
	pageParam     string
	linkPatterns  []*regexp.Regexp
}

// New builds a parser from validated configuration. Link patterns are
// matched against the path (and query) of each anchor href.
func New(parseCfg config.ParseConfig, discoveryCfg config.DiscoveryConfig) (*Parser, error) {
	patterns := make([]*regexp.Regexp, 0, len(discoveryCfg.LinkPatterns))
	for _, raw := range discoveryCfg.LinkPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid link pattern %q: %w", raw, err)
		}
		patterns = append(patterns, re)
	}

	return &Parser{
		blockSelector: parseCfg.BlockSelector,
		fields:        parseCfg.Fields,
		followNext:    discoveryCfg.FollowNext,
		pageParam:     discoveryCfg.PageParam,
		linkPatterns:  patterns,
	}, nil
}

// Parse extracts record blocks and navigation links from a fetched page.
// A block whose fields all fail to locate is omitted; only a page with no
// recognizable structure at all yields a *ParseError.
func (p *Parser) Parse(body *fetcher.PageBody) (*ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body.Body))
	if err != nil {
		return nil, &ParseError{Kind: KindStructureMismatch, URL: body.URL}
	}

	result := &ParseResult{}

	doc.Find(p.blockSelector).Each(func(_ int, sel *goquery.Selection) {
		block := RawRecordBlock{SourceURL: body.URL}
		for _, field := range p.fields {
			value := p.extractField(sel, field)
			if value == "" {
				continue
			}
			block.Fields = append(block.Fields, RawField{Name: field.Name, Value: value})
		}
		if len(block.Fields) > 0 {
			result.Blocks = append(result.Blocks, block)
		}
	})

	result.NextURLs = p.discoverLinks(doc, body)

	// An index page with only navigation is fine; a page with neither
	// blocks nor recognizable navigation is a template mismatch.
	if len(result.Blocks) == 0 && len(result.NextURLs) == 0 && doc.Find(p.blockSelector).Length() == 0 {
		return nil, &ParseError{Kind: KindStructureMismatch, URL: body.URL}
	}

	return result, nil
}

// extractField pulls one field value out of a block, tolerating a missing
// selector (structural drift) by returning "".
func (p *Parser) extractField(block *goquery.Selection, field config.FieldSelector) string {
	sel := block.Find(field.Selector)
	if sel.Length() == 0 {
		return ""
	}
	if field.Attribute != "" {
		value, _ := sel.First().Attr(field.Attribute)
		return collapseSpace(value)
	}

	// Repeated matches (e.g. one row per sale event) are joined with a
	// separator the extractor splits on again, preserving page order.
	if sel.Length() > 1 {
		var parts []string
		sel.Each(func(_ int, s *goquery.Selection) {
			if text := collapseSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		return strings.Join(parts, " | ")
	}

	return collapseSpace(sel.First().Text())
}

// discoverLinks collects rel=next pagination, numbered page links, and
// anchors matching the configured URL patterns, resolved absolute.
func (p *Parser) discoverLinks(doc *goquery.Document, body *fetcher.PageBody) []string {
	base, err := url.Parse(body.FinalURL)
	if err != nil || base.Host == "" {
		base, err = url.Parse(body.URL)
		if err != nil {
			return nil
		}
	}

	seen := make(map[string]bool)
	var links []string
	add := func(raw string) {
		ref, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || ref.String() == "" {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		key := abs.String()
		if key == base.String() || seen[key] {
			return
		}
		seen[key] = true
		links = append(links, key)
	}

	if p.followNext {
		doc.Find(`a[rel="next"], link[rel="next"]`).Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				add(href)
			}
		})
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		if p.followNext && p.isNumberedPageLink(base, href) {
			add(href)
			return
		}
		target := href
		if u, err := url.Parse(href); err == nil && u.Path != "" {
			target = u.Path
		}
		for _, re := range p.linkPatterns {
			if re.MatchString(target) {
				add(href)
				return
			}
		}
	})

	return links
}

// isNumberedPageLink reports whether href is a ?page=N link for the same
// path as the current page.
func (p *Parser) isNumberedPageLink(base *url.URL, href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	if u.Query().Get(p.pageParam) == "" {
		return false
	}
	path := u.Path
	if path == "" {
		return true // query-only link, same path by definition
	}
	resolved := base.ResolveReference(u)
	return resolved.Path == base.Path
}

// collapseSpace trims and squeezes all whitespace runs to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

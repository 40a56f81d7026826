package parser

import (
	"errors"
	"testing"

	"github.com/mpetrenko/RecordHarvester/internal/config"
	"github.com/mpetrenko/RecordHarvester/internal/fetcher"
)

func testParser(t *testing.T) *Parser {
	t.Helper()
	p, err := New(
		config.ParseConfig{
			BlockSelector: "div.property-card",
			Fields: []config.FieldSelector{
				{Name: "owners", Selector: ".owners"},
				{Name: "address", Selector: ".address"},
				{Name: "sale_price", Selector: ".price"},
				{Name: "detail_url", Selector: "a.detail", Attribute: "href"},
			},
		},
		config.DiscoveryConfig{
			FollowNext:   true,
			PageParam:    "page",
			LinkPatterns: []string{`^/county/[^/]+/property/\d+/[^/]+/?$`},
		},
	)
	if err != nil {
		t.Fatalf("New parser: %v", err)
	}
	return p
}

func page(url, html string) *fetcher.PageBody {
	return &fetcher.PageBody{URL: url, FinalURL: url, Body: []byte(html)}
}

func TestParseExtractsBlocksInOrder(t *testing.T) {
	html := `<html><body>
		<div class="property-card">
			<span class="owners">Smith, John &amp; Jane</span>
			<span class="address">123 Main St, Springfield, IL 62704</span>
			<span class="price">$450,000</span>
		</div>
		<div class="property-card">
			<span class="owners">Oak Hill Trust</span>
			<span class="address">9 Elm Ave, Springfield, IL 62704</span>
		</div>
	</body></html>`

	p := testParser(t)
	result, err := p.Parse(page("http://example.com/listing", html))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(result.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(result.Blocks))
	}
	if got := result.Blocks[0].Get("owners"); got != "Smith, John & Jane" {
		t.Errorf("owners = %q", got)
	}
	if got := result.Blocks[1].Get("price"); got != "" {
		t.Errorf("missing optional field should be empty, got %q", got)
	}
	// Missing optional column must not drop the block.
	if got := result.Blocks[1].Get("owners"); got != "Oak Hill Trust" {
		t.Errorf("second block owners = %q", got)
	}
}

func TestParseOmitsEmptyBlocks(t *testing.T) {
	html := `<html><body>
		<div class="property-card"><span class="unrelated">noise</span></div>
		<div class="property-card"><span class="owners">John Smith</span></div>
	</body></html>`

	p := testParser(t)
	result, err := p.Parse(page("http://example.com/listing", html))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Blocks) != 1 {
		t.Fatalf("expected the unlocatable block to be omitted, got %d blocks", len(result.Blocks))
	}
}

func TestParseStructureMismatch(t *testing.T) {
	html := `<html><body><p>completely different template</p></body></html>`

	p := testParser(t)
	_, err := p.Parse(page("http://example.com/odd", html))
	if err == nil {
		t.Fatal("expected StructureMismatch for unrecognizable page")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Kind != KindStructureMismatch {
		t.Errorf("expected structure_mismatch, got %s", pe.Kind)
	}
}

func TestParseEmptyIndexPageWithNavigationIsNotAnError(t *testing.T) {
	html := `<html><body>
		<a href="/county/springfield/property/42/123-main-st">123 Main St</a>
		<a rel="next" href="?page=2">Next</a>
	</body></html>`

	p := testParser(t)
	result, err := p.Parse(page("http://example.com/county/cities/springfield", html))
	if err != nil {
		t.Fatalf("index page should parse: %v", err)
	}
	if len(result.Blocks) != 0 {
		t.Errorf("expected 0 blocks, got %d", len(result.Blocks))
	}
	if len(result.NextURLs) != 2 {
		t.Fatalf("expected 2 discovered links, got %d: %v", len(result.NextURLs), result.NextURLs)
	}
}

func TestDiscoverLinksResolvesAndDedupes(t *testing.T) {
	html := `<html><body>
		<div class="property-card"><span class="owners">A B</span></div>
		<a href="/county/x/property/1/first-st">one</a>
		<a href="/county/x/property/1/first-st">one again</a>
		<a href="http://example.com/county/x/property/2/second-st">two</a>
		<a href="/unrelated/path">nope</a>
		<a href="?page=3">page three</a>
		<a href="mailto:someone@example.com">mail</a>
	</body></html>`

	p := testParser(t)
	result, err := p.Parse(page("http://example.com/county/cities/x", html))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := map[string]bool{
		"http://example.com/county/x/property/1/first-st":  true,
		"http://example.com/county/x/property/2/second-st": true,
		"http://example.com/county/cities/x?page=3":        true,
	}
	if len(result.NextURLs) != len(want) {
		t.Fatalf("expected %d links, got %d: %v", len(want), len(result.NextURLs), result.NextURLs)
	}
	for _, link := range result.NextURLs {
		if !want[link] {
			t.Errorf("unexpected link %q", link)
		}
	}
}

func TestExtractFieldJoinsRepeatedMatches(t *testing.T) {
	html := `<html><body>
		<div class="property-card">
			<span class="owners">X Y</span>
			<p class="price">$100,000</p>
			<p class="price">$250,000</p>
		</div>
	</body></html>`

	p := testParser(t)
	result, err := p.Parse(page("http://example.com/p", html))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := result.Blocks[0].Get("sale_price"); got != "$100,000 | $250,000" {
		t.Errorf("joined field = %q", got)
	}
}

func TestExtractFieldAttribute(t *testing.T) {
	html := `<html><body>
		<div class="property-card">
			<span class="owners">X Y</span>
			<a class="detail" href="/county/x/property/9/elm">detail</a>
		</div>
	</body></html>`

	p := testParser(t)
	result, err := p.Parse(page("http://example.com/p", html))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := result.Blocks[0].Get("detail_url"); got != "/county/x/property/9/elm" {
		t.Errorf("attribute field = %q", got)
	}
}

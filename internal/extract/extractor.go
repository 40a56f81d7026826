// Package extract applies ordered rule-based parsing to raw record blocks,
// producing schema-typed normalized records. Rule evaluation is
// deterministic and total: the same block always yields the same record,
// fields no rule resolves get the explicit Unknown marker, and nothing
// panics past the package boundary.
package extract

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mpetrenko/RecordHarvester/internal/parser"
	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// ErrorKind classifies extraction failures.
type ErrorKind string

// KindUnparseable means no field of the block matched any rule. Blocks
// with at least one resolvable field are emitted with partial data instead.
const KindUnparseable ErrorKind = "unparseable"

// ExtractionError is the typed failure returned by Extract.
type ExtractionError struct {
	Kind      ErrorKind
	SourceURL string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract from %s failed: %s", e.SourceURL, e.Kind)
}

// Raw field names the extractor understands. The parser's field selectors
// map page structure onto this vocabulary.
const (
	rawOwners    = "owners"
	rawName      = "name"
	rawAddress   = "address"
	rawStreet    = "street"
	rawCity      = "city"
	rawState     = "state"
	rawZip       = "zip"
	rawSaleDate  = "sale_date"
	rawSalePrice = "sale_price"
	rawBuyer     = "buyer"
	rawSeller    = "seller"
)

// Extractor converts raw record blocks into normalized records.
type Extractor struct {
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the extraction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New creates an extractor.
func New(logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract produces a normalized record from one raw block. Fields that
// match no rule are left at the Unknown marker and the record is still
// emitted; only a block with zero resolvable fields fails, with a typed
// *ExtractionError.
func (e *Extractor) Extract(block parser.RawRecordBlock) (*records.NormalizedRecord, error) {
	rec := records.NewNormalizedRecord(block.SourceURL, e.now())
	resolved := 0

	assign := func(assignments map[string]string) {
		for field, value := range assignments {
			if value == "" {
				continue
			}
			if err := rec.SetField(field, value); err != nil {
				e.logger.Warn("dropping unassignable field",
					zap.String("field", field),
					zap.String("source", block.SourceURL),
				)
				continue
			}
			resolved++
		}
	}

	if owners := firstOf(block, rawOwners, rawName); owners != "" {
		if assignments, ok := parseOwnerName(owners); ok {
			assign(assignments)
		}
	}

	if addr := block.Get(rawAddress); addr != "" {
		if assignments, ok := parseAddress(addr); ok {
			assign(assignments)
		}
	}

	// Pre-split address parts take precedence over the one-line form.
	assign(directAddressParts(block))

	if ev := e.resolvePurchase(block); ev != nil {
		assign(purchaseAssignments(ev))
	}

	if resolved == 0 {
		return nil, &ExtractionError{Kind: KindUnparseable, SourceURL: block.SourceURL}
	}

	return rec, nil
}

// directAddressParts handles templates that expose street/city/state/zip
// as separate cells rather than one address line.
func directAddressParts(block parser.RawRecordBlock) map[string]string {
	assignments := make(map[string]string)
	if v := block.Get(rawStreet); v != "" {
		assignments[records.FieldStreet] = titleCase(collapseSpace(v))
	}
	if v := block.Get(rawCity); v != "" {
		assignments[records.FieldCity] = titleCase(collapseSpace(v))
	}
	if v := block.Get(rawState); v != "" {
		assignments[records.FieldState] = normalizeState(v)
	}
	if v := block.Get(rawZip); v != "" {
		assignments[records.FieldPostalCode] = normalizePostal(v)
	}
	return assignments
}

// resolvePurchase builds the sale-event timeline and picks the purchase
// attributable to the current owners. When owner matching fails but the
// page shows exactly one sale, that sale is taken as the purchase.
func (e *Extractor) resolvePurchase(block parser.RawRecordBlock) *saleEvent {
	events := buildSaleEvents(
		block.Get(rawSaleDate),
		block.Get(rawSalePrice),
		block.Get(rawBuyer),
		block.Get(rawSeller),
	)
	if len(events) == 0 {
		return nil
	}

	owners := firstOf(block, rawOwners, rawName)
	if ev := pickOriginalPurchase(owners, events); ev != nil {
		return ev
	}
	if len(events) == 1 {
		return &events[0]
	}
	return nil
}

// purchaseAssignments maps a chosen sale event onto purchase fields.
func purchaseAssignments(ev *saleEvent) map[string]string {
	assignments := make(map[string]string)
	if ev.HasDate {
		assignments[records.FieldPurchaseDate] = ev.Date.ISO
		assignments[records.FieldPurchaseMonth] = ev.Date.Month
		assignments[records.FieldPurchaseYear] = ev.Date.Year
	}
	if ev.Price != "" {
		assignments[records.FieldPurchasePrice] = ev.Price
	}
	if ev.Buyer != "" {
		assignments[records.FieldBuyerName] = titleCase(ev.Buyer)
	}
	if ev.Seller != "" {
		assignments[records.FieldSellerName] = titleCase(ev.Seller)
	}
	return assignments
}

// firstOf returns the first non-empty raw field among names.
func firstOf(block parser.RawRecordBlock, names ...string) string {
	for _, name := range names {
		if v := block.Get(name); v != "" {
			return v
		}
	}
	return ""
}

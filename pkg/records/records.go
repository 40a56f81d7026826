// Package records defines the canonical record schema shared by the
// harvesting pipeline and the export sinks.
package records

import (
	"fmt"
	"time"
)

// Unknown is the explicit marker for a field that no extraction rule could
// resolve. Schema invariant: every field of a NormalizedRecord is either a
// validated value or Unknown, never raw unparsed text.
const Unknown = "unknown"

// EntityType classifies the owning entity of a record.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityUnknown      EntityType = Unknown
)

// Field names of the canonical schema. Sinks use FieldOrder for stable
// column layout; the deduplicator resolves dedup_key_fields against these.
const (
	FieldEntityType      = "entity_type"
	FieldGivenName       = "given_name"
	FieldFamilyName      = "family_name"
	FieldCoGivenName     = "co_given_name"
	FieldCoFamilyName    = "co_family_name"
	FieldOrganization    = "organization"
	FieldCurrentOwners   = "current_owners"
	FieldStreet          = "street"
	FieldCity            = "city"
	FieldState           = "state"
	FieldPostalCode      = "postal_code"
	FieldPurchasePrice   = "purchase_price"
	FieldPurchaseDate    = "purchase_date"
	FieldPurchaseMonth   = "purchase_month"
	FieldPurchaseYear    = "purchase_year"
	FieldBuyerName       = "buyer_name"
	FieldSellerName      = "seller_name"
	FieldSourceURL       = "source_url"
	FieldExtractedAt     = "extracted_at"
)

// FieldOrder is the canonical column order used by tabular sinks. It mirrors
// the layout consumers of the exported datasets already depend on.
var FieldOrder = []string{
	FieldCurrentOwners,
	FieldEntityType,
	FieldGivenName,
	FieldFamilyName,
	FieldCoGivenName,
	FieldCoFamilyName,
	FieldOrganization,
	FieldPurchasePrice,
	FieldPurchaseDate,
	FieldPurchaseMonth,
	FieldPurchaseYear,
	FieldBuyerName,
	FieldSellerName,
	FieldStreet,
	FieldCity,
	FieldState,
	FieldPostalCode,
	FieldSourceURL,
	FieldExtractedAt,
}

// NormalizedRecord is a single-sighting, schema-typed extraction result.
type NormalizedRecord struct {
	EntityType    EntityType `json:"entity_type"`
	GivenName     string     `json:"given_name"`
	FamilyName    string     `json:"family_name"`
	CoGivenName   string     `json:"co_given_name"`
	CoFamilyName  string     `json:"co_family_name"`
	Organization  string     `json:"organization"`
	CurrentOwners string     `json:"current_owners"`

	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`

	PurchasePrice string `json:"purchase_price"`
	PurchaseDate  string `json:"purchase_date"`
	PurchaseMonth string `json:"purchase_month"`
	PurchaseYear  string `json:"purchase_year"`
	BuyerName     string `json:"buyer_name"`
	SellerName    string `json:"seller_name"`

	SourceURL   string    `json:"source_url"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// NewNormalizedRecord returns a record with every schema field set to the
// Unknown marker. Extraction fills in what its rules resolve.
func NewNormalizedRecord(sourceURL string, extractedAt time.Time) *NormalizedRecord {
	return &NormalizedRecord{
		EntityType:    EntityUnknown,
		GivenName:     Unknown,
		FamilyName:    Unknown,
		CoGivenName:   Unknown,
		CoFamilyName:  Unknown,
		Organization:  Unknown,
		CurrentOwners: Unknown,
		Street:        Unknown,
		City:          Unknown,
		State:         Unknown,
		PostalCode:    Unknown,
		PurchasePrice: Unknown,
		PurchaseDate:  Unknown,
		PurchaseMonth: Unknown,
		PurchaseYear:  Unknown,
		BuyerName:     Unknown,
		SellerName:    Unknown,
		SourceURL:     sourceURL,
		ExtractedAt:   extractedAt,
	}
}

// Field returns the value of a schema field by its canonical name.
func (r *NormalizedRecord) Field(name string) (string, error) {
	switch name {
	case FieldEntityType:
		return string(r.EntityType), nil
	case FieldGivenName:
		return r.GivenName, nil
	case FieldFamilyName:
		return r.FamilyName, nil
	case FieldCoGivenName:
		return r.CoGivenName, nil
	case FieldCoFamilyName:
		return r.CoFamilyName, nil
	case FieldOrganization:
		return r.Organization, nil
	case FieldCurrentOwners:
		return r.CurrentOwners, nil
	case FieldStreet:
		return r.Street, nil
	case FieldCity:
		return r.City, nil
	case FieldState:
		return r.State, nil
	case FieldPostalCode:
		return r.PostalCode, nil
	case FieldPurchasePrice:
		return r.PurchasePrice, nil
	case FieldPurchaseDate:
		return r.PurchaseDate, nil
	case FieldPurchaseMonth:
		return r.PurchaseMonth, nil
	case FieldPurchaseYear:
		return r.PurchaseYear, nil
	case FieldBuyerName:
		return r.BuyerName, nil
	case FieldSellerName:
		return r.SellerName, nil
	case FieldSourceURL:
		return r.SourceURL, nil
	case FieldExtractedAt:
		return r.ExtractedAt.UTC().Format(time.RFC3339), nil
	default:
		return "", fmt.Errorf("unknown record field: %s", name)
	}
}

// SetField assigns a schema field by its canonical name. Time-typed and
// derived fields (source_url, extracted_at) are not assignable this way.
func (r *NormalizedRecord) SetField(name, value string) error {
	switch name {
	case FieldEntityType:
		r.EntityType = EntityType(value)
	case FieldGivenName:
		r.GivenName = value
	case FieldFamilyName:
		r.FamilyName = value
	case FieldCoGivenName:
		r.CoGivenName = value
	case FieldCoFamilyName:
		r.CoFamilyName = value
	case FieldOrganization:
		r.Organization = value
	case FieldCurrentOwners:
		r.CurrentOwners = value
	case FieldStreet:
		r.Street = value
	case FieldCity:
		r.City = value
	case FieldState:
		r.State = value
	case FieldPostalCode:
		r.PostalCode = value
	case FieldPurchasePrice:
		r.PurchasePrice = value
	case FieldPurchaseDate:
		r.PurchaseDate = value
	case FieldPurchaseMonth:
		r.PurchaseMonth = value
	case FieldPurchaseYear:
		r.PurchaseYear = value
	case FieldBuyerName:
		r.BuyerName = value
	case FieldSellerName:
		r.SellerName = value
	default:
		return fmt.Errorf("field %s is not assignable", name)
	}
	return nil
}

// MergeableFields lists the schema fields that participate in cross-sighting
// merging. Source URL and extraction time are provenance, not merge fields.
var MergeableFields = []string{
	FieldEntityType,
	FieldGivenName,
	FieldFamilyName,
	FieldCoGivenName,
	FieldCoFamilyName,
	FieldOrganization,
	FieldCurrentOwners,
	FieldStreet,
	FieldCity,
	FieldState,
	FieldPostalCode,
	FieldPurchasePrice,
	FieldPurchaseDate,
	FieldPurchaseMonth,
	FieldPurchaseYear,
	FieldBuyerName,
	FieldSellerName,
}

// IsUnknown reports whether a field value is the Unknown marker or empty.
func IsUnknown(value string) bool {
	return value == "" || value == Unknown
}

// FieldConflict records a value that lost a merge decision. No information
// is discarded: the winning value lives in the record, the loser here.
type FieldConflict struct {
	Field     string    `json:"field"`
	Value     string    `json:"value"`
	SourceURL string    `json:"source_url"`
	SeenAt    time.Time `json:"seen_at"`
}

// MergedRecord is the accumulated, cross-sighting canonical record for one
// identity. After finalization it must be treated as immutable.
type MergedRecord struct {
	NormalizedRecord

	Key       string          `json:"identity_key"`
	Sources   []string        `json:"sources"`
	Conflicts []FieldConflict `json:"conflicts,omitempty"`
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
	Sightings int             `json:"sightings"`
}

// Row renders the record as a field-name → value map in the canonical
// schema. Tabular sinks combine it with FieldOrder for stable columns.
func (m *MergedRecord) Row() map[string]string {
	row := make(map[string]string, len(FieldOrder))
	for _, name := range FieldOrder {
		value, err := m.Field(name)
		if err != nil {
			continue
		}
		row[name] = value
	}
	return row
}

// Sink consumes finalized records for export. Implementations own their
// durability and format; Write is called once per record in emission order.
type Sink interface {
	Write(record *MergedRecord) error
	Flush() error
	Close() error
}

// WriteError reports a failed sink delivery for one record.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write record %s failed: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

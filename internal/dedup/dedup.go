// Package dedup merges repeated sightings of the same entity into one
// canonical record. Identity is a fold of configured key fields, merging
// never replaces a filled field with an unknown one, and emission order is
// the order identities were first seen.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mpetrenko/RecordHarvester/internal/config"
	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// DefaultKeyFields identifies an entity by owner and location when the
// configuration names no dedup_key_fields.
var DefaultKeyFields = []string{
	records.FieldCurrentOwners,
	records.FieldStreet,
	records.FieldCity,
	records.FieldState,
}

// keyPartSeparator joins folded key parts before hashing. Unit separator,
// so no folded value can collide across part boundaries.
const keyPartSeparator = "\x1f"

var keyFold = regexp.MustCompile(`[^a-z0-9 ]+`)

type entry struct {
	mu  sync.Mutex
	rec *records.MergedRecord
}

// Deduplicator accumulates normalized records and exposes the merged set.
// Absorb is safe for concurrent use; sightings of distinct identities do
// not contend past the table lookup.
type Deduplicator struct {
	keyFields []string
	logger    *zap.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	order     []string
	finalized bool
}

// New creates a deduplicator keyed on cfg.KeyFields, falling back to
// DefaultKeyFields when none are configured.
func New(cfg config.DedupConfig, logger *zap.Logger) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	keyFields := cfg.KeyFields
	if len(keyFields) == 0 {
		keyFields = DefaultKeyFields
	}
	return &Deduplicator{
		keyFields: keyFields,
		logger:    logger,
		entries:   make(map[string]*entry),
	}
}

// IdentityKey computes the stable identity of a record. Unknown key fields
// fold to empty; a record whose key fields are all unknown falls back to
// its source URL so unrelated unkeyed records never collapse together.
func (d *Deduplicator) IdentityKey(rec *records.NormalizedRecord) string {
	parts := make([]string, 0, len(d.keyFields))
	empty := true
	for _, field := range d.keyFields {
		value, err := rec.Field(field)
		if err != nil || records.IsUnknown(value) {
			parts = append(parts, "")
			continue
		}
		folded := foldKeyPart(value)
		if folded != "" {
			empty = false
		}
		parts = append(parts, folded)
	}
	if empty {
		return hashKey("url" + keyPartSeparator + rec.SourceURL)
	}
	return hashKey(strings.Join(parts, keyPartSeparator))
}

// Absorb merges one sighting into the working set. It reports the identity
// key and whether this sighting created a new identity.
func (d *Deduplicator) Absorb(rec *records.NormalizedRecord) (string, bool) {
	key := d.IdentityKey(rec)

	d.mu.Lock()
	e, ok := d.entries[key]
	if !ok {
		e = &entry{rec: newMerged(key, rec)}
		d.entries[key] = e
		d.order = append(d.order, key)
	}
	d.mu.Unlock()
	if !ok {
		return key, true
	}

	e.mu.Lock()
	d.merge(e.rec, rec)
	e.mu.Unlock()
	return key, false
}

// Finalize returns the merged records in the order their identities were
// first seen. It is idempotent; later Absorb calls still merge but do not
// reorder earlier identities.
func (d *Deduplicator) Finalize() []*records.MergedRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finalized = true

	out := make([]*records.MergedRecord, 0, len(d.order))
	for _, key := range d.order {
		out = append(out, d.entries[key].rec)
	}
	return out
}

// Len reports the number of distinct identities absorbed so far.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

func newMerged(key string, rec *records.NormalizedRecord) *records.MergedRecord {
	return &records.MergedRecord{
		NormalizedRecord: *rec,
		Key:              key,
		Sources:          []string{rec.SourceURL},
		FirstSeen:        rec.ExtractedAt,
		LastSeen:         rec.ExtractedAt,
		Sightings:        1,
	}
}

// merge folds a later sighting into the canonical record. Policy per field:
// unknown incoming values never displace filled ones; a filled incoming
// value fills an unknown field silently; when both sides are filled and
// disagree, the newer sighting wins and the losing value is kept in the
// conflict log.
func (d *Deduplicator) merge(dst *records.MergedRecord, src *records.NormalizedRecord) {
	incomingNewer := !src.ExtractedAt.Before(dst.LastSeen)

	for _, field := range records.MergeableFields {
		incoming, err := src.Field(field)
		if err != nil || records.IsUnknown(incoming) {
			continue
		}
		current, err := dst.Field(field)
		if err != nil {
			continue
		}
		if records.IsUnknown(current) {
			dst.SetField(field, incoming)
			continue
		}
		if current == incoming {
			continue
		}

		loser := records.FieldConflict{Field: field}
		if incomingNewer {
			loser.Value = current
			loser.SourceURL = dst.SourceURL
			loser.SeenAt = dst.LastSeen
			dst.SetField(field, incoming)
		} else {
			loser.Value = incoming
			loser.SourceURL = src.SourceURL
			loser.SeenAt = src.ExtractedAt
		}
		dst.Conflicts = append(dst.Conflicts, loser)
		d.logger.Debug("field conflict",
			zap.String("identity", dst.Key),
			zap.String("field", field),
			zap.String("kept", mustField(dst, field)),
			zap.String("dropped", loser.Value),
		)
	}

	if !containsString(dst.Sources, src.SourceURL) {
		dst.Sources = append(dst.Sources, src.SourceURL)
	}
	if src.ExtractedAt.Before(dst.FirstSeen) {
		dst.FirstSeen = src.ExtractedAt
	}
	if src.ExtractedAt.After(dst.LastSeen) {
		dst.LastSeen = src.ExtractedAt
	}
	if incomingNewer {
		dst.SourceURL = src.SourceURL
		dst.ExtractedAt = src.ExtractedAt
	}
	dst.Sightings++
}

// foldKeyPart lowers a value and strips punctuation so cosmetic rendering
// differences do not split an identity.
func foldKeyPart(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = keyFold.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func hashKey(material string) string {
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:16])
}

func mustField(rec *records.MergedRecord, name string) string {
	v, _ := rec.Field(name)
	return v
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

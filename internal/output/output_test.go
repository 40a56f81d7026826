package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mpetrenko/RecordHarvester/internal/config"
	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

func sampleRecord(t *testing.T) *records.MergedRecord {
	t.Helper()
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rec := records.NewNormalizedRecord("https://example.com/p/1", at)
	for name, value := range map[string]string{
		records.FieldEntityType:    "person",
		records.FieldGivenName:     "John",
		records.FieldFamilyName:    "Smith",
		records.FieldCurrentOwners: "Smith, John",
		records.FieldStreet:        "123 Main St",
		records.FieldCity:          "Springfield",
		records.FieldState:         "Illinois",
		records.FieldPostalCode:    "62704",
		records.FieldPurchasePrice: "450000",
	} {
		if err := rec.SetField(name, value); err != nil {
			t.Fatalf("SetField(%q) error = %v", name, err)
		}
	}
	return &records.MergedRecord{
		NormalizedRecord: *rec,
		Key:              "abc123",
		Sources:          []string{"https://example.com/p/1"},
		FirstSeen:        at,
		LastSeen:         at,
		Sightings:        1,
	}
}

func TestCSVSinkLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink() error = %v", err)
	}

	rec := sampleRecord(t)
	if err := sink.Write(rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want header + 1", len(rows))
	}
	if len(rows[0]) != len(records.FieldOrder) {
		t.Fatalf("header has %d columns, want %d", len(rows[0]), len(records.FieldOrder))
	}
	for i, name := range records.FieldOrder {
		if rows[0][i] != name {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], name)
		}
	}

	byName := make(map[string]string)
	for i, name := range records.FieldOrder {
		byName[name] = rows[1][i]
	}
	if byName[records.FieldCurrentOwners] != "Smith, John" {
		t.Errorf("current_owners = %q", byName[records.FieldCurrentOwners])
	}
	if byName[records.FieldCoGivenName] != records.Unknown {
		t.Errorf("co_given_name = %q, want unknown marker", byName[records.FieldCoGivenName])
	}
	if byName[records.FieldSourceURL] != "https://example.com/p/1" {
		t.Errorf("source_url = %q", byName[records.FieldSourceURL])
	}
}

func TestCSVSinkEmptyRunLeavesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), records.FieldOrder[0]) {
		t.Errorf("empty run did not write header, got %q", string(data))
	}
}

func TestJSONLSinkCarriesProvenance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink() error = %v", err)
	}

	rec := sampleRecord(t)
	rec.Conflicts = []records.FieldConflict{{
		Field:     records.FieldPurchasePrice,
		Value:     "440000",
		SourceURL: "https://example.com/p/old",
		SeenAt:    rec.FirstSeen,
	}}
	if err := sink.Write(rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("no lines written")
	}
	var decoded struct {
		Key       string                  `json:"identity_key"`
		Owners    string                  `json:"current_owners"`
		Sightings int                     `json:"sightings"`
		Conflicts []records.FieldConflict `json:"conflicts"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Key != "abc123" || decoded.Owners != "Smith, John" || decoded.Sightings != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Conflicts) != 1 || decoded.Conflicts[0].Value != "440000" {
		t.Errorf("conflicts = %+v", decoded.Conflicts)
	}
	if scanner.Scan() {
		t.Error("more than one line written for one record")
	}
}

func TestNewSinkUnsupportedFormat(t *testing.T) {
	_, err := New(config.OutputConfig{Format: "parquet"}, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Errorf("New() error = %v, want unsupported format", err)
	}
}

func TestNewSinkCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factory.csv")
	sink, err := New(config.OutputConfig{Format: "csv", File: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := sink.(*CSVSink); !ok {
		t.Errorf("sink type = %T, want *CSVSink", sink)
	}
	sink.Close()
}

func TestSQLDialectQueries(t *testing.T) {
	pg := postgresDialect()
	if got := pg.placeholder(3); got != "$3" {
		t.Errorf("postgres placeholder = %q", got)
	}
	if got := pg.quote("purchase_price"); got != `"purchase_price"` {
		t.Errorf("postgres quote = %q", got)
	}

	my := mysqlDialect()
	if got := my.placeholder(3); got != "?" {
		t.Errorf("mysql placeholder = %q", got)
	}
	if got := my.quote("city"); got != "`city`" {
		t.Errorf("mysql quote = %q", got)
	}

	lite := sqliteDialect()
	create := lite.createTable("records", records.FieldOrder)
	if !strings.Contains(create, "CREATE TABLE IF NOT EXISTS [records]") {
		t.Errorf("sqlite create table = %q", create)
	}
	for _, name := range records.FieldOrder {
		if !strings.Contains(create, "["+name+"] TEXT") {
			t.Errorf("sqlite create table missing column %q", name)
		}
	}
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	sink, err := NewSQLiteSink(path, "properties")
	if err != nil {
		t.Fatalf("NewSQLiteSink() error = %v", err)
	}

	if err := sink.Write(sampleRecord(t)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var count int
	var owners string
	if err := sink.db.QueryRow("SELECT COUNT(*), MAX([current_owners]) FROM [properties]").Scan(&count, &owners); err != nil {
		t.Fatalf("QueryRow() error = %v", err)
	}
	if count != 1 || owners != "Smith, John" {
		t.Errorf("count = %d owners = %q", count, owners)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

package importer

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const (
	DatasetCatalog   = "catalog"
	DatasetLocations = "locations"

	// DefaultFlavorName names the variant created for products without any
	DefaultFlavorName = "Default"
)

// ProductRecord is one parent record of a catalog dataset
type ProductRecord struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Flavors     []FlavorRecord  `json:"flavors"`
}

// FlavorRecord is a variant of a product, priced relative to its parent
type FlavorRecord struct {
	Type          string          `json:"type"`
	Value         string          `json:"value"`
	Stock         int             `json:"stock"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// DisplayName is the stored variant name
func (f FlavorRecord) DisplayName() string {
	if v := strings.TrimSpace(f.Value); v != "" {
		return v
	}
	return strings.TrimSpace(f.Type)
}

// Variant is a flavor row ready to insert
type Variant struct {
	Name  string
	Stock int
	Price decimal.Decimal
}

// Variants expands the flavors into rows. A product without flavors gets a
// single Default variant carrying its own stock and price.
func (p ProductRecord) Variants() []Variant {
	if len(p.Flavors) == 0 {
		return []Variant{{
			Name:  DefaultFlavorName,
			Stock: p.Stock,
			Price: p.Price.Round(2),
		}}
	}

	variants := make([]Variant, 0, len(p.Flavors))
	for _, f := range p.Flavors {
		variants = append(variants, Variant{
			Name:  f.DisplayName(),
			Stock: f.Stock,
			Price: p.Price.Add(f.PriceModifier).Round(2),
		})
	}
	return variants
}

// Validate checks a product before anything is written
func (p ProductRecord) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name is required")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %q has negative price %s", p.Name, p.Price)
	}
	if p.Stock < 0 {
		return fmt.Errorf("product %q has negative stock %d", p.Name, p.Stock)
	}
	for i, f := range p.Flavors {
		if f.DisplayName() == "" {
			return fmt.Errorf("product %q flavor %d has neither type nor value", p.Name, i+1)
		}
		if f.Stock < 0 {
			return fmt.Errorf("product %q flavor %q has negative stock %d", p.Name, f.DisplayName(), f.Stock)
		}
		if p.Price.Add(f.PriceModifier).IsNegative() {
			return fmt.Errorf("product %q flavor %q resolves to a negative price", p.Name, f.DisplayName())
		}
	}
	return nil
}

// LocationID is the external key of a location. Feeds carry it either as a
// string or as a bare number; both decode to the same text.
type LocationID string

// UnmarshalJSON accepts a JSON string or number
func (id *LocationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = LocationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil || !isNumber(n) {
		return fmt.Errorf("location id must be a string or a number, got %s", data)
	}
	*id = LocationID(n.String())
	return nil
}

func isNumber(n json.Number) bool {
	_, err := n.Float64()
	return err == nil
}

// LocationRecord is a pickup point keyed by its external id
type LocationRecord struct {
	ID          LocationID `json:"id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	City        string     `json:"city"`
	Area        string     `json:"area"`
	ServiceTags []string   `json:"service_tags"`
}

// Validate checks a location before anything is written
func (l LocationRecord) Validate() error {
	if strings.TrimSpace(string(l.ID)) == "" {
		return fmt.Errorf("location id is required")
	}
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("location %s has latitude %v out of range", l.ID, l.Lat)
	}
	if l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("location %s has longitude %v out of range", l.ID, l.Lng)
	}
	return nil
}

// ImportSummary reports a finished import
type ImportSummary struct {
	Dataset       string        `json:"dataset"`
	RunID         string        `json:"run_id"`
	Expected      int           `json:"expected"`
	InsertedCount int           `json:"inserted_count"`
	ChildCount    int           `json:"child_count"`
	BatchCount    int           `json:"batch_count"`
	ActualCount   int           `json:"actual_count"`
	CountMismatch bool          `json:"count_mismatch"`
	Duration      time.Duration `json:"duration"`
}

// Rows returns the summary as ordered label/value pairs for display
func (s *ImportSummary) Rows() [][2]string {
	rows := [][2]string{
		{"Dataset", s.Dataset},
		{"Records in file", fmt.Sprintf("%d", s.Expected)},
		{"Records written", fmt.Sprintf("%d", s.InsertedCount)},
	}
	if s.Dataset == DatasetCatalog {
		rows = append(rows, [2]string{"Flavors written", fmt.Sprintf("%d", s.ChildCount)})
	}
	rows = append(rows,
		[2]string{"Batches committed", fmt.Sprintf("%d", s.BatchCount)},
		[2]string{"Rows in store", fmt.Sprintf("%d", s.ActualCount)},
	)
	verification := "OK"
	if s.CountMismatch {
		verification = fmt.Sprintf("MISMATCH (expected %d, found %d)", s.Expected, s.ActualCount)
	}
	rows = append(rows, [2]string{"Verification", verification})
	return rows
}

// BatchError reports the batch that was rolled back. Indexes are zero based;
// RecordIndex is the position of the failing record in the source file.
type BatchError struct {
	Dataset     string
	BatchIndex  int
	RecordIndex int
	Cause       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s batch %d rolled back at record %d: %v",
		e.Dataset, e.BatchIndex+1, e.RecordIndex+1, e.Cause)
}

func (e *BatchError) Unwrap() error {
	return e.Cause
}

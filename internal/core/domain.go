package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PerUnit   PricingMode = "per_unit"
	PerWeight PricingMode = "per_weight"
)

// Precision for weights and per-gram prices.
const QuantityPlaces = 3

type (
	PricingMode string

	// Item is the catalog's view of something that can be consumed.
	Item struct {
		ID        int64
		Name      string
		Mode      PricingMode
		UnitPrice decimal.Decimal // per unit or per gram, depending on Mode
		Active    bool
	}

	// SurchargeTier adds a flat amount to per-weight items whose weight
	// falls inside [Min, Max], both ends inclusive.
	SurchargeTier struct {
		ID        int64
		Label     string
		Min       decimal.Decimal
		Max       decimal.Decimal
		Surcharge decimal.Decimal
		Active    bool
		SortOrder int
	}

	Person struct {
		ID    int64
		Name  string
		Guest bool
		// Active persons are offered for new entries. Inactive ones keep their history.
		Active       bool
		CheckpointAt *time.Time // nil until the first debt reset
		CreatedAt    time.Time
	}

	// Transaction is a priced consumption entry. Amount is frozen at creation.
	Transaction struct {
		ID        string
		PersonID  int64
		ItemID    int64
		Quantity  decimal.Decimal // grams for per-weight items, 1 otherwise
		Amount    Money
		CreatedAt time.Time
	}

	// TransactionFilter selects a page of the transaction log, newest first.
	TransactionFilter struct {
		PersonID int64 // 0 means every person
		Limit    int
		Offset   int
	}
)

var One = decimal.NewFromInt(1)

func (m PricingMode) Valid() bool {
	return m == PerUnit || m == PerWeight
}

func (i Item) Validate() error {
	if !i.Mode.Valid() {
		return ErrInvalidPricingMode
	}
	if i.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	if strings.TrimSpace(i.Name) == "" {
		return errors.New("item name cannot be empty")
	}
	return nil
}

func (t SurchargeTier) Validate() error {
	if t.Min.IsNegative() {
		return errors.New("tier min must be >= 0")
	}
	if !t.Max.IsPositive() {
		return errors.New("tier max must be > 0")
	}
	if t.Min.GreaterThan(t.Max) {
		return errors.New("tier min must be <= max")
	}
	if t.Surcharge.IsNegative() {
		return errors.New("tier surcharge must be >= 0")
	}
	return nil
}

// Contains reports whether w lies inside the tier interval, bounds included.
func (t SurchargeTier) Contains(w decimal.Decimal) bool {
	return t.Min.LessThanOrEqual(w) && w.LessThanOrEqual(t.Max)
}

func (p Person) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return ErrInvalidName
	}
	if len(name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

// CountsAt reports whether a transaction created at ts belongs to the
// person's current debt window.
func (p Person) CountsAt(ts time.Time) bool {
	return p.CheckpointAt == nil || ts.After(*p.CheckpointAt)
}

func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Package pricing turns an item and a quantity into a money amount.
//
// Pricing is a pure function of its inputs: the same item, quantity and tier
// set always yield the same amount. Nothing here touches storage.
package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"bartab/internal/core"
)

// Quote is the outcome of pricing one entry.
type Quote struct {
	Amount   core.Money
	Quantity decimal.Decimal     // normalized quantity to store with the transaction
	Tier     *core.SurchargeTier // matched tier, nil when no surcharge applied
}

// Price resolves the amount for item at quantity qty. qty may be nil for
// per-unit items; a per-unit item accepts only an explicit quantity of one.
func Price(item core.Item, qty *decimal.Decimal, tiers []core.SurchargeTier) (Quote, error) {
	if !item.Active {
		return Quote{}, core.ErrItemInactive
	}
	switch item.Mode {
	case core.PerUnit:
		if qty != nil && !qty.Equal(core.One) {
			return Quote{}, fmt.Errorf("%w: per-unit items take no quantity", core.ErrInvalidQuantity)
		}
		amount, err := core.RoundMoney(item.UnitPrice)
		if err != nil {
			return Quote{}, fmt.Errorf("%w: %w", core.ErrInvalidPrice, err)
		}
		return Quote{Amount: amount, Quantity: core.One}, nil
	case core.PerWeight:
		if qty == nil {
			return Quote{}, fmt.Errorf("%w: weight is required", core.ErrInvalidQuantity)
		}
		w := core.NormalizeQuantity(*qty)
		if !w.IsPositive() {
			return Quote{}, fmt.Errorf("%w: weight must be positive", core.ErrInvalidQuantity)
		}
		unit := item.UnitPrice.Round(core.QuantityPlaces)
		total := unit.Mul(w)
		q := Quote{Quantity: w}
		if tier, ok := ResolveTier(tiers, w); ok {
			total = total.Add(tier.Surcharge)
			q.Tier = &tier
		}
		amount, err := core.RoundMoney(total)
		if err != nil {
			return Quote{}, fmt.Errorf("%w: weight %s: %w", core.ErrInvalidQuantity, core.FormatQuantity(w), err)
		}
		q.Amount = amount
		return q, nil
	default:
		return Quote{}, core.ErrInvalidPricingMode
	}
}

// ResolveTier picks the surcharge tier for weight w. Among active tiers whose
// interval contains w, the lowest SortOrder wins, then the lowest ID.
func ResolveTier(tiers []core.SurchargeTier, w decimal.Decimal) (core.SurchargeTier, bool) {
	var matches []core.SurchargeTier
	for _, t := range tiers {
		if t.Active && t.Contains(w) {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return core.SurchargeTier{}, false
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].SortOrder != matches[j].SortOrder {
			return matches[i].SortOrder < matches[j].SortOrder
		}
		return matches[i].ID < matches[j].ID
	})
	return matches[0], true
}

// Overlaps lists pairs of active tiers whose intervals intersect. The engine
// tolerates overlaps; callers use this to warn about them.
func Overlaps(tiers []core.SurchargeTier) [][2]core.SurchargeTier {
	var out [][2]core.SurchargeTier
	for i := 0; i < len(tiers); i++ {
		if !tiers[i].Active {
			continue
		}
		for j := i + 1; j < len(tiers); j++ {
			if !tiers[j].Active {
				continue
			}
			a, b := tiers[i], tiers[j]
			if a.Min.LessThanOrEqual(b.Max) && b.Min.LessThanOrEqual(a.Max) {
				out = append(out, [2]core.SurchargeTier{a, b})
			}
		}
	}
	return out
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bartab/internal/core"
	"bartab/internal/log"
)

const defaultSplitConcurrency = 4

// SplitRequest is one consumption event addressed to one or more persons.
type SplitRequest struct {
	ItemID        int64
	PersonIDs     []int64
	TotalQuantity *decimal.Decimal // grams for per-weight items; nil or 1 for per-unit
}

// SplitResult lists the committed transactions in request order.
type SplitResult struct {
	Transactions []core.Transaction
	Requested    int
	Succeeded    int
}

// SplitBilling expands a consumption request into one priced transaction per
// person. Per-unit items charge every person the full unit price; per-weight
// totals are divided evenly and each share is priced on its own.
//
// Appends run concurrently and are not atomic as a group: entries that
// succeed stay committed when others fail.
type SplitBilling struct {
	ledger      *Ledger
	concurrency int
}

func NewSplitBilling(ledger *Ledger, concurrency int) *SplitBilling {
	if concurrency < 1 {
		concurrency = defaultSplitConcurrency
	}
	return &SplitBilling{ledger: ledger, concurrency: concurrency}
}

// Record validates the request as a whole, then appends one entry per person.
// A single-person request returns the append error unchanged. With several
// persons, any failure yields *core.PartialFailureError next to the result.
func (s *SplitBilling) Record(ctx context.Context, req SplitRequest) (SplitResult, error) {
	persons := dedupe(req.PersonIDs)
	if len(persons) == 0 {
		return SplitResult{}, core.ErrEmptyGroup
	}
	m := s.ledger.metrics

	item, err := s.ledger.catalog.Item(ctx, req.ItemID)
	if err != nil {
		m.SplitRequest("failed")
		return SplitResult{}, err
	}
	if !item.Active {
		m.SplitRequest("failed")
		return SplitResult{}, core.ErrItemInactive
	}

	share, err := shareFor(item, req.TotalQuantity, len(persons))
	if err != nil {
		m.SplitRequest("failed")
		return SplitResult{}, err
	}

	var tiers []core.SurchargeTier
	if item.Mode == core.PerWeight {
		if tiers, err = s.ledger.catalog.ActiveTiers(ctx); err != nil {
			m.SplitRequest("failed")
			return SplitResult{}, fmt.Errorf("load surcharge tiers: %w", err)
		}
	}

	txs := make([]core.Transaction, len(persons))
	errs := make([]error, len(persons))

	// Group without a derived context: one failed append must not cancel the others.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, pid := range persons {
		g.Go(func() error {
			txs[i], errs[i] = s.ledger.record(ctx, pid, item, tiers, share)
			return nil
		})
	}
	_ = g.Wait()

	res := SplitResult{Requested: len(persons)}
	var failures []core.PersonFailure
	for i, pid := range persons {
		if errs[i] != nil {
			s.ledger.fail(log.OpSplit, errs[i])
			failures = append(failures, core.PersonFailure{PersonID: pid, Err: errs[i]})
			continue
		}
		res.Transactions = append(res.Transactions, txs[i])
	}
	res.Succeeded = len(res.Transactions)

	switch {
	case len(failures) == 0:
		m.SplitRequest("ok")
		return res, nil
	case len(persons) == 1:
		m.SplitRequest("failed")
		return res, failures[0].Err
	default:
		if res.Succeeded == 0 {
			m.SplitRequest("failed")
		} else {
			m.SplitRequest("partial")
		}
		slog.WarnContext(ctx, "Split request partially failed",
			log.FieldItemID, item.ID,
			log.FieldRequested, res.Requested,
			log.FieldSucceeded, res.Succeeded)
		return res, &core.PartialFailureError{
			Requested: res.Requested,
			Succeeded: res.Succeeded,
			Failures:  failures,
		}
	}
}

// shareFor returns the quantity each person is priced on.
func shareFor(item core.Item, total *decimal.Decimal, n int) (*decimal.Decimal, error) {
	switch item.Mode {
	case core.PerUnit:
		if total != nil && !total.Equal(core.One) {
			return nil, fmt.Errorf("%w: per-unit items take no quantity", core.ErrInvalidQuantity)
		}
		return nil, nil
	case core.PerWeight:
		if total == nil || !total.IsPositive() {
			return nil, fmt.Errorf("%w: total weight is required", core.ErrInvalidQuantity)
		}
		share := total.DivRound(decimal.NewFromInt(int64(n)), core.QuantityPlaces)
		if !share.IsPositive() {
			return nil, fmt.Errorf("%w: share of %s across %d persons rounds to zero", core.ErrInvalidQuantity, total, n)
		}
		return &share, nil
	default:
		return nil, core.ErrInvalidPricingMode
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

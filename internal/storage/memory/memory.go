// Package memory is an in-process ledger store for tests and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bartab/internal/core"
)

type Store struct {
	mu           sync.Mutex
	items        map[int64]core.Item
	tiers        map[int64]core.SurchargeTier
	persons      map[int64]core.Person
	transactions map[string]core.Transaction
	nextPersonID int64
}

func New() *Store {
	return &Store{
		items:        map[int64]core.Item{},
		tiers:        map[int64]core.SurchargeTier{},
		persons:      map[int64]core.Person{},
		transactions: map[string]core.Transaction{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) UpsertItem(_ context.Context, it core.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = it
	return nil
}

func (s *Store) UpsertTier(_ context.Context, t core.SurchargeTier) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[t.ID] = t
	return nil
}

func (s *Store) Item(_ context.Context, id int64) (core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return core.Item{}, core.ErrUnknownItem
	}
	return it, nil
}

func (s *Store) ActiveTiers(context.Context) ([]core.SurchargeTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.SurchargeTier
	for _, t := range s.tiers {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreatePerson(_ context.Context, p core.Person) (core.Person, error) {
	if err := p.Validate(); err != nil {
		return core.Person{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPersonID++
	p.ID = s.nextPersonID
	s.persons[p.ID] = p
	return p, nil
}

func (s *Store) Person(_ context.Context, id int64) (core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return core.Person{}, core.ErrUnknownPerson
	}
	return p, nil
}

func (s *Store) ListPersons(context.Context) ([]core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedPersons(), nil
}

func (s *Store) ResetCheckpoint(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return core.ErrUnknownPerson
	}
	at = at.UTC()
	p.CheckpointAt = &at
	s.persons[id] = p
	return nil
}

func (s *Store) ResetAllCheckpoints(_ context.Context, at time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at = at.UTC()
	ids := make([]int64, 0, len(s.persons))
	for id, p := range s.persons {
		p.CheckpointAt = &at
		s.persons[id] = p
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[tx.PersonID]; !ok {
		return core.ErrUnknownPerson
	}
	tx.Quantity = core.NormalizeQuantity(tx.Quantity)
	s.transactions[tx.ID] = tx
	return nil
}

func (s *Store) Transaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.ErrUnknownTransaction
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transactions[tx.ID]
	if !ok {
		return core.ErrUnknownTransaction
	}
	cur.Quantity = core.NormalizeQuantity(tx.Quantity)
	cur.Amount = tx.Amount
	s.transactions[tx.ID] = cur
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return core.ErrUnknownTransaction
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, f core.TransactionFilter) ([]core.Transaction, int, error) {
	f = f.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.newestFirst(func(tx core.Transaction) bool {
		return f.PersonID == 0 || tx.PersonID == f.PersonID
	})
	total := len(all)
	if f.Offset >= total {
		return []core.Transaction{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return append([]core.Transaction{}, all[f.Offset:end]...), total, nil
}

func (s *Store) LatestTransaction(_ context.Context, personID int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return core.Transaction{}, core.ErrNothingToUndo
	}
	txs := s.newestFirst(func(tx core.Transaction) bool {
		return tx.PersonID == personID && p.CountsAt(tx.CreatedAt)
	})
	if len(txs) == 0 {
		return core.Transaction{}, core.ErrNothingToUndo
	}
	return txs[0], nil
}

func (s *Store) DebtSummary(context.Context) (core.DebtSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	persons := s.sortedPersons()
	rows := make([]core.PersonDebt, len(persons))
	index := make(map[int64]int, len(persons))
	for i, p := range persons {
		rows[i] = core.PersonDebt{Person: p}
		index[p.ID] = i
	}
	for _, tx := range s.transactions {
		i, ok := index[tx.PersonID]
		if !ok || !rows[i].Person.CountsAt(tx.CreatedAt) {
			continue
		}
		rows[i].Total = rows[i].Total.Add(tx.Amount)
		rows[i].Count++
	}
	return core.NewDebtSummary(rows), nil
}

// must hold s.mu
func (s *Store) sortedPersons() []core.Person {
	out := make([]core.Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// must hold s.mu
func (s *Store) newestFirst(keep func(core.Transaction) bool) []core.Transaction {
	var out []core.Transaction
	for _, tx := range s.transactions {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Package seed loads the catalog snapshot and person roster from a YAML file.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"bartab/internal/core"
	"bartab/internal/log"
	"bartab/internal/ports"
	"bartab/internal/pricing"
)

type Item struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	Mode      string `yaml:"mode"`
	UnitPrice string `yaml:"unit_price"`
	Active    *bool  `yaml:"active"`
}

type Tier struct {
	ID        int64  `yaml:"id"`
	Label     string `yaml:"label"`
	Min       string `yaml:"min"`
	Max       string `yaml:"max"`
	Surcharge string `yaml:"surcharge"`
	SortOrder int    `yaml:"sort_order"`
	Active    *bool  `yaml:"active"`
}

type Person struct {
	Name  string `yaml:"name"`
	Guest bool   `yaml:"guest"`
}

// File is a parsed seed file. Omitted active flags default to true.
type File struct {
	Items   []Item   `yaml:"items"`
	Tiers   []Tier   `yaml:"tiers"`
	Persons []Person `yaml:"persons"`
}

// Report counts what Apply changed.
type Report struct {
	Items          int
	Tiers          int
	PersonsCreated int
	Overlaps       int
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	return &f, nil
}

// Apply upserts items and tiers by id and creates persons that are not yet on
// the roster, matching by name case-insensitively. It is safe to run on every
// start.
func Apply(ctx context.Context, f *File, catalog ports.CatalogWriter, persons ports.PersonStore, now time.Time) (Report, error) {
	var rep Report

	for _, si := range f.Items {
		it, err := si.toCore()
		if err != nil {
			return rep, fmt.Errorf("item %d: %w", si.ID, err)
		}
		if err := catalog.UpsertItem(ctx, it); err != nil {
			return rep, fmt.Errorf("item %d: %w", si.ID, err)
		}
		rep.Items++
	}

	tiers := make([]core.SurchargeTier, 0, len(f.Tiers))
	for _, st := range f.Tiers {
		t, err := st.toCore()
		if err != nil {
			return rep, fmt.Errorf("tier %d: %w", st.ID, err)
		}
		if err := catalog.UpsertTier(ctx, t); err != nil {
			return rep, fmt.Errorf("tier %d: %w", st.ID, err)
		}
		tiers = append(tiers, t)
		rep.Tiers++
	}
	for _, pair := range pricing.Overlaps(tiers) {
		rep.Overlaps++
		slog.WarnContext(ctx, "Surcharge tiers overlap, the lower sort order wins on shared weights",
			log.FieldComponent, log.ComponentSeed,
			"tier_a", pair[0].ID,
			"tier_b", pair[1].ID)
	}

	existing, err := persons.ListPersons(ctx)
	if err != nil {
		return rep, fmt.Errorf("list persons: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		known[strings.ToLower(strings.TrimSpace(p.Name))] = struct{}{}
	}
	for _, sp := range f.Persons {
		name := strings.TrimSpace(sp.Name)
		key := strings.ToLower(name)
		if _, ok := known[key]; ok {
			continue
		}
		p := core.Person{Name: name, Guest: sp.Guest, Active: true, CreatedAt: now}
		if err := p.Validate(); err != nil {
			return rep, fmt.Errorf("person %q: %w", sp.Name, err)
		}
		if _, err := persons.CreatePerson(ctx, p); err != nil {
			return rep, fmt.Errorf("person %q: %w", sp.Name, err)
		}
		known[key] = struct{}{}
		rep.PersonsCreated++
	}

	slog.InfoContext(ctx, "Seed applied",
		log.FieldComponent, log.ComponentSeed,
		"items", rep.Items,
		"tiers", rep.Tiers,
		"persons_created", rep.PersonsCreated)
	return rep, nil
}

func (si Item) toCore() (core.Item, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(si.UnitPrice))
	if err != nil {
		return core.Item{}, fmt.Errorf("unit_price %q: %w", si.UnitPrice, core.ErrInvalidPrice)
	}
	it := core.Item{
		ID:        si.ID,
		Name:      strings.TrimSpace(si.Name),
		Mode:      core.PricingMode(si.Mode),
		UnitPrice: price,
		Active:    active(si.Active),
	}
	return it, it.Validate()
}

func (st Tier) toCore() (core.SurchargeTier, error) {
	var vals [3]decimal.Decimal
	for i, s := range []string{st.Min, st.Max, st.Surcharge} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return core.SurchargeTier{}, fmt.Errorf("invalid number %q", s)
		}
		vals[i] = d
	}
	t := core.SurchargeTier{
		ID:        st.ID,
		Label:     st.Label,
		Min:       vals[0],
		Max:       vals[1],
		Surcharge: vals[2],
		Active:    active(st.Active),
		SortOrder: st.SortOrder,
	}
	return t, t.Validate()
}

func active(b *bool) bool {
	return b == nil || *b
}

package core

// PersonDebt is one row of a debt summary.
type PersonDebt struct {
	Person Person
	Total  Money
	Count  int // transactions since the checkpoint
}

// DebtSummary is computed on every query and never stored.
type DebtSummary struct {
	Total     Money
	PerPerson []PersonDebt
}

// NewDebtSummary builds a summary and its grand total from per-person rows.
func NewDebtSummary(rows []PersonDebt) DebtSummary {
	s := DebtSummary{PerPerson: rows}
	if s.PerPerson == nil {
		s.PerPerson = []PersonDebt{}
	}
	for _, r := range rows {
		s.Total = s.Total.Add(r.Total)
	}
	return s
}

// For returns the row of the given person, if present.
func (s DebtSummary) For(personID int64) (PersonDebt, bool) {
	for _, r := range s.PerPerson {
		if r.Person.ID == personID {
			return r, true
		}
	}
	return PersonDebt{}, false
}

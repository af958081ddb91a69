package http

import (
	"time"

	"bartab/internal/core"
	"bartab/internal/services"
)

// Money fields render as "2.65" through core.Money's text marshaling.

type transactionDTO struct {
	ID        string     `json:"id"`
	PersonID  int64      `json:"person_id"`
	ItemID    int64      `json:"item_id"`
	Quantity  string     `json:"quantity"`
	Amount    core.Money `json:"amount"`
	CreatedAt time.Time  `json:"created_at"`
}

func newTransactionDTO(tx core.Transaction) transactionDTO {
	return transactionDTO{
		ID:        tx.ID,
		PersonID:  tx.PersonID,
		ItemID:    tx.ItemID,
		Quantity:  core.FormatQuantity(tx.Quantity),
		Amount:    tx.Amount,
		CreatedAt: tx.CreatedAt.UTC(),
	}
}

func newTransactionDTOs(txs []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionDTO(tx))
	}
	return out
}

type splitResultDTO struct {
	Transactions []transactionDTO `json:"transactions"`
	Requested    int              `json:"requested"`
	Succeeded    int              `json:"succeeded"`
}

func newSplitResultDTO(res services.SplitResult) splitResultDTO {
	return splitResultDTO{
		Transactions: newTransactionDTOs(res.Transactions),
		Requested:    res.Requested,
		Succeeded:    res.Succeeded,
	}
}

type pageDTO struct {
	Transactions []transactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
}

type personDebtDTO struct {
	PersonID     int64      `json:"person_id"`
	Name         string     `json:"name"`
	Guest        bool       `json:"guest"`
	Total        core.Money `json:"total"`
	Count        int        `json:"count"`
	CheckpointAt *time.Time `json:"checkpoint_at,omitempty"`
}

type debtSummaryDTO struct {
	Total     core.Money      `json:"total"`
	PerPerson []personDebtDTO `json:"per_person"`
}

func newDebtSummaryDTO(s core.DebtSummary) debtSummaryDTO {
	out := debtSummaryDTO{Total: s.Total, PerPerson: make([]personDebtDTO, 0, len(s.PerPerson))}
	for _, row := range s.PerPerson {
		out.PerPerson = append(out.PerPerson, personDebtDTO{
			PersonID:     row.Person.ID,
			Name:         row.Person.Name,
			Guest:        row.Person.Guest,
			Total:        row.Total,
			Count:        row.Count,
			CheckpointAt: row.Person.CheckpointAt,
		})
	}
	return out
}

type personDTO struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Guest        bool       `json:"guest"`
	Active       bool       `json:"active"`
	CheckpointAt *time.Time `json:"checkpoint_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newPersonDTO(p core.Person) personDTO {
	return personDTO{
		ID:           p.ID,
		Name:         p.Name,
		Guest:        p.Guest,
		Active:       p.Active,
		CheckpointAt: p.CheckpointAt,
		CreatedAt:    p.CreatedAt.UTC(),
	}
}

type resetAllDTO struct {
	PersonIDs []int64 `json:"person_ids"`
}

package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bartab/internal/core"
	"bartab/internal/log"
	"bartab/internal/services"
)

// handleRecordConsumption splits one consumption across the given persons.
// 201 when every entry was recorded, 207 when only some were.
func (s *Server) handleRecordConsumption(w http.ResponseWriter, r *http.Request) {
	var req consumptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpSplit, err)
		return
	}
	if req.ItemID <= 0 {
		writeError(w, r, log.OpSplit, badRequest("item_id is required"))
		return
	}
	qty, err := req.TotalQuantity.quantity()
	if err != nil {
		writeError(w, r, log.OpSplit, err)
		return
	}

	res, err := s.split.Record(r.Context(), services.SplitRequest{
		ItemID:        req.ItemID,
		PersonIDs:     req.PersonIDs,
		TotalQuantity: qty,
	})
	var pf *core.PartialFailureError
	switch {
	case errors.As(err, &pf):
		writePartialFailure(w, res, pf)
	case err != nil:
		writeError(w, r, log.OpSplit, err)
	default:
		writeJSON(w, http.StatusCreated, newSplitResultDTO(res))
	}
}

func (s *Server) handleDebts(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.Summary(r.Context())
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, newDebtSummaryDTO(summary))
}

func (s *Server) handleResetDebt(w http.ResponseWriter, r *http.Request) {
	var req personRefRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpReset, err)
		return
	}
	if err := s.ledger.ResetDebt(r.Context(), req.PersonID); err != nil {
		writeError(w, r, log.OpReset, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	ids, err := s.ledger.ResetAll(r.Context())
	if err != nil {
		writeError(w, r, log.OpResetAll, err)
		return
	}
	writeJSON(w, http.StatusOK, resetAllDTO{PersonIDs: ids})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseTransactionFilter(r.URL.Query())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	page, err := s.ledger.List(r.Context(), f)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, pageDTO{
		Transactions: newTransactionDTOs(page.Transactions),
		Total:        page.Total,
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
}

func (s *Server) handleCorrectTransaction(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCorrect, err)
		return
	}
	qty, err := req.Quantity.quantity()
	if err != nil {
		writeError(w, r, log.OpCorrect, err)
		return
	}
	price, err := req.Price.money()
	if err != nil {
		writeError(w, r, log.OpCorrect, err)
		return
	}

	tx, err := s.ledger.Correct(r.Context(), chi.URLParam(r, "id"), qty, price)
	if err != nil {
		writeError(w, r, log.OpCorrect, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionDTO(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, log.OpRemove, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUndo removes the person's newest entry since their last reset.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req personRefRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUndo, err)
		return
	}
	tx, err := s.ledger.Undo(r.Context(), req.PersonID)
	if err != nil {
		writeError(w, r, log.OpUndo, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionDTO(tx))
}

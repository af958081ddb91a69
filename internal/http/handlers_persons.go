package http

import (
	"net/http"

	"bartab/internal/log"
)

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := s.ledger.Persons(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]personDTO, 0, len(persons))
	for _, p := range persons {
		out = append(out, newPersonDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"persons": out})
}

func (s *Server) handleRegisterPerson(w http.ResponseWriter, r *http.Request) {
	var req personRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpRegister, err)
		return
	}
	p, err := s.ledger.RegisterPerson(r.Context(), sanitizeInput(req.Name), req.Guest)
	if err != nil {
		writeError(w, r, log.OpRegister, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPersonDTO(p))
}

package api

import (
	"net/http"
	"strconv"

	"revenue-market/internal/domain"
	"revenue-market/internal/events"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	pos, err := s.ledger.Account(r.Context(), chiParam(r, "accountID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccount(pos))
}

// withdraw pays out the caller's pending withdrawal.
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	amount, err := s.ledger.WithdrawProceeds(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount})
}

// listEvents pages the event log with ?after=<seq>&limit=<n>.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var after uint64
	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.badRequest(w, "invalid after")
			return
		}
		after = n
	}

	limit := defaultEventLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.badRequest(w, "invalid limit")
			return
		}
		limit = min(n, maxEventLimit)
	}

	evs, err := s.ledger.Events(r.Context(), after, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelopes(evs))
}

func envelopes(evs []*domain.Event) []events.Envelope {
	out := make([]events.Envelope, 0, len(evs))
	for _, e := range evs {
		out = append(out, events.NewEnvelope(*e))
	}
	return out
}

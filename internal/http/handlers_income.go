package http

import (
	"net/http"

	"bilancio/internal/core"
)

type incomeRequest struct {
	Month            string  `json:"month"`
	Label            string  `json:"label"`
	Amount           *string `json:"amount"`
	Date             *string `json:"date"`
	ApplyToNextMonth bool    `json:"apply_to_next_month"`
	Notes            string  `json:"notes"`
}

func (req incomeRequest) toEvent(w http.ResponseWriter) (core.IncomeEvent, bool) {
	month, err := core.ParseMonth(req.Month)
	if err != nil {
		badRequest(w, "invalid month, expected YYYY-MM")
		return core.IncomeEvent{}, false
	}

	ev := core.IncomeEvent{
		Month:            month,
		Label:            sanitizeInput(req.Label),
		OccurredOn:       month.FirstDay(),
		ApplyToNextMonth: req.ApplyToNextMonth,
		Notes:            sanitizeInput(req.Notes),
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			badRequest(w, "invalid date, expected YYYY-MM-DD")
			return ev, false
		}
		ev.OccurredOn = date
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			badRequest(w, "invalid amount")
			return ev, false
		}
		ev.Amount = amount
	}
	return ev, true
}

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		badRequest(w, "invalid or missing month query parameter, expected YYYY-MM")
		return
	}

	events, err := s.income.EventsForMonth(r.Context(), ownerID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]incomeResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toIncomeResponse(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ev, ok := req.toEvent(w)
	if !ok {
		return
	}
	ev.OwnerID = ownerID(r)

	id, err := s.income.Create(r.Context(), ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid income event id")
		return
	}

	var req incomeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ev, ok := req.toEvent(w)
	if !ok {
		return
	}
	ev.ID = id

	if req.Amount == nil {
		// Zeroing is the deliberate gesture for neutralizing received
		// income; an omitted amount keeps the stored one.
		cur, err := s.income.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ev.Amount = cur.Amount
	}

	if err := s.income.Update(r.Context(), ev); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid income event id")
		return
	}
	if err := s.income.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package http

import (
	"net/http"

	"bilancio/internal/core"
)

type templateRequest struct {
	Kind          string  `json:"kind,omitempty"`
	Name          string  `json:"name"`
	Frequency     string  `json:"frequency"`
	AnchorDate    *string `json:"anchor_date"`
	DefaultAmount *string `json:"default_amount"`
	AutoCreate    bool    `json:"auto_create"`
}

func (req templateRequest) toTemplate(w http.ResponseWriter) (core.RecurringTemplate, bool) {
	tpl := core.RecurringTemplate{
		Kind:       core.TemplateKind(req.Kind),
		Name:       sanitizeInput(req.Name),
		Frequency:  core.Frequency(req.Frequency),
		AutoCreate: req.AutoCreate,
	}
	if req.AnchorDate != nil {
		date, err := parseDate(*req.AnchorDate)
		if err != nil {
			badRequest(w, "invalid anchor_date, expected YYYY-MM-DD")
			return tpl, false
		}
		tpl.AnchorDate = &date
	}
	if req.DefaultAmount != nil {
		amount, err := parseAmount(*req.DefaultAmount)
		if err != nil {
			badRequest(w, "invalid default_amount")
			return tpl, false
		}
		tpl.DefaultAmount = &amount
	}
	return tpl, true
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tpl, ok := req.toTemplate(w)
	if !ok {
		return
	}
	tpl.OwnerID = ownerID(r)

	id, err := s.templates.Create(r.Context(), tpl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	kind := core.TemplateKind(r.URL.Query().Get("kind"))
	switch kind {
	case core.KindIncome, core.KindExpense:
	default:
		badRequest(w, "kind must be 'income' or 'expense'")
		return
	}

	templates, err := s.templates.List(r.Context(), ownerID(r), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid template id")
		return
	}

	tpl, err := s.templates.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(*tpl))
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid template id")
		return
	}

	var req templateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tpl, ok := req.toTemplate(w)
	if !ok {
		return
	}
	tpl.ID = id

	if err := s.templates.Update(r.Context(), tpl); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.templates.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(*updated))
}

func (s *Server) handleDeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid template id")
		return
	}
	if err := s.templates.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReactivateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid template id")
		return
	}
	if err := s.templates.Reactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

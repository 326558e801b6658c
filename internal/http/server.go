// Package http exposes the budgeting engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/services"
)

type Server struct {
	http.Server
	templates    *services.TemplateService
	budgets      *services.BudgetService
	expenses     *services.ExpenseService
	income       *services.IncomeService
	materializer *services.Materializer
	aggregator   *services.Aggregator
	rollover     *services.Rollover

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// Deps bundles the services the server exposes.
type Deps struct {
	Templates    *services.TemplateService
	Budgets      *services.BudgetService
	Expenses     *services.ExpenseService
	Income       *services.IncomeService
	Materializer *services.Materializer
	Aggregator   *services.Aggregator
	Rollover     *services.Rollover
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		templates:    deps.Templates,
		budgets:      deps.Budgets,
		expenses:     deps.Expenses,
		income:       deps.Income,
		materializer: deps.Materializer,
		aggregator:   deps.Aggregator,
		rollover:     deps.Rollover,
		rateLimiter:  newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /templates", s.guard(s.handleCreateTemplate))
	mux.HandleFunc("GET /templates", s.guard(s.handleListTemplates))
	mux.HandleFunc("GET /templates/{id}", s.guard(s.handleGetTemplate))
	mux.HandleFunc("PUT /templates/{id}", s.guard(s.handleUpdateTemplate))
	mux.HandleFunc("POST /templates/{id}/deactivate", s.guard(s.handleDeactivateTemplate))
	mux.HandleFunc("POST /templates/{id}/reactivate", s.guard(s.handleReactivateTemplate))

	mux.HandleFunc("POST /budgets/current", s.guard(s.handleEnsureCurrentBudget))
	mux.HandleFunc("POST /budgets/next", s.guard(s.handleCreateNextBudget))
	mux.HandleFunc("POST /budgets/{month}/materialize", s.guard(s.handleMaterialize))
	mux.HandleFunc("GET /budgets/{month}/summary", s.guard(s.handleMonthSummary))
	mux.HandleFunc("GET /budgets/{month}/expenses", s.guard(s.handleListExpenses))
	mux.HandleFunc("PUT /budgets/{month}/bank-balance", s.guard(s.handleSetBankBalance))

	mux.HandleFunc("POST /expenses", s.guard(s.handleCreateExpense))
	mux.HandleFunc("PUT /expenses/{id}", s.guard(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expenses/{id}", s.guard(s.handleDeleteExpense))
	mux.HandleFunc("POST /expenses/{id}/payments", s.guard(s.handleAddPayment))
	mux.HandleFunc("DELETE /payments/{id}", s.guard(s.handleDeletePayment))

	mux.HandleFunc("GET /income", s.guard(s.handleListIncome))
	mux.HandleFunc("POST /income", s.guard(s.handleCreateIncome))
	mux.HandleFunc("PUT /income/{id}", s.guard(s.handleUpdateIncome))
	mux.HandleFunc("DELETE /income/{id}", s.guard(s.handleDeleteIncome))

	return s
}

// guard applies rate limiting and the standard response headers.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.allow(clientIP(r)) {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next(w, r)
	}
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

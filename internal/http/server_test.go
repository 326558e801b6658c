package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/services"
)

// fakeStore backs the handlers with in-memory state. Methods that a test
// does not exercise fall through to the nil embedded interface.
type fakeStore struct {
	services.Store
	nextID    int64
	templates map[int64]core.RecurringTemplate
	budgets   map[string]*core.MonthlyBudget
	expenses  map[int64][]core.Expense
	income    map[int64]core.IncomeEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates: make(map[int64]core.RecurringTemplate),
		budgets:   make(map[string]*core.MonthlyBudget),
		expenses:  make(map[int64][]core.Expense),
		income:    make(map[int64]core.IncomeEvent),
	}
}

func budgetKey(ownerID int64, month core.Month) string {
	return fmt.Sprintf("%d|%s", ownerID, month)
}

func (f *fakeStore) CreateTemplate(_ context.Context, tpl core.RecurringTemplate) (int64, error) {
	f.nextID++
	tpl.ID = f.nextID
	f.templates[tpl.ID] = tpl
	return tpl.ID, nil
}

func (f *fakeStore) GetTemplate(_ context.Context, id int64) (*core.RecurringTemplate, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %d: %w", id, core.ErrNotFound)
	}
	return &tpl, nil
}

func (f *fakeStore) UpdateTemplate(_ context.Context, tpl core.RecurringTemplate) error {
	prev, ok := f.templates[tpl.ID]
	if !ok {
		return fmt.Errorf("template %d: %w", tpl.ID, core.ErrNotFound)
	}
	tpl.OwnerID = prev.OwnerID
	tpl.Kind = prev.Kind
	tpl.DeletedAt = prev.DeletedAt
	f.templates[tpl.ID] = tpl
	return nil
}

func (f *fakeStore) SetTemplateDeletedAt(_ context.Context, id int64, deletedAt *time.Time) error {
	tpl, ok := f.templates[id]
	if !ok {
		return fmt.Errorf("template %d: %w", id, core.ErrNotFound)
	}
	tpl.DeletedAt = deletedAt
	f.templates[id] = tpl
	return nil
}

func (f *fakeStore) ActiveTemplates(_ context.Context, ownerID int64, kind core.TemplateKind) ([]core.RecurringTemplate, error) {
	var out []core.RecurringTemplate
	for _, tpl := range f.templates {
		if tpl.OwnerID == ownerID && tpl.Kind == kind && tpl.Active() {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveTemplateNameExists(_ context.Context, ownerID int64, kind core.TemplateKind, name string, excludeID int64) (bool, error) {
	for _, tpl := range f.templates {
		if tpl.OwnerID == ownerID && tpl.Kind == kind && tpl.Name == name && tpl.Active() && tpl.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetBudget(_ context.Context, ownerID int64, month core.Month) (*core.MonthlyBudget, error) {
	b, ok := f.budgets[budgetKey(ownerID, month)]
	if !ok {
		return nil, fmt.Errorf("budget %s: %w", month, core.ErrNotFound)
	}
	copy := *b
	return &copy, nil
}

func (f *fakeStore) UpdateBudget(_ context.Context, b core.MonthlyBudget) error {
	stored, ok := f.budgets[budgetKey(b.OwnerID, b.Month)]
	if !ok {
		return fmt.Errorf("budget %d: %w", b.ID, core.ErrNotFound)
	}
	stored.FlexFund = b.FlexFund
	stored.BankBalance = b.BankBalance
	return nil
}

func (f *fakeStore) ExpensesForBudget(_ context.Context, budgetID int64) ([]core.Expense, error) {
	return f.expenses[budgetID], nil
}

func (f *fakeStore) GetBudgetByID(_ context.Context, id int64) (*core.MonthlyBudget, error) {
	for _, b := range f.budgets {
		if b.ID == id {
			copy := *b
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
}

func (f *fakeStore) EnsureBudget(_ context.Context, ownerID int64, month core.Month) (*core.MonthlyBudget, error) {
	if b, ok := f.budgets[budgetKey(ownerID, month)]; ok {
		copy := *b
		return &copy, nil
	}
	f.nextID++
	b := &core.MonthlyBudget{ID: f.nextID, OwnerID: ownerID, Month: month}
	f.budgets[budgetKey(ownerID, month)] = b
	copy := *b
	return &copy, nil
}

func (f *fakeStore) SetBudgetTotalIncome(_ context.Context, budgetID int64, cents int64) error {
	for _, b := range f.budgets {
		if b.ID == budgetID {
			b.TotalIncome = core.Money{Cents: cents}
			return nil
		}
	}
	return fmt.Errorf("budget %d: %w", budgetID, core.ErrNotFound)
}

func (f *fakeStore) GetExpense(_ context.Context, id int64) (*core.Expense, error) {
	for _, list := range f.expenses {
		for _, e := range list {
			if e.ID == id {
				copy := e
				return &copy, nil
			}
		}
	}
	return nil, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
}

func (f *fakeStore) UpdateExpense(_ context.Context, e core.Expense) error {
	for budgetID, list := range f.expenses {
		for i, cur := range list {
			if cur.ID == e.ID {
				e.Spent = cur.Spent
				f.expenses[budgetID][i] = e
				return nil
			}
		}
	}
	return fmt.Errorf("expense %d: %w", e.ID, core.ErrNotFound)
}

func (f *fakeStore) GetIncomeEvent(_ context.Context, id int64) (*core.IncomeEvent, error) {
	ev, ok := f.income[id]
	if !ok {
		return nil, fmt.Errorf("income event %d: %w", id, core.ErrNotFound)
	}
	copy := ev
	return &copy, nil
}

func (f *fakeStore) UpdateIncomeEvent(_ context.Context, ev core.IncomeEvent) error {
	if _, ok := f.income[ev.ID]; !ok {
		return fmt.Errorf("income event %d: %w", ev.ID, core.ErrNotFound)
	}
	f.income[ev.ID] = ev
	return nil
}

func (f *fakeStore) IncomeEventsForMonth(_ context.Context, ownerID int64, month core.Month) ([]core.IncomeEvent, error) {
	var out []core.IncomeEvent
	for _, ev := range f.income {
		if ev.OwnerID == ownerID && ev.Month == month {
			out = append(out, ev)
		}
	}
	return out, nil
}

func newTestServer(store *fakeStore) *Server {
	return NewServer(":0", Deps{
		Templates:    services.NewTemplateService(store),
		Budgets:      services.NewBudgetService(store, nil),
		Expenses:     services.NewExpenseService(store, nil),
		Income:       services.NewIncomeService(store, nil),
		Materializer: services.NewMaterializer(store),
		Aggregator:   services.NewAggregator(store),
		Rollover:     services.NewRollover(store, services.NewMaterializer(store), 0),
	})
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateTemplateEndpoint(t *testing.T) {
	s := newTestServer(newFakeStore())
	defer s.rateLimiter.stop()

	body := `{"kind":"expense","name":"Rent","frequency":"monthly","anchor_date":"2025-01-01","default_amount":"1200.00","auto_create":true}`
	rec := doRequest(t, s, http.MethodPost, "/templates", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] == 0 {
		t.Error("expected non-zero template id")
	}

	// Same name again conflicts.
	rec = doRequest(t, s, http.MethodPost, "/templates", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	s := newTestServer(newFakeStore())
	defer s.rateLimiter.stop()

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"kind":"expense","name":"","frequency":"monthly"}`},
		{"bad frequency", `{"kind":"expense","name":"X","frequency":"daily"}`},
		{"bad kind", `{"kind":"loan","name":"X","frequency":"monthly"}`},
		{"auto without anchor", `{"kind":"expense","name":"X","frequency":"monthly","auto_create":true}`},
		{"bad anchor date", `{"kind":"expense","name":"X","frequency":"monthly","anchor_date":"01/02/2025"}`},
		{"bad amount", `{"kind":"expense","name":"X","frequency":"monthly","default_amount":"-5"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/templates", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMonthSummaryEndpoint(t *testing.T) {
	store := newFakeStore()
	month := core.Month{Year: 2025, Month: 3}
	store.budgets[budgetKey(1, month)] = &core.MonthlyBudget{
		ID: 10, OwnerID: 1, Month: month,
		TotalIncome: core.Money{Cents: 200000},
	}
	store.expenses[10] = []core.Expense{
		{ID: 1, BudgetID: 10, Allotted: core.Money{Cents: 120000}, Spent: core.Money{Cents: 45000}},
	}
	s := newTestServer(store)
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodGet, "/budgets/2025-03/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalIncome != "2000.00" {
		t.Errorf("total_income = %q, want 2000.00", resp.TotalIncome)
	}
	if resp.TotalAllotted != "1200.00" {
		t.Errorf("total_allotted = %q, want 1200.00", resp.TotalAllotted)
	}
	if resp.RemainingToAssign != "800.00" {
		t.Errorf("remaining_to_assign = %q, want 800.00", resp.RemainingToAssign)
	}
}

func TestMonthSummaryNotFound(t *testing.T) {
	s := newTestServer(newFakeStore())
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodGet, "/budgets/2025-03/summary", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMonthSummaryBadMonth(t *testing.T) {
	s := newTestServer(newFakeStore())
	defer s.rateLimiter.stop()

	for _, path := range []string{"/budgets/2025-3/summary", "/budgets/March/summary", "/budgets/2025-13/summary"} {
		rec := doRequest(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestSetBankBalanceEndpoint(t *testing.T) {
	store := newFakeStore()
	month := core.Month{Year: 2025, Month: 3}
	store.budgets[budgetKey(1, month)] = &core.MonthlyBudget{ID: 10, OwnerID: 1, Month: month}
	s := newTestServer(store)
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodPut, "/budgets/2025-03/bank-balance", `{"bank_balance":"1234.56"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp budgetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BankBalance == nil || *resp.BankBalance != "1234.56" {
		t.Errorf("bank_balance = %v, want 1234.56", resp.BankBalance)
	}

	// Null clears the balance.
	rec = doRequest(t, s, http.MethodPut, "/budgets/2025-03/bank-balance", `{"bank_balance":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BankBalance != nil {
		t.Errorf("bank_balance = %v, want null", *resp.BankBalance)
	}
}

func TestDeactivateTemplateEndpoint(t *testing.T) {
	s := newTestServer(newFakeStore())
	defer s.rateLimiter.stop()

	body := `{"kind":"income","name":"Paycheck","frequency":"bi_weekly","anchor_date":"2025-01-03","auto_create":true}`
	rec := doRequest(t, s, http.MethodPost, "/templates", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created map[string]int64
	json.Unmarshal(rec.Body.Bytes(), &created)

	path := fmt.Sprintf("/templates/%d/deactivate", created["id"])
	rec = doRequest(t, s, http.MethodPost, path, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate status = %d, want 204", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/templates/%d", created["id"]), "")
	var tpl templateResponse
	json.Unmarshal(rec.Body.Bytes(), &tpl)
	if tpl.Active {
		t.Error("template should be inactive after deactivation")
	}
}

func TestUpdateExpenseKeepsAllottedWhenOmitted(t *testing.T) {
	store := newFakeStore()
	month := core.Month{Year: 2025, Month: 3}
	store.budgets[budgetKey(1, month)] = &core.MonthlyBudget{ID: 10, OwnerID: 1, Month: month}
	store.expenses[10] = []core.Expense{
		{ID: 7, BudgetID: 10, Name: "Rent", Allotted: core.Money{Cents: 120000}},
	}
	s := newTestServer(store)
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodPut, "/expenses/7", `{"name":"Rent","notes":"march"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204; body: %s", rec.Code, rec.Body.String())
	}
	if got := store.expenses[10][0].Allotted.Cents; got != 120000 {
		t.Errorf("allotted after name/notes-only update = %d, want 120000", got)
	}
	if got := store.expenses[10][0].Notes; got != "march" {
		t.Errorf("notes = %q, want march", got)
	}

	// An explicit amount still applies, zero included.
	rec = doRequest(t, s, http.MethodPut, "/expenses/7", `{"name":"Rent","allotted":"0"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("explicit zero status = %d, want 204; body: %s", rec.Code, rec.Body.String())
	}
	if got := store.expenses[10][0].Allotted.Cents; got != 0 {
		t.Errorf("allotted after explicit zero = %d, want 0", got)
	}
}

func TestUpdateIncomeKeepsAmountWhenOmitted(t *testing.T) {
	store := newFakeStore()
	month := core.Month{Year: 2025, Month: 3}
	store.budgets[budgetKey(1, month)] = &core.MonthlyBudget{ID: 10, OwnerID: 1, Month: month}
	tplID := int64(4)
	store.income[3] = core.IncomeEvent{
		ID: 3, OwnerID: 1, Month: month, TemplateID: &tplID,
		Label: "Paycheck", Amount: core.Money{Cents: 250000},
	}
	s := newTestServer(store)
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodPut, "/income/3", `{"month":"2025-03","notes":"late"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204; body: %s", rec.Code, rec.Body.String())
	}
	if got := store.income[3].Amount.Cents; got != 250000 {
		t.Errorf("amount after notes-only update = %d, want 250000", got)
	}

	// An explicit zero still neutralizes the event.
	rec = doRequest(t, s, http.MethodPut, "/income/3", `{"month":"2025-03","amount":"0"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("explicit zero status = %d, want 204; body: %s", rec.Code, rec.Body.String())
	}
	if got := store.income[3].Amount.Cents; got != 0 {
		t.Errorf("amount after explicit zero = %d, want 0", got)
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{120050, "1200.50"},
		{-4599, "-45.99"},
	}
	for _, tt := range tests {
		if got := formatCents(tt.cents); got != tt.want {
			t.Errorf("formatCents(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

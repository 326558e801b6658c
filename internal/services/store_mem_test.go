package services

import (
	"context"
	"sync"
	"time"

	"bilancio/internal/core"
)

// memStore is an in-memory Store used by the service tests. It enforces
// the same uniqueness semantics as the SQLite schema so idempotency
// behavior can be exercised without a database.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	templates map[int64]core.RecurringTemplate
	budgets   map[int64]core.MonthlyBudget
	expenses  map[int64]core.Expense
	incomes   map[int64]core.IncomeEvent
	payments  map[int64]core.Payment

	failSetIncome bool // simulate a failing income-total write
}

func newMemStore() *memStore {
	return &memStore{
		templates: map[int64]core.RecurringTemplate{},
		budgets:   map[int64]core.MonthlyBudget{},
		expenses:  map[int64]core.Expense{},
		incomes:   map[int64]core.IncomeEvent{},
		payments:  map[int64]core.Payment{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// --- TemplateStore ---

func (m *memStore) CreateTemplate(_ context.Context, tpl core.RecurringTemplate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl.ID = m.id()
	m.templates[tpl.ID] = tpl
	return tpl.ID, nil
}

func (m *memStore) GetTemplate(_ context.Context, id int64) (*core.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &tpl, nil
}

func (m *memStore) UpdateTemplate(_ context.Context, tpl core.RecurringTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[tpl.ID]; !ok {
		return core.ErrNotFound
	}
	m.templates[tpl.ID] = tpl
	return nil
}

func (m *memStore) SetTemplateDeletedAt(_ context.Context, id int64, deletedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return core.ErrNotFound
	}
	tpl.DeletedAt = deletedAt
	m.templates[id] = tpl
	return nil
}

func (m *memStore) ActiveTemplates(_ context.Context, ownerID int64, kind core.TemplateKind) ([]core.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.RecurringTemplate
	for _, tpl := range m.templates {
		if tpl.OwnerID == ownerID && tpl.Kind == kind && tpl.Active() {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (m *memStore) ActiveAutoTemplates(_ context.Context, ownerID int64) ([]core.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.RecurringTemplate
	for _, tpl := range m.templates {
		if tpl.OwnerID == ownerID && tpl.Active() && tpl.AutoCreate {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (m *memStore) ActiveTemplateNameExists(_ context.Context, ownerID int64, kind core.TemplateKind, name string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tpl := range m.templates {
		if tpl.OwnerID == ownerID && tpl.Kind == kind && tpl.Name == name && tpl.Active() && tpl.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// --- BudgetStore ---

func (m *memStore) EnsureBudget(_ context.Context, ownerID int64, month core.Month) (*core.MonthlyBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.budgets {
		if b.OwnerID == ownerID && b.Month == month {
			return &b, nil
		}
	}
	b := core.MonthlyBudget{ID: m.id(), OwnerID: ownerID, Month: month}
	m.budgets[b.ID] = b
	return &b, nil
}

func (m *memStore) GetBudget(_ context.Context, ownerID int64, month core.Month) (*core.MonthlyBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.budgets {
		if b.OwnerID == ownerID && b.Month == month {
			return &b, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memStore) GetBudgetByID(_ context.Context, id int64) (*core.MonthlyBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &b, nil
}

func (m *memStore) BudgetExists(_ context.Context, ownerID int64, month core.Month) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.budgets {
		if b.OwnerID == ownerID && b.Month == month {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SetBudgetTotalIncome(_ context.Context, budgetID int64, cents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetIncome {
		return context.DeadlineExceeded
	}
	b, ok := m.budgets[budgetID]
	if !ok {
		return core.ErrNotFound
	}
	b.TotalIncome = core.Money{Cents: cents}
	m.budgets[budgetID] = b
	return nil
}

func (m *memStore) UpdateBudget(_ context.Context, b core.MonthlyBudget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.budgets[b.ID]; !ok {
		return core.ErrNotFound
	}
	m.budgets[b.ID] = b
	return nil
}

func (m *memStore) Owners(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int64]struct{}{}
	var out []int64
	for _, b := range m.budgets {
		if _, ok := seen[b.OwnerID]; !ok {
			seen[b.OwnerID] = struct{}{}
			out = append(out, b.OwnerID)
		}
	}
	for _, tpl := range m.templates {
		if _, ok := seen[tpl.OwnerID]; !ok {
			seen[tpl.OwnerID] = struct{}{}
			out = append(out, tpl.OwnerID)
		}
	}
	return out, nil
}

// --- ExpenseStore ---

func (m *memStore) InsertExpenseIfAbsent(_ context.Context, e core.Expense) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.expenses {
		if existing.BudgetID == e.BudgetID &&
			existing.TemplateID != nil && e.TemplateID != nil &&
			*existing.TemplateID == *e.TemplateID &&
			existing.OccurredOn.Equal(e.OccurredOn) {
			return false, nil
		}
	}
	e.ID = m.id()
	m.expenses[e.ID] = e
	return true, nil
}

func (m *memStore) CreateExpense(_ context.Context, e core.Expense) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	m.expenses[e.ID] = e
	return e.ID, nil
}

func (m *memStore) GetExpense(_ context.Context, id int64) (*core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	e.Spent = m.spentLocked(id)
	return &e, nil
}

func (m *memStore) UpdateExpense(_ context.Context, e core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[e.ID]; !ok {
		return core.ErrNotFound
	}
	e.Spent = core.Money{} // spent is derived, never stored
	m.expenses[e.ID] = e
	return nil
}

func (m *memStore) DeleteExpense(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.expenses, id)
	for pid, p := range m.payments {
		if p.ExpenseID == id {
			delete(m.payments, pid)
		}
	}
	return nil
}

func (m *memStore) ExpensesForBudget(_ context.Context, budgetID int64) ([]core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Expense
	for _, e := range m.expenses {
		if e.BudgetID == budgetID {
			e.Spent = m.spentLocked(e.ID)
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) spentLocked(expenseID int64) core.Money {
	var cents int64
	for _, p := range m.payments {
		if p.ExpenseID == expenseID {
			cents += p.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// --- IncomeStore ---

func (m *memStore) InsertIncomeEventIfAbsent(_ context.Context, ev core.IncomeEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.incomes {
		if existing.OwnerID == ev.OwnerID && existing.Month == ev.Month &&
			existing.TemplateID != nil && ev.TemplateID != nil &&
			*existing.TemplateID == *ev.TemplateID &&
			existing.OccurredOn.Equal(ev.OccurredOn) {
			return false, nil
		}
	}
	ev.ID = m.id()
	m.incomes[ev.ID] = ev
	return true, nil
}

func (m *memStore) CreateIncomeEvent(_ context.Context, ev core.IncomeEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = m.id()
	m.incomes[ev.ID] = ev
	return ev.ID, nil
}

func (m *memStore) GetIncomeEvent(_ context.Context, id int64) (*core.IncomeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.incomes[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &ev, nil
}

func (m *memStore) UpdateIncomeEvent(_ context.Context, ev core.IncomeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.incomes[ev.ID]; !ok {
		return core.ErrNotFound
	}
	m.incomes[ev.ID] = ev
	return nil
}

func (m *memStore) DeleteIncomeEvent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.incomes[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.incomes, id)
	return nil
}

func (m *memStore) IncomeEventsForMonth(_ context.Context, ownerID int64, month core.Month) ([]core.IncomeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.IncomeEvent
	for _, ev := range m.incomes {
		if ev.OwnerID == ownerID && ev.Month == month {
			out = append(out, ev)
		}
	}
	return out, nil
}

// --- PaymentStore ---

func (m *memStore) CreatePayment(_ context.Context, p core.Payment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[p.ExpenseID]; !ok {
		return 0, core.ErrNotFound
	}
	p.ID = m.id()
	m.payments[p.ID] = p
	return p.ID, nil
}

func (m *memStore) GetPayment(_ context.Context, id int64) (*core.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) DeletePayment(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.payments, id)
	return nil
}

var _ Store = (*memStore)(nil)

// Package storage is the SQLite persistence collaborator. It implements
// the services.Store ports over database/sql with hand-written queries;
// schema lives in embedded golang-migrate migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/services"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

var _ services.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- templates ---

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, tpl core.RecurringTemplate) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_templates (owner_id, kind, name, frequency, anchor_date, default_amount_cents, auto_create)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tpl.OwnerID, string(tpl.Kind), tpl.Name, string(tpl.Frequency),
		nullDate(tpl.AnchorDate), nullCents(tpl.DefaultAmount), boolInt(tpl.AutoCreate))
	if err != nil {
		return 0, fmt.Errorf("insert template: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id int64) (*core.RecurringTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, kind, name, frequency, anchor_date, default_amount_cents, auto_create, deleted_at
		FROM recurring_templates WHERE id = ?`, id)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, tpl core.RecurringTemplate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_templates
		SET name = ?, frequency = ?, anchor_date = ?, default_amount_cents = ?, auto_create = ?
		WHERE id = ?`,
		tpl.Name, string(tpl.Frequency), nullDate(tpl.AnchorDate),
		nullCents(tpl.DefaultAmount), boolInt(tpl.AutoCreate), tpl.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return requireRow(res, "template", tpl.ID)
}

func (r *SQLiteRepository) SetTemplateDeletedAt(ctx context.Context, id int64, deletedAt *time.Time) error {
	var value any
	if deletedAt != nil {
		value = deletedAt.UTC().Format(time.RFC3339)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_templates SET deleted_at = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("set template deleted_at: %w", err)
	}
	return requireRow(res, "template", id)
}

func (r *SQLiteRepository) ActiveTemplates(ctx context.Context, ownerID int64, kind core.TemplateKind) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, name, frequency, anchor_date, default_amount_cents, auto_create, deleted_at
		FROM recurring_templates
		WHERE owner_id = ? AND kind = ? AND deleted_at IS NULL
		ORDER BY name`, ownerID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query active templates: %w", err)
	}
	defer rows.Close()
	return collectTemplates(rows)
}

func (r *SQLiteRepository) ActiveAutoTemplates(ctx context.Context, ownerID int64) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, name, frequency, anchor_date, default_amount_cents, auto_create, deleted_at
		FROM recurring_templates
		WHERE owner_id = ? AND deleted_at IS NULL AND auto_create = 1
		ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query auto templates: %w", err)
	}
	defer rows.Close()
	return collectTemplates(rows)
}

func (r *SQLiteRepository) ActiveTemplateNameExists(ctx context.Context, ownerID int64, kind core.TemplateKind, name string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM recurring_templates
		WHERE owner_id = ? AND kind = ? AND name = ? AND deleted_at IS NULL AND id != ?`,
		ownerID, string(kind), name, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check template name: %w", err)
	}
	return count > 0, nil
}

// --- budgets ---

// EnsureBudget finds or creates the budget for (owner, month). The
// insert-then-select sequence is race-safe: the (owner_id, month) unique
// constraint makes concurrent creates collapse onto one row.
func (r *SQLiteRepository) EnsureBudget(ctx context.Context, ownerID int64, month core.Month) (*core.MonthlyBudget, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO monthly_budgets (owner_id, month) VALUES (?, ?)`,
		ownerID, month.String())
	if err != nil {
		return nil, fmt.Errorf("insert budget: %w", err)
	}
	return r.GetBudget(ctx, ownerID, month)
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, ownerID int64, month core.Month) (*core.MonthlyBudget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, month, total_income_cents, flex_fund_cents, bank_balance_cents
		FROM monthly_budgets WHERE owner_id = ? AND month = ?`, ownerID, month.String())
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget %s: %w", month, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudgetByID(ctx context.Context, id int64) (*core.MonthlyBudget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, month, total_income_cents, flex_fund_cents, bank_balance_cents
		FROM monthly_budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) BudgetExists(ctx context.Context, ownerID int64, month core.Month) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM monthly_budgets WHERE owner_id = ? AND month = ?`,
		ownerID, month.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check budget: %w", err)
	}
	return count > 0, nil
}

func (r *SQLiteRepository) SetBudgetTotalIncome(ctx context.Context, budgetID int64, cents int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE monthly_budgets SET total_income_cents = ? WHERE id = ?`, cents, budgetID)
	if err != nil {
		return fmt.Errorf("set budget income total: %w", err)
	}
	return requireRow(res, "budget", budgetID)
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.MonthlyBudget) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE monthly_budgets SET flex_fund_cents = ?, bank_balance_cents = ?
		WHERE id = ?`,
		b.FlexFund.Cents, nullCents(b.BankBalance), b.ID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return requireRow(res, "budget", b.ID)
}

func (r *SQLiteRepository) Owners(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner_id FROM recurring_templates WHERE deleted_at IS NULL
		UNION
		SELECT owner_id FROM monthly_budgets`)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- expenses ---

// InsertExpenseIfAbsent relies on the partial unique index over
// (budget_id, template_id, occurred_on): INSERT OR IGNORE turns a
// concurrent duplicate into a zero-row insert instead of an error.
func (r *SQLiteRepository) InsertExpenseIfAbsent(ctx context.Context, e core.Expense) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO expenses (budget_id, template_id, name, allotted_cents, occurred_on, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.BudgetID, e.TemplateID, e.Name, e.Allotted.Cents,
		e.OccurredOn.Format(dateLayout), e.Notes)
	if err != nil {
		return false, fmt.Errorf("insert expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert expense rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (budget_id, template_id, name, allotted_cents, occurred_on, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.BudgetID, e.TemplateID, e.Name, e.Allotted.Cents,
		e.OccurredOn.Format(dateLayout), e.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT e.id, e.budget_id, e.template_id, e.name, e.allotted_cents, e.occurred_on, e.notes,
		       COALESCE(SUM(p.amount_cents), 0)
		FROM expenses e
		LEFT JOIN payments p ON p.expense_id = e.id
		WHERE e.id = ?
		GROUP BY e.id`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	// A GROUP BY over a missing row yields no rows, but some drivers
	// return a single all-NULL row; guard on the id.
	if e.ID == 0 {
		return nil, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET name = ?, allotted_cents = ?, notes = ? WHERE id = ?`,
		e.Name, e.Allotted.Cents, e.Notes, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(res, "expense", e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireRow(res, "expense", id)
}

func (r *SQLiteRepository) ExpensesForBudget(ctx context.Context, budgetID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.budget_id, e.template_id, e.name, e.allotted_cents, e.occurred_on, e.notes,
		       COALESCE(SUM(p.amount_cents), 0)
		FROM expenses e
		LEFT JOIN payments p ON p.expense_id = e.id
		WHERE e.budget_id = ?
		GROUP BY e.id
		ORDER BY e.occurred_on, e.id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// --- income events ---

func (r *SQLiteRepository) InsertIncomeEventIfAbsent(ctx context.Context, ev core.IncomeEvent) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO income_events (owner_id, month, template_id, label, amount_cents, occurred_on, apply_to_next_month, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.OwnerID, ev.Month.String(), ev.TemplateID, ev.Label, ev.Amount.Cents,
		ev.OccurredOn.Format(dateLayout), boolInt(ev.ApplyToNextMonth), ev.Notes)
	if err != nil {
		return false, fmt.Errorf("insert income event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert income event rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) CreateIncomeEvent(ctx context.Context, ev core.IncomeEvent) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO income_events (owner_id, month, template_id, label, amount_cents, occurred_on, apply_to_next_month, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.OwnerID, ev.Month.String(), ev.TemplateID, ev.Label, ev.Amount.Cents,
		ev.OccurredOn.Format(dateLayout), boolInt(ev.ApplyToNextMonth), ev.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert income event: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetIncomeEvent(ctx context.Context, id int64) (*core.IncomeEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, month, template_id, label, amount_cents, occurred_on, apply_to_next_month, notes
		FROM income_events WHERE id = ?`, id)
	ev, err := scanIncomeEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("income event %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get income event: %w", err)
	}
	return ev, nil
}

func (r *SQLiteRepository) UpdateIncomeEvent(ctx context.Context, ev core.IncomeEvent) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE income_events
		SET month = ?, label = ?, amount_cents = ?, occurred_on = ?, apply_to_next_month = ?, notes = ?
		WHERE id = ?`,
		ev.Month.String(), ev.Label, ev.Amount.Cents,
		ev.OccurredOn.Format(dateLayout), boolInt(ev.ApplyToNextMonth), ev.Notes, ev.ID)
	if err != nil {
		return fmt.Errorf("update income event: %w", err)
	}
	return requireRow(res, "income event", ev.ID)
}

func (r *SQLiteRepository) DeleteIncomeEvent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM income_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete income event: %w", err)
	}
	return requireRow(res, "income event", id)
}

func (r *SQLiteRepository) IncomeEventsForMonth(ctx context.Context, ownerID int64, month core.Month) ([]core.IncomeEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, month, template_id, label, amount_cents, occurred_on, apply_to_next_month, notes
		FROM income_events
		WHERE owner_id = ? AND month = ?
		ORDER BY occurred_on, id`, ownerID, month.String())
	if err != nil {
		return nil, fmt.Errorf("query income events: %w", err)
	}
	defer rows.Close()

	var out []core.IncomeEvent
	for rows.Next() {
		ev, err := scanIncomeEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income event: %w", err)
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// --- payments ---

func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.Payment) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (expense_id, amount_cents, paid_on, notes)
		VALUES (?, ?, ?, ?)`,
		p.ExpenseID, p.Amount.Cents, p.PaidOn.Format(dateLayout), p.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetPayment(ctx context.Context, id int64) (*core.Payment, error) {
	var (
		p      core.Payment
		paidOn string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, expense_id, amount_cents, paid_on, notes FROM payments WHERE id = ?`, id).
		Scan(&p.ID, &p.ExpenseID, &p.Amount.Cents, &paidOn, &p.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.PaidOn, err = time.Parse(dateLayout, paidOn)
	if err != nil {
		return nil, fmt.Errorf("parse payment date: %w", err)
	}
	return &p, nil
}

func (r *SQLiteRepository) DeletePayment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return requireRow(res, "payment", id)
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*core.RecurringTemplate, error) {
	var (
		tpl        core.RecurringTemplate
		kind       string
		frequency  string
		anchor     sql.NullString
		amount     sql.NullInt64
		autoCreate int64
		deletedAt  sql.NullString
	)
	if err := row.Scan(&tpl.ID, &tpl.OwnerID, &kind, &tpl.Name, &frequency,
		&anchor, &amount, &autoCreate, &deletedAt); err != nil {
		return nil, err
	}
	tpl.Kind = core.TemplateKind(kind)
	tpl.Frequency = core.Frequency(frequency)
	tpl.AutoCreate = autoCreate != 0
	if anchor.Valid {
		t, err := time.Parse(dateLayout, anchor.String)
		if err != nil {
			return nil, fmt.Errorf("parse anchor date: %w", err)
		}
		tpl.AnchorDate = &t
	}
	if amount.Valid {
		tpl.DefaultAmount = &core.Money{Cents: amount.Int64}
	}
	if deletedAt.Valid {
		t, err := time.Parse(time.RFC3339, deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse deleted_at: %w", err)
		}
		tpl.DeletedAt = &t
	}
	return &tpl, nil
}

func collectTemplates(rows *sql.Rows) ([]core.RecurringTemplate, error) {
	var out []core.RecurringTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *tpl)
	}
	return out, rows.Err()
}

func scanBudget(row rowScanner) (*core.MonthlyBudget, error) {
	var (
		b     core.MonthlyBudget
		month string
		bank  sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.OwnerID, &month, &b.TotalIncome.Cents, &b.FlexFund.Cents, &bank); err != nil {
		return nil, err
	}
	m, err := core.ParseMonth(month)
	if err != nil {
		return nil, fmt.Errorf("parse budget month %q: %w", month, err)
	}
	b.Month = m
	if bank.Valid {
		b.BankBalance = &core.Money{Cents: bank.Int64}
	}
	return &b, nil
}

func scanExpense(row rowScanner) (*core.Expense, error) {
	var (
		e          core.Expense
		templateID sql.NullInt64
		occurredOn string
	)
	if err := row.Scan(&e.ID, &e.BudgetID, &templateID, &e.Name, &e.Allotted.Cents,
		&occurredOn, &e.Notes, &e.Spent.Cents); err != nil {
		return nil, err
	}
	if templateID.Valid {
		e.TemplateID = &templateID.Int64
	}
	t, err := time.Parse(dateLayout, occurredOn)
	if err != nil {
		return nil, fmt.Errorf("parse occurrence date: %w", err)
	}
	e.OccurredOn = t
	return &e, nil
}

func scanIncomeEvent(row rowScanner) (*core.IncomeEvent, error) {
	var (
		ev         core.IncomeEvent
		month      string
		templateID sql.NullInt64
		occurredOn string
		deferred   int64
	)
	if err := row.Scan(&ev.ID, &ev.OwnerID, &month, &templateID, &ev.Label,
		&ev.Amount.Cents, &occurredOn, &deferred, &ev.Notes); err != nil {
		return nil, err
	}
	m, err := core.ParseMonth(month)
	if err != nil {
		return nil, fmt.Errorf("parse event month %q: %w", month, err)
	}
	ev.Month = m
	if templateID.Valid {
		ev.TemplateID = &templateID.Int64
	}
	t, err := time.Parse(dateLayout, occurredOn)
	if err != nil {
		return nil, fmt.Errorf("parse occurrence date: %w", err)
	}
	ev.OccurredOn = t
	ev.ApplyToNextMonth = deferred != 0
	return &ev, nil
}

func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, core.ErrNotFound)
	}
	return nil
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func nullCents(m *core.Money) any {
	if m == nil {
		return nil
	}
	return m.Cents
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

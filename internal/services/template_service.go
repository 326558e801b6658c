package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
)

// TemplateService manages recurring template lifecycle. Templates are
// soft-deleted so historical ledger instances keep a valid reference;
// deactivation only stops future materialization.
type TemplateService struct {
	store Store
	now   func() time.Time
}

func NewTemplateService(store Store) *TemplateService {
	return &TemplateService{store: store, now: time.Now}
}

// Create validates and stores a new template. Names are unique per
// (owner, kind) among active templates only; a soft-deleted template
// does not block reuse of its name.
func (s *TemplateService) Create(ctx context.Context, tpl core.RecurringTemplate) (int64, error) {
	if err := tpl.Validate(); err != nil {
		return 0, err
	}

	taken, err := s.store.ActiveTemplateNameExists(ctx, tpl.OwnerID, tpl.Kind, tpl.Name, 0)
	if err != nil {
		return 0, fmt.Errorf("check template name: %w", err)
	}
	if taken {
		return 0, core.ErrDuplicateName
	}

	id, err := s.store.CreateTemplate(ctx, tpl)
	if err != nil {
		return 0, fmt.Errorf("create template: %w", err)
	}

	slog.InfoContext(ctx, "Template created",
		"template_id", id,
		"owner_id", tpl.OwnerID,
		"kind", string(tpl.Kind),
		"name", tpl.Name,
		"frequency", string(tpl.Frequency))
	return id, nil
}

// Update rewrites a template's attributes. Changing the default amount
// never touches already-materialized instances; it only affects future
// materialization and the live expected-income calculation.
func (s *TemplateService) Update(ctx context.Context, tpl core.RecurringTemplate) error {
	prev, err := s.store.GetTemplate(ctx, tpl.ID)
	if err != nil {
		return err
	}
	tpl.OwnerID = prev.OwnerID
	tpl.Kind = prev.Kind
	tpl.DeletedAt = prev.DeletedAt

	if err := tpl.Validate(); err != nil {
		return err
	}

	taken, err := s.store.ActiveTemplateNameExists(ctx, tpl.OwnerID, tpl.Kind, tpl.Name, tpl.ID)
	if err != nil {
		return fmt.Errorf("check template name: %w", err)
	}
	if taken {
		return core.ErrDuplicateName
	}

	if err := s.store.UpdateTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a template: it disappears from active queries
// and future materialization, while instances already created from it
// remain untouched. Deactivating an inactive template is a no-op.
func (s *TemplateService) Deactivate(ctx context.Context, id int64) error {
	tpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if !tpl.Active() {
		return nil
	}

	deletedAt := s.now()
	if err := s.store.SetTemplateDeletedAt(ctx, id, &deletedAt); err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}

	slog.InfoContext(ctx, "Template deactivated",
		"template_id", id,
		"name", tpl.Name)
	return nil
}

// Reactivate clears the soft-delete marker. Fails with ErrDuplicateName
// when another active template has since taken the name.
func (s *TemplateService) Reactivate(ctx context.Context, id int64) error {
	tpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if tpl.Active() {
		return nil
	}

	taken, err := s.store.ActiveTemplateNameExists(ctx, tpl.OwnerID, tpl.Kind, tpl.Name, id)
	if err != nil {
		return fmt.Errorf("check template name: %w", err)
	}
	if taken {
		return core.ErrDuplicateName
	}

	if err := s.store.SetTemplateDeletedAt(ctx, id, nil); err != nil {
		return fmt.Errorf("reactivate template: %w", err)
	}

	slog.InfoContext(ctx, "Template reactivated",
		"template_id", id,
		"name", tpl.Name)
	return nil
}

// List returns the owner's active templates of one kind.
func (s *TemplateService) List(ctx context.Context, ownerID int64, kind core.TemplateKind) ([]core.RecurringTemplate, error) {
	return s.store.ActiveTemplates(ctx, ownerID, kind)
}

// Get returns a template by id, active or not.
func (s *TemplateService) Get(ctx context.Context, id int64) (*core.RecurringTemplate, error) {
	return s.store.GetTemplate(ctx, id)
}

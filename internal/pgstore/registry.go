package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/temirov/propaudit/internal/audit"
)

const (
	registrationQueryErrorTemplateConstant = "query registration for %s: %w"
	registerErrorTemplateConstant          = "register %s: %w"
	unregisterErrorTemplateConstant        = "unregister %s: %w"
)

// Registry stores auditor registrations in the propaudit_registrations table.
// Lookups are cached for the store's registration TTL and invalidated by
// Register and Unregister.
type Registry struct {
	store *Store
}

// IsRegistered reports whether the auditor is registered for project.
func (registry *Registry) IsRegistered(executionContext context.Context, project audit.Project) (bool, error) {
	if cached, present := registry.store.cachedRegistration(project.Root); present {
		return cached, nil
	}
	if schemaError := registry.store.EnsureSchema(executionContext); schemaError != nil {
		return false, schemaError
	}

	var exists int
	queryError := registry.store.db.QueryRowContext(executionContext, `
SELECT 1 FROM propaudit_registrations WHERE project_root = $1 AND builder = $2`,
		project.Root, audit.BuilderIdentifier).Scan(&exists)
	registered := true
	if queryError != nil {
		if !errors.Is(queryError, sql.ErrNoRows) {
			return false, fmt.Errorf(registrationQueryErrorTemplateConstant, project.Root, queryError)
		}
		registered = false
	}
	registry.store.cacheRegistration(project.Root, registered)
	return registered, nil
}

// Register records the auditor for project; repeated calls are no-ops.
func (registry *Registry) Register(executionContext context.Context, project audit.Project) error {
	if schemaError := registry.store.EnsureSchema(executionContext); schemaError != nil {
		return schemaError
	}
	_, execError := registry.store.db.ExecContext(executionContext, `
INSERT INTO propaudit_registrations (project_root, builder, project_name)
VALUES ($1,$2,$3)
ON CONFLICT (project_root, builder) DO NOTHING`, project.Root, audit.BuilderIdentifier, project.Name)
	registry.store.forgetRegistration(project.Root)
	if execError != nil {
		return fmt.Errorf(registerErrorTemplateConstant, project.Root, execError)
	}
	return nil
}

// Unregister removes the auditor registration for project.
func (registry *Registry) Unregister(executionContext context.Context, project audit.Project) error {
	if schemaError := registry.store.EnsureSchema(executionContext); schemaError != nil {
		return schemaError
	}
	_, execError := registry.store.db.ExecContext(executionContext, `
DELETE FROM propaudit_registrations WHERE project_root = $1 AND builder = $2`, project.Root, audit.BuilderIdentifier)
	registry.store.forgetRegistration(project.Root)
	if execError != nil {
		return fmt.Errorf(unregisterErrorTemplateConstant, project.Root, execError)
	}
	return nil
}

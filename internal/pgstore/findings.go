package pgstore

import (
	"context"
	"fmt"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/keyscan"
)

const (
	clearFindingsErrorTemplateConstant = "clear findings for %s: %w"
	insertFindingErrorTemplateConstant = "insert finding %s: %w"
	listFindingsErrorTemplateConstant  = "list findings for %s: %w"
)

// FindingSink stores findings in the propaudit_findings table.
type FindingSink struct {
	store *Store
}

// ClearAll deletes the owner's findings for project.
func (sink *FindingSink) ClearAll(executionContext context.Context, owner string, project audit.Project) error {
	if schemaError := sink.store.EnsureSchema(executionContext); schemaError != nil {
		return schemaError
	}
	_, execError := sink.store.db.ExecContext(executionContext, `
DELETE FROM propaudit_findings WHERE owner = $1 AND project_root = $2`, owner, project.Root)
	if execError != nil {
		return fmt.Errorf(clearFindingsErrorTemplateConstant, project.Root, execError)
	}
	return nil
}

// Report inserts finding.
func (sink *FindingSink) Report(executionContext context.Context, finding audit.Finding) error {
	if schemaError := sink.store.EnsureSchema(executionContext); schemaError != nil {
		return schemaError
	}
	location := finding.Location
	_, execError := sink.store.db.ExecContext(executionContext, `
INSERT INTO propaudit_findings (
  owner, project_root, file_name, finding_key, violation, severity, message,
  line, column_number, char_start, char_end
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		finding.Owner,
		location.File.Root,
		location.File.Name,
		location.Key,
		finding.Violation.String(),
		string(finding.Severity),
		finding.Message,
		location.Line,
		location.Column,
		location.CharStart,
		location.CharEnd,
	)
	if execError != nil {
		return fmt.Errorf(insertFindingErrorTemplateConstant, location.Key, execError)
	}
	return nil
}

// Findings lists the owner's stored findings for project ordered by file, line, and key.
func (sink *FindingSink) Findings(executionContext context.Context, owner string, project audit.Project) ([]audit.Finding, error) {
	if schemaError := sink.store.EnsureSchema(executionContext); schemaError != nil {
		return nil, schemaError
	}
	rows, queryError := sink.store.db.QueryContext(executionContext, `
SELECT file_name, finding_key, violation, severity, message, line, column_number, char_start, char_end
FROM propaudit_findings
WHERE owner = $1 AND project_root = $2
ORDER BY file_name, line, finding_key`, owner, project.Root)
	if queryError != nil {
		return nil, fmt.Errorf(listFindingsErrorTemplateConstant, project.Root, queryError)
	}
	defer rows.Close()

	var storedFindings []audit.Finding
	for rows.Next() {
		var fileName string
		var violation string
		var severity string
		finding := audit.Finding{Owner: owner}
		scanError := rows.Scan(
			&fileName,
			&finding.Location.Key,
			&violation,
			&severity,
			&finding.Message,
			&finding.Location.Line,
			&finding.Location.Column,
			&finding.Location.CharStart,
			&finding.Location.CharEnd,
		)
		if scanError != nil {
			return nil, fmt.Errorf(listFindingsErrorTemplateConstant, project.Root, scanError)
		}
		finding.Location.File = keyscan.FileReference{Root: project.Root, Name: fileName}
		finding.Violation = parseViolation(violation)
		finding.Severity = audit.Severity(severity)
		storedFindings = append(storedFindings, finding)
	}
	if rowsError := rows.Err(); rowsError != nil {
		return nil, fmt.Errorf(listFindingsErrorTemplateConstant, project.Root, rowsError)
	}
	return storedFindings, nil
}

func parseViolation(value string) audit.ViolationKind {
	switch value {
	case audit.MissingKey.String():
		return audit.MissingKey
	case audit.UnusedKey.String():
		return audit.UnusedKey
	default:
		return 0
	}
}

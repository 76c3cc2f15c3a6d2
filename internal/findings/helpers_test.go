package findings_test

import (
	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/keyscan"
)

func missingFinding(project audit.Project, key string, line int, column int) audit.Finding {
	return audit.NewMissingKeyFinding(keyscan.KeyLocation{
		Key:       key,
		File:      project.ManifestReference(),
		CharStart: column - 1,
		CharEnd:   column + len(key),
		Line:      line,
		Column:    column,
	})
}

func unusedFinding(project audit.Project, key string, line int) audit.Finding {
	return audit.NewUnusedKeyFinding(keyscan.KeyLocation{
		Key:       key,
		File:      project.ResourceReference(),
		CharStart: 0,
		CharEnd:   len(key),
		Line:      line,
		Column:    1,
	})
}

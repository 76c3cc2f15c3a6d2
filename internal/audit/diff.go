package audit

import "github.com/temirov/propaudit/internal/keyscan"

// Diff compares the manifest and resource key maps. It returns a MissingKey
// finding for each manifest key absent from the resources, followed by an
// UnusedKey finding for each resource key the manifest never references.
// Findings are ordered by key within each kind.
func Diff(manifestKeys keyscan.KeyMap, resourceKeys keyscan.KeyMap) []Finding {
	findings := missingKeyFindings(manifestKeys, resourceKeys)
	return append(findings, unusedKeyFindings(manifestKeys, resourceKeys)...)
}

// AuditContents scans both texts and diffs the resulting key maps.
func AuditContents(manifestContent string, resourceContent string, manifestReference keyscan.FileReference, resourceReference keyscan.FileReference) []Finding {
	manifestKeys := keyscan.ScanManifest(manifestContent, manifestReference)
	resourceKeys := keyscan.ScanResources(resourceContent, resourceReference)
	return Diff(manifestKeys, resourceKeys)
}

func missingKeyFindings(manifestKeys keyscan.KeyMap, resourceKeys keyscan.KeyMap) []Finding {
	findings := make([]Finding, 0)
	for _, key := range manifestKeys.Keys() {
		if resourceKeys.Contains(key) {
			continue
		}
		findings = append(findings, NewMissingKeyFinding(manifestKeys[key]))
	}
	return findings
}

func unusedKeyFindings(manifestKeys keyscan.KeyMap, resourceKeys keyscan.KeyMap) []Finding {
	findings := make([]Finding, 0)
	for _, key := range resourceKeys.Keys() {
		if manifestKeys.Contains(key) {
			continue
		}
		findings = append(findings, NewUnusedKeyFinding(resourceKeys[key]))
	}
	return findings
}

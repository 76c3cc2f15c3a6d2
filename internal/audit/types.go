package audit

import (
	"fmt"
	"strings"

	"github.com/temirov/propaudit/internal/keyscan"
)

const (
	// ManifestFileName is the well-known manifest file name inside a project.
	ManifestFileName = "plugin.xml"
	// ResourceFileName is the well-known resource file name inside a project.
	ResourceFileName = "plugin.properties"
	// OwnerIdentifier tags every finding produced by the auditor.
	OwnerIdentifier = "propaudit.auditmarker"
	// BuilderIdentifier names the auditor in project registrations.
	BuilderIdentifier = "propaudit.propertiesFileAuditor"
)

const (
	missingKeyMessageConstant          = "Missing property key"
	unusedKeyMessageConstant           = "Unused property key"
	findingMessageTemplateConstant     = "%s: %s"
	buildKindFullStringConstant        = "full"
	buildKindIncrementalStringConstant = "incremental"
	buildKindAutoStringConstant        = "auto"
	unsupportedBuildKindTemplate       = "unsupported build kind: %s"
)

// ViolationKind classifies a finding.
type ViolationKind int

// Violation kinds reported by the auditor.
const (
	MissingKey ViolationKind = 1
	UnusedKey  ViolationKind = 2
)

// String returns a stable identifier for the violation kind.
func (kind ViolationKind) String() string {
	switch kind {
	case MissingKey:
		return "missing-key"
	case UnusedKey:
		return "unused-key"
	default:
		return "unknown"
	}
}

// Severity ranks findings.
type Severity string

// Supported severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding describes one discrepancy between the manifest and the resource file.
type Finding struct {
	Owner     string
	Message   string
	Location  keyscan.KeyLocation
	Violation ViolationKind
	Severity  Severity
}

// Key returns the key the finding refers to.
func (finding Finding) Key() string {
	return finding.Location.Key
}

// NewMissingKeyFinding builds the error finding for a manifest key absent from the resource file.
func NewMissingKeyFinding(location keyscan.KeyLocation) Finding {
	return Finding{
		Owner:     OwnerIdentifier,
		Message:   fmt.Sprintf(findingMessageTemplateConstant, missingKeyMessageConstant, location.Key),
		Location:  location,
		Violation: MissingKey,
		Severity:  SeverityError,
	}
}

// NewUnusedKeyFinding builds the warning finding for a resource key the manifest never references.
func NewUnusedKeyFinding(location keyscan.KeyLocation) Finding {
	return Finding{
		Owner:     OwnerIdentifier,
		Message:   fmt.Sprintf(findingMessageTemplateConstant, unusedKeyMessageConstant, location.Key),
		Location:  location,
		Violation: UnusedKey,
		Severity:  SeverityWarning,
	}
}

// Project identifies an audited project by display name and location.
type Project struct {
	Name string
	Root string
}

// ManifestReference returns the manifest file reference for the project.
func (project Project) ManifestReference() keyscan.FileReference {
	return keyscan.FileReference{Root: project.Root, Name: ManifestFileName}
}

// ResourceReference returns the resource file reference for the project.
func (project Project) ResourceReference() keyscan.FileReference {
	return keyscan.FileReference{Root: project.Root, Name: ResourceFileName}
}

// BuildKind tells the trigger how much change information accompanies a request.
type BuildKind int

// Supported build kinds.
const (
	BuildKindFull BuildKind = iota
	BuildKindIncremental
	BuildKindAuto
)

// String returns the textual form accepted by ParseBuildKind.
func (kind BuildKind) String() string {
	switch kind {
	case BuildKindFull:
		return buildKindFullStringConstant
	case BuildKindIncremental:
		return buildKindIncrementalStringConstant
	case BuildKindAuto:
		return buildKindAutoStringConstant
	default:
		return "unknown"
	}
}

// ParseBuildKind converts a textual build kind into its BuildKind value.
func ParseBuildKind(value string) (BuildKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case buildKindFullStringConstant:
		return BuildKindFull, nil
	case buildKindIncrementalStringConstant:
		return BuildKindIncremental, nil
	case buildKindAutoStringConstant:
		return BuildKindAuto, nil
	default:
		return BuildKindFull, fmt.Errorf(unsupportedBuildKindTemplate, value)
	}
}

// BuildRequest asks the engine to audit a project. A nil ChangedFiles means no
// change information is available.
type BuildRequest struct {
	Kind         BuildKind
	Project      Project
	ChangedFiles []string
}

// Status describes how an audit run ended.
type Status string

// Run statuses.
const (
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusSkipped   Status = "skipped"
	StatusAborted   Status = "aborted"
)

// Report summarizes an audit run.
type Report struct {
	Project      Project
	Status       Status
	Findings     []Finding
	MissingCount int
	UnusedCount  int
}

// Completed reports whether the run produced a full finding set.
func (report Report) Completed() bool {
	return report.Status == StatusCompleted
}

// CountAtOrAbove counts findings whose severity is at least the threshold.
func (report Report) CountAtOrAbove(threshold Severity) int {
	switch threshold {
	case SeverityError:
		return report.MissingCount
	case SeverityWarning:
		return report.MissingCount + report.UnusedCount
	default:
		return 0
	}
}

package findings

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/temirov/propaudit/internal/audit"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

func writeSARIFReport(writer io.Writer, findings []audit.Finding, toolName string, toolVersion string) error {
	results := make([]sarifResult, 0, len(findings))
	for _, finding := range findings {
		startLine := finding.Location.Line
		if startLine <= 0 {
			startLine = 1
		}
		results = append(results, sarifResult{
			RuleID:  finding.Violation.String(),
			Level:   sarifLevel(finding.Severity),
			Message: sarifMessage{Text: strings.TrimSpace(finding.Message)},
			Locations: []sarifLocation{
				{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{URI: sarifURI(finding)},
						Region:           sarifRegion{StartLine: startLine, StartColumn: finding.Location.Column},
					},
				},
			},
		})
	}

	log := sarifLog{
		Version: sarifVersionConstant,
		Schema:  sarifSchemaConstant,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    toolName,
						Version: toolVersion,
						Rules: []sarifRule{
							{ID: audit.MissingKey.String(), ShortDescription: sarifMessage{Text: "Manifest references a key absent from the resource file"}},
							{ID: audit.UnusedKey.String(), ShortDescription: sarifMessage{Text: "Resource file defines a key the manifest never references"}},
						},
					},
				},
				Results: results,
			},
		},
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", jsonIndentConstant)
	return encoder.Encode(log)
}

func sarifLevel(severity audit.Severity) string {
	switch severity {
	case audit.SeverityError:
		return "error"
	case audit.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

func sarifURI(finding audit.Finding) string {
	location := finding.Location.File.String()
	if len(strings.TrimSpace(location)) == 0 {
		return sarifUnknownURIConstant
	}
	if strings.Contains(location, markerSchemeSeparatorConstant) {
		return location
	}
	return filepath.ToSlash(location)
}

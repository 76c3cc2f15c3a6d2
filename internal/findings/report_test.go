package findings_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/findings"
)

var reportProject = audit.Project{Name: "sample", Root: filepath.Join("workspace", "sample")}

func reportSinkWithFindings(testInstance *testing.T, format findings.Format, buffer *bytes.Buffer) *findings.ReportSink {
	testInstance.Helper()
	sink := findings.NewReportSink(format, buffer, findings.WithToolVersion("1.0.0"))
	require.NoError(testInstance, sink.Report(context.Background(), unusedFinding(reportProject, "stale", 3)))
	require.NoError(testInstance, sink.Report(context.Background(), missingFinding(reportProject, "view", 2, 7)))
	require.NoError(testInstance, sink.Report(context.Background(), missingFinding(reportProject, "action", 1, 4)))
	return sink
}

func TestParseFormat(testInstance *testing.T) {
	testCases := []struct {
		input       string
		expected    findings.Format
		expectError bool
	}{
		{input: "console", expected: findings.FormatConsole},
		{input: " CSV ", expected: findings.FormatCSV},
		{input: "json", expected: findings.FormatJSON},
		{input: "sarif", expected: findings.FormatSARIF},
		{input: "", expected: findings.FormatConsole},
		{input: "xml", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.input, func(testInstance *testing.T) {
			format, parseError := findings.ParseFormat(testCase.input)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expected, format)
		})
	}
}

func TestReportSinkConsoleFormat(testInstance *testing.T) {
	buffer := &bytes.Buffer{}
	sink := reportSinkWithFindings(testInstance, findings.FormatConsole, buffer)
	require.NoError(testInstance, sink.Flush())

	manifestPath := filepath.Join("workspace", "sample", audit.ManifestFileName)
	resourcePath := filepath.Join("workspace", "sample", audit.ResourceFileName)
	expected := resourcePath + ":3:1: warning: Unused property key: stale\n" +
		manifestPath + ":1:4: error: Missing property key: action\n" +
		manifestPath + ":2:7: error: Missing property key: view\n"
	require.Equal(testInstance, expected, buffer.String())

	buffer.Reset()
	require.NoError(testInstance, sink.Flush())
	require.Empty(testInstance, buffer.String())
}

func TestReportSinkCSVFormat(testInstance *testing.T) {
	buffer := &bytes.Buffer{}
	sink := reportSinkWithFindings(testInstance, findings.FormatCSV, buffer)
	require.NoError(testInstance, sink.Flush())

	records, readError := csv.NewReader(bytes.NewReader(buffer.Bytes())).ReadAll()
	require.NoError(testInstance, readError)
	require.Len(testInstance, records, 4)
	require.Equal(testInstance, []string{"file", "line", "column", "severity", "violation", "key", "message"}, records[0])
	require.Equal(testInstance, []string{"2", "7", "error", "missing-key", "view", "Missing property key: view"}, records[3][1:])
}

func TestReportSinkJSONFormat(testInstance *testing.T) {
	buffer := &bytes.Buffer{}
	sink := reportSinkWithFindings(testInstance, findings.FormatJSON, buffer)
	require.NoError(testInstance, sink.Flush())

	var decoded []map[string]any
	require.NoError(testInstance, json.Unmarshal(buffer.Bytes(), &decoded))
	require.Len(testInstance, decoded, 3)
	require.Equal(testInstance, "stale", decoded[0]["key"])
	require.Equal(testInstance, "unused-key", decoded[0]["violation"])
	require.Equal(testInstance, "warning", decoded[0]["severity"])
	require.EqualValues(testInstance, 3, decoded[0]["line"])
}

func TestReportSinkSARIFFormat(testInstance *testing.T) {
	buffer := &bytes.Buffer{}
	sink := reportSinkWithFindings(testInstance, findings.FormatSARIF, buffer)
	require.NoError(testInstance, sink.Flush())

	var decoded struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name    string `json:"name"`
					Version string `json:"version"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				Level     string `json:"level"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
						Region struct {
							StartLine   int `json:"startLine"`
							StartColumn int `json:"startColumn"`
						} `json:"region"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(testInstance, json.Unmarshal(buffer.Bytes(), &decoded))
	require.Equal(testInstance, "2.1.0", decoded.Version)
	require.Len(testInstance, decoded.Runs, 1)
	require.Equal(testInstance, "propaudit", decoded.Runs[0].Tool.Driver.Name)
	require.Equal(testInstance, "1.0.0", decoded.Runs[0].Tool.Driver.Version)
	require.Len(testInstance, decoded.Runs[0].Results, 3)

	manifestResult := decoded.Runs[0].Results[1]
	require.Equal(testInstance, "missing-key", manifestResult.RuleID)
	require.Equal(testInstance, "error", manifestResult.Level)
	require.Equal(testInstance, "workspace/sample/plugin.xml", manifestResult.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	require.Equal(testInstance, 1, manifestResult.Locations[0].PhysicalLocation.Region.StartLine)
	require.Equal(testInstance, 4, manifestResult.Locations[0].PhysicalLocation.Region.StartColumn)
	require.Equal(testInstance, "warning", decoded.Runs[0].Results[0].Level)
}

func TestReportSinkClearAllDropsProjectFindings(testInstance *testing.T) {
	buffer := &bytes.Buffer{}
	sink := reportSinkWithFindings(testInstance, findings.FormatConsole, buffer)
	otherProject := audit.Project{Name: "other", Root: filepath.Join("workspace", "other")}
	require.NoError(testInstance, sink.Report(context.Background(), missingFinding(otherProject, "kept", 1, 1)))

	require.NoError(testInstance, sink.ClearAll(context.Background(), audit.OwnerIdentifier, reportProject))
	require.NoError(testInstance, sink.Flush())
	require.Equal(testInstance, filepath.Join("workspace", "other", audit.ManifestFileName)+":1:1: error: Missing property key: kept\n", buffer.String())
}

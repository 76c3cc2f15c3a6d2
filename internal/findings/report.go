package findings

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/temirov/propaudit/internal/audit"
)

// Format selects how a ReportSink renders findings.
type Format string

// Supported report formats.
const (
	FormatConsole Format = "console"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatSARIF   Format = "sarif"
)

const (
	consoleLineTemplateConstant = "%s:%d:%d: %s: %s\n"
	unsupportedFormatTemplate   = "unsupported report format: %s"
	csvHeaderFile               = "file"
	csvHeaderLine               = "line"
	csvHeaderColumn             = "column"
	csvHeaderSeverity           = "severity"
	csvHeaderViolation          = "violation"
	csvHeaderKey                = "key"
	csvHeaderMessage            = "message"
	jsonIndentConstant          = "  "
	sarifVersionConstant        = "2.1.0"
	sarifSchemaConstant         = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifUnknownURIConstant     = "UNKNOWN"
	defaultToolNameConstant     = "propaudit"
)

// ParseFormat converts a textual format into a Format.
func ParseFormat(value string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(value))); format {
	case FormatConsole, FormatCSV, FormatJSON, FormatSARIF:
		return format, nil
	case "":
		return FormatConsole, nil
	default:
		return "", fmt.Errorf(unsupportedFormatTemplate, value)
	}
}

// ReportSink buffers findings and renders them to a writer on Flush.
type ReportSink struct {
	format      Format
	writer      io.Writer
	toolName    string
	toolVersion string
	mutex       sync.Mutex
	findings    []audit.Finding
}

// ReportOption customizes a ReportSink.
type ReportOption func(sink *ReportSink)

// WithToolVersion sets the tool version recorded in SARIF output.
func WithToolVersion(version string) ReportOption {
	return func(sink *ReportSink) {
		sink.toolVersion = version
	}
}

// NewReportSink constructs a ReportSink writing format to writer.
func NewReportSink(format Format, writer io.Writer, options ...ReportOption) *ReportSink {
	sink := &ReportSink{format: format, writer: writer, toolName: defaultToolNameConstant}
	for _, option := range options {
		if option != nil {
			option(sink)
		}
	}
	return sink
}

// ClearAll drops buffered findings of owner for project.
func (sink *ReportSink) ClearAll(executionContext context.Context, owner string, project audit.Project) error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	retained := sink.findings[:0]
	for _, finding := range sink.findings {
		if finding.Owner == owner && finding.Location.File.Root == project.Root {
			continue
		}
		retained = append(retained, finding)
	}
	sink.findings = retained
	return nil
}

// Report buffers finding until the next Flush.
func (sink *ReportSink) Report(executionContext context.Context, finding audit.Finding) error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.findings = append(sink.findings, finding)
	return nil
}

// Flush renders the buffered findings ordered by file, line, and key, then empties the buffer.
func (sink *ReportSink) Flush() error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	ordered := make([]audit.Finding, len(sink.findings))
	copy(ordered, sink.findings)
	sortFindings(ordered)
	sink.findings = nil

	switch sink.format {
	case FormatCSV:
		return writeCSVReport(sink.writer, ordered)
	case FormatJSON:
		return writeJSONReport(sink.writer, ordered)
	case FormatSARIF:
		return writeSARIFReport(sink.writer, ordered, sink.toolName, sink.toolVersion)
	default:
		return writeConsoleReport(sink.writer, ordered)
	}
}

func sortFindings(findings []audit.Finding) {
	sort.SliceStable(findings, func(left int, right int) bool {
		leftLocation := findings[left].Location
		rightLocation := findings[right].Location
		leftFile := leftLocation.File.String()
		rightFile := rightLocation.File.String()
		if leftFile != rightFile {
			return leftFile < rightFile
		}
		if leftLocation.Line != rightLocation.Line {
			return leftLocation.Line < rightLocation.Line
		}
		return leftLocation.Key < rightLocation.Key
	})
}

func writeConsoleReport(writer io.Writer, findings []audit.Finding) error {
	for _, finding := range findings {
		location := finding.Location
		if _, writeError := fmt.Fprintf(writer, consoleLineTemplateConstant, location.File.String(), location.Line, location.Column, finding.Severity, finding.Message); writeError != nil {
			return writeError
		}
	}
	return nil
}

func writeCSVReport(writer io.Writer, findings []audit.Finding) error {
	csvWriter := csv.NewWriter(writer)
	header := []string{
		csvHeaderFile,
		csvHeaderLine,
		csvHeaderColumn,
		csvHeaderSeverity,
		csvHeaderViolation,
		csvHeaderKey,
		csvHeaderMessage,
	}
	if writeError := csvWriter.Write(header); writeError != nil {
		return writeError
	}
	for _, finding := range findings {
		record := []string{
			finding.Location.File.String(),
			strconv.Itoa(finding.Location.Line),
			strconv.Itoa(finding.Location.Column),
			string(finding.Severity),
			finding.Violation.String(),
			finding.Key(),
			finding.Message,
		}
		if writeError := csvWriter.Write(record); writeError != nil {
			return writeError
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

type jsonFinding struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
	Key       string `json:"key"`
	Violation string `json:"violation"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

func writeJSONReport(writer io.Writer, findings []audit.Finding) error {
	records := make([]jsonFinding, 0, len(findings))
	for _, finding := range findings {
		records = append(records, jsonFinding{
			File:      finding.Location.File.String(),
			Line:      finding.Location.Line,
			Column:    finding.Location.Column,
			CharStart: finding.Location.CharStart,
			CharEnd:   finding.Location.CharEnd,
			Key:       finding.Key(),
			Violation: finding.Violation.String(),
			Severity:  string(finding.Severity),
			Message:   finding.Message,
		})
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", jsonIndentConstant)
	return encoder.Encode(records)
}

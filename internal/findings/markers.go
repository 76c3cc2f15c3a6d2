package findings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/filesystem"
)

const (
	// MarkerDirectoryName is the per-project directory holding persisted markers.
	MarkerDirectoryName = ".propaudit"
	// MarkerFileName is the marker document inside MarkerDirectoryName.
	MarkerFileName = "markers.json"
)

const (
	markerDirectoryPermissions           = fs.FileMode(0o755)
	markerFilePermissions                = fs.FileMode(0o644)
	markerSchemeSeparatorConstant        = "://"
	markerReadErrorTemplateConstant      = "read markers %s: %w"
	markerDecodeErrorTemplateConstant    = "decode markers %s: %w"
	markerEncodeErrorTemplateConstant    = "encode markers %s: %w"
	markerWriteErrorTemplateConstant     = "write markers %s: %w"
	markerDirectoryErrorTemplateConstant = "create marker directory %s: %w"
	markerRemoteSkippedMessageConstant   = "marker file skipped for remote project"
	markerRemoveErrorTemplateConstant    = "remove markers %s: %w"
	logFieldMarkerProjectRootConstant    = "root"
)

// Marker is the persisted form of a finding.
type Marker struct {
	Owner     string `json:"owner"`
	Key       string `json:"key"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
	Violation string `json:"violation"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

type markerDocument struct {
	Markers []Marker `json:"markers"`
}

// MarkerFileSink persists findings as JSON markers inside each project.
// Writes replace the marker file atomically. Remote projects are skipped.
type MarkerFileSink struct {
	fileSystem filesystem.FileSystem
	logger     *zap.Logger
	mutex      sync.Mutex
}

// NewMarkerFileSink constructs a MarkerFileSink over fileSystem, defaulting to the operating system.
func NewMarkerFileSink(fileSystem filesystem.FileSystem, logger *zap.Logger) *MarkerFileSink {
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkerFileSink{fileSystem: fileSystem, logger: logger}
}

// MarkerFilePath returns the marker document location for a project root.
func MarkerFilePath(projectRoot string) string {
	return filepath.Join(projectRoot, MarkerDirectoryName, MarkerFileName)
}

// ClearAll removes the owner's markers and preserves markers of other owners.
func (sink *MarkerFileSink) ClearAll(executionContext context.Context, owner string, project audit.Project) error {
	if isRemoteRoot(project.Root) {
		sink.logger.Debug(markerRemoteSkippedMessageConstant, zap.String(logFieldMarkerProjectRootConstant, project.Root))
		return nil
	}

	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	document, readError := sink.readDocument(project.Root)
	if readError != nil {
		return readError
	}

	retained := make([]Marker, 0, len(document.Markers))
	for _, marker := range document.Markers {
		if marker.Owner != owner {
			retained = append(retained, marker)
		}
	}
	if len(retained) == len(document.Markers) {
		return nil
	}
	if len(retained) == 0 {
		markerPath := MarkerFilePath(project.Root)
		if removeError := sink.fileSystem.Remove(markerPath); removeError != nil {
			return fmt.Errorf(markerRemoveErrorTemplateConstant, markerPath, removeError)
		}
		return nil
	}
	return sink.writeDocument(project.Root, markerDocument{Markers: retained})
}

// Report appends a marker for finding to its project's marker file.
func (sink *MarkerFileSink) Report(executionContext context.Context, finding audit.Finding) error {
	projectRoot := finding.Location.File.Root
	if isRemoteRoot(projectRoot) {
		sink.logger.Debug(markerRemoteSkippedMessageConstant, zap.String(logFieldMarkerProjectRootConstant, projectRoot))
		return nil
	}

	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	document, readError := sink.readDocument(projectRoot)
	if readError != nil {
		return readError
	}
	document.Markers = append(document.Markers, newMarker(finding))
	return sink.writeDocument(projectRoot, document)
}

// Markers returns the markers persisted for project.
func (sink *MarkerFileSink) Markers(project audit.Project) ([]Marker, error) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	document, readError := sink.readDocument(project.Root)
	if readError != nil {
		return nil, readError
	}
	return document.Markers, nil
}

func (sink *MarkerFileSink) readDocument(projectRoot string) (markerDocument, error) {
	markerPath := MarkerFilePath(projectRoot)
	raw, readError := sink.fileSystem.ReadFile(markerPath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return markerDocument{}, nil
		}
		return markerDocument{}, fmt.Errorf(markerReadErrorTemplateConstant, markerPath, readError)
	}

	var document markerDocument
	if decodeError := json.Unmarshal(raw, &document); decodeError != nil {
		return markerDocument{}, fmt.Errorf(markerDecodeErrorTemplateConstant, markerPath, decodeError)
	}
	return document, nil
}

func (sink *MarkerFileSink) writeDocument(projectRoot string, document markerDocument) error {
	markerPath := MarkerFilePath(projectRoot)
	markerDirectory := filepath.Dir(markerPath)
	if directoryError := sink.fileSystem.MkdirAll(markerDirectory, markerDirectoryPermissions); directoryError != nil {
		return fmt.Errorf(markerDirectoryErrorTemplateConstant, markerDirectory, directoryError)
	}

	encoded, encodeError := json.MarshalIndent(document, "", "  ")
	if encodeError != nil {
		return fmt.Errorf(markerEncodeErrorTemplateConstant, markerPath, encodeError)
	}
	if writeError := sink.fileSystem.WriteFileAtomic(markerPath, append(encoded, '\n'), markerFilePermissions); writeError != nil {
		return fmt.Errorf(markerWriteErrorTemplateConstant, markerPath, writeError)
	}
	return nil
}

func newMarker(finding audit.Finding) Marker {
	return Marker{
		Owner:     finding.Owner,
		Key:       finding.Key(),
		File:      finding.Location.File.Name,
		Line:      finding.Location.Line,
		Column:    finding.Location.Column,
		CharStart: finding.Location.CharStart,
		CharEnd:   finding.Location.CharEnd,
		Violation: finding.Violation.String(),
		Severity:  string(finding.Severity),
		Message:   finding.Message,
	}
}

func isRemoteRoot(projectRoot string) bool {
	return strings.Contains(projectRoot, markerSchemeSeparatorConstant)
}


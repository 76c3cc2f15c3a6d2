package registration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/filesystem"
)

// DescriptorFileName is the per-project registration descriptor.
const DescriptorFileName = ".propaudit.yaml"

const (
	descriptorPermissions                 = fs.FileMode(0o644)
	remoteRootSeparatorConstant           = "://"
	projectUnavailableMessageConstant     = "project is unavailable"
	projectUnavailableTemplateConstant    = "%w: %s"
	descriptorReadErrorTemplateConstant   = "read descriptor %s: %w"
	descriptorDecodeErrorTemplateConstant = "decode descriptor %s: %w"
	descriptorEncodeErrorTemplateConstant = "encode descriptor %s: %w"
	descriptorWriteErrorTemplateConstant  = "write descriptor %s: %w"
)

// ErrProjectUnavailable indicates the project location cannot be opened, for
// example because its directory no longer exists.
var ErrProjectUnavailable = errors.New(projectUnavailableMessageConstant)

type descriptor struct {
	Name     string         `yaml:"name,omitempty"`
	Builders []string       `yaml:"builders"`
	Extra    map[string]any `yaml:",inline"`
}

func (document descriptor) hasBuilder(builder string) bool {
	for _, existing := range document.Builders {
		if existing == builder {
			return true
		}
	}
	return false
}

// DescriptorRegistry stores registrations in each project's descriptor file.
// Builders other than the auditor, and unknown descriptor fields, are preserved.
type DescriptorRegistry struct {
	fileSystem filesystem.FileSystem
	mutex      sync.Mutex
}

// NewDescriptorRegistry constructs a DescriptorRegistry over fileSystem, defaulting to the operating system.
func NewDescriptorRegistry(fileSystem filesystem.FileSystem) *DescriptorRegistry {
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	return &DescriptorRegistry{fileSystem: fileSystem}
}

// DescriptorPath returns the descriptor location for a project root.
func DescriptorPath(projectRoot string) string {
	return filepath.Join(projectRoot, DescriptorFileName)
}

// IsRegistered reports whether the auditor is attached. Unavailable projects report false.
func (registry *DescriptorRegistry) IsRegistered(executionContext context.Context, project audit.Project) (bool, error) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if !registry.available(project) {
		return false, nil
	}
	document, readError := registry.readDescriptor(project)
	if readError != nil {
		return false, readError
	}
	return document.hasBuilder(audit.BuilderIdentifier), nil
}

// Register attaches the auditor. Registering twice leaves a single entry.
func (registry *DescriptorRegistry) Register(executionContext context.Context, project audit.Project) error {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if !registry.available(project) {
		return fmt.Errorf(projectUnavailableTemplateConstant, ErrProjectUnavailable, project.Root)
	}
	document, readError := registry.readDescriptor(project)
	if readError != nil {
		return readError
	}
	if document.hasBuilder(audit.BuilderIdentifier) {
		return nil
	}
	if len(document.Name) == 0 {
		document.Name = project.Name
	}
	document.Builders = append(document.Builders, audit.BuilderIdentifier)
	return registry.writeDescriptor(project, document)
}

// Unregister detaches the auditor. Unregistering an unregistered project does nothing.
func (registry *DescriptorRegistry) Unregister(executionContext context.Context, project audit.Project) error {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if !registry.available(project) {
		return fmt.Errorf(projectUnavailableTemplateConstant, ErrProjectUnavailable, project.Root)
	}
	document, readError := registry.readDescriptor(project)
	if readError != nil {
		return readError
	}
	if !document.hasBuilder(audit.BuilderIdentifier) {
		return nil
	}

	retained := make([]string, 0, len(document.Builders))
	for _, builder := range document.Builders {
		if builder != audit.BuilderIdentifier {
			retained = append(retained, builder)
		}
	}
	document.Builders = retained
	return registry.writeDescriptor(project, document)
}

func (registry *DescriptorRegistry) available(project audit.Project) bool {
	if len(strings.TrimSpace(project.Root)) == 0 || strings.Contains(project.Root, remoteRootSeparatorConstant) {
		return false
	}
	info, statError := registry.fileSystem.Stat(project.Root)
	if statError != nil {
		return false
	}
	return info.IsDir()
}

func (registry *DescriptorRegistry) readDescriptor(project audit.Project) (descriptor, error) {
	descriptorPath := DescriptorPath(project.Root)
	raw, readError := registry.fileSystem.ReadFile(descriptorPath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return descriptor{}, nil
		}
		return descriptor{}, fmt.Errorf(descriptorReadErrorTemplateConstant, descriptorPath, readError)
	}

	var document descriptor
	if decodeError := yaml.Unmarshal(raw, &document); decodeError != nil {
		return descriptor{}, fmt.Errorf(descriptorDecodeErrorTemplateConstant, descriptorPath, decodeError)
	}
	return document, nil
}

func (registry *DescriptorRegistry) writeDescriptor(project audit.Project, document descriptor) error {
	descriptorPath := DescriptorPath(project.Root)
	if document.Builders == nil {
		document.Builders = []string{}
	}
	encoded, encodeError := yaml.Marshal(document)
	if encodeError != nil {
		return fmt.Errorf(descriptorEncodeErrorTemplateConstant, descriptorPath, encodeError)
	}
	if writeError := registry.fileSystem.WriteFileAtomic(descriptorPath, encoded, descriptorPermissions); writeError != nil {
		return fmt.Errorf(descriptorWriteErrorTemplateConstant, descriptorPath, writeError)
	}
	return nil
}

package sources

import (
	"context"
	"path/filepath"

	"github.com/temirov/propaudit/internal/filesystem"
	"github.com/temirov/propaudit/internal/keyscan"
)

// FileSystemSource reads project files from a local filesystem.
type FileSystemSource struct {
	fileSystem filesystem.FileSystem
}

// NewFileSystemSource constructs a source over fileSystem, defaulting to the operating system.
func NewFileSystemSource(fileSystem filesystem.FileSystem) *FileSystemSource {
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	return &FileSystemSource{fileSystem: fileSystem}
}

// Exists reports whether the referenced path is a regular file.
func (source *FileSystemSource) Exists(executionContext context.Context, reference keyscan.FileReference) bool {
	info, statError := source.fileSystem.Stat(filesystemPath(reference))
	if statError != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// ReadText reads and decodes the referenced file.
func (source *FileSystemSource) ReadText(executionContext context.Context, reference keyscan.FileReference) (string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	raw, readError := source.fileSystem.ReadFile(filesystemPath(reference))
	if readError != nil {
		return "", readError
	}
	return decodeText(raw)
}

func filesystemPath(reference keyscan.FileReference) string {
	return filepath.Join(reference.Root, filepath.FromSlash(reference.Name))
}

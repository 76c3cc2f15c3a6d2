package filesystem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	temporaryFilePatternConstant       = ".propaudit-tmp-*"
	atomicCreateErrorTemplateConstant  = "atomic write create temporary file: %w"
	atomicWriteErrorTemplateConstant   = "atomic write: %w"
	atomicChmodErrorTemplateConstant   = "atomic write chmod: %w"
	atomicSyncErrorTemplateConstant    = "atomic write fsync: %w"
	atomicCloseErrorTemplateConstant   = "atomic write close: %w"
	atomicRenameErrorTemplateConstant  = "atomic write rename: %w"
	atomicSyncDirErrorTemplateConstant = "atomic write fsync directory: %w"
)

// FileSystem abstracts the filesystem operations used by sources, sinks, and registries.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	MkdirAll(path string, permissions fs.FileMode) error
	WriteFileAtomic(path string, data []byte, permissions fs.FileMode) error
	Remove(path string) error
}

// OSFileSystem implements FileSystem using the operating system primitives.
type OSFileSystem struct{}

// Stat retrieves file metadata.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// ReadFile reads file contents.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MkdirAll ensures a directory hierarchy exists with the provided permissions.
func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

// Remove deletes a file; a missing file is not an error.
func (OSFileSystem) Remove(path string) error {
	removeError := os.Remove(path)
	if removeError != nil && !os.IsNotExist(removeError) {
		return removeError
	}
	return nil
}

// WriteFileAtomic writes data to a temporary sibling, fsyncs it, and renames it over path.
// Readers observe either the previous content or the new content, never a partial file.
func (OSFileSystem) WriteFileAtomic(path string, data []byte, permissions fs.FileMode) error {
	directory := filepath.Dir(path)
	temporaryFile, createError := os.CreateTemp(directory, temporaryFilePatternConstant)
	if createError != nil {
		return fmt.Errorf(atomicCreateErrorTemplateConstant, createError)
	}
	temporaryPath := temporaryFile.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			_ = temporaryFile.Close()
			_ = os.Remove(temporaryPath)
		}
	}()

	if _, writeError := temporaryFile.Write(data); writeError != nil {
		return fmt.Errorf(atomicWriteErrorTemplateConstant, writeError)
	}
	if chmodError := temporaryFile.Chmod(permissions); chmodError != nil {
		return fmt.Errorf(atomicChmodErrorTemplateConstant, chmodError)
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		return fmt.Errorf(atomicSyncErrorTemplateConstant, syncError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf(atomicCloseErrorTemplateConstant, closeError)
	}
	if renameError := os.Rename(temporaryPath, path); renameError != nil {
		return fmt.Errorf(atomicRenameErrorTemplateConstant, renameError)
	}
	succeeded = true

	if syncDirectoryError := syncDirectory(directory); syncDirectoryError != nil {
		return fmt.Errorf(atomicSyncDirErrorTemplateConstant, syncDirectoryError)
	}
	return nil
}

func syncDirectory(directory string) error {
	handle, openError := os.Open(directory)
	if openError != nil {
		return openError
	}
	defer handle.Close()
	return handle.Sync()
}

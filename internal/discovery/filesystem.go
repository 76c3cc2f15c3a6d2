// Package discovery locates auditable projects on disk.
package discovery

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/temirov/propaudit/internal/audit"
)

var skippedDirectoryNames = map[string]struct{}{
	".git":         {},
	".propaudit":   {},
	"node_modules": {},
}

// FilesystemProjectDiscoverer locates projects containing a manifest or resource file.
type FilesystemProjectDiscoverer struct{}

// NewFilesystemProjectDiscoverer constructs a project discoverer backed by filepath.WalkDir.
func NewFilesystemProjectDiscoverer() *FilesystemProjectDiscoverer {
	return &FilesystemProjectDiscoverer{}
}

// DiscoverProjects walks the provided roots and returns, sorted and without
// duplicates, every directory holding a manifest or resource file. Unreadable
// entries are skipped.
func (discoverer *FilesystemProjectDiscoverer) DiscoverProjects(roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	var projects []string

	for _, root := range roots {
		walkError := filepath.WalkDir(root, func(path string, directoryEntry fs.DirEntry, walkError error) error {
			if walkError != nil {
				return nil
			}

			if directoryEntry.IsDir() {
				if _, skipped := skippedDirectoryNames[directoryEntry.Name()]; skipped && path != root {
					return fs.SkipDir
				}
				return nil
			}

			if !directoryEntry.Type().IsRegular() || !isProjectFile(directoryEntry.Name()) {
				return nil
			}

			projectPath := filepath.Dir(path)
			if _, alreadySeen := seen[projectPath]; alreadySeen {
				return nil
			}
			seen[projectPath] = struct{}{}
			projects = append(projects, projectPath)
			return nil
		})
		if walkError != nil {
			return nil, walkError
		}
	}

	sort.Strings(projects)
	return projects, nil
}

func isProjectFile(name string) bool {
	return name == audit.ManifestFileName || name == audit.ResourceFileName
}

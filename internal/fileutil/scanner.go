package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ProjectFileSuffix is the suffix shared by every project file.
const ProjectFileSuffix = ".project.json"

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Pattern is a doublestar glob matched against the slash-separated path
	// relative to the scanned directory (e.g. "places/**/*.project.json")
	Pattern string
	// Suffixes is a list of file name suffixes to include (e.g. ".project.json").
	// Matching is case-insensitive and may span several dots.
	Suffixes []string
	// Recursive enables recursive directory scanning
	Recursive bool
	// ExcludeDirs is a list of directory names to exclude (e.g. "node_modules")
	ExcludeDirs []string
	// MaxDepth limits recursion depth (0 = unlimited, 1 = current dir only)
	MaxDepth int
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains the absolute paths of all matched files
	Files []string
	// Errors contains any errors encountered during scanning
	Errors []error
}

// ScanDirectory scans a directory for files matching the provided options
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	if opts.Pattern != "" && !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", opts.Pattern, doublestar.ErrBadPattern)
	}

	result := &ScanResult{
		Files:  make([]string, 0),
		Errors: make([]error, 0),
	}

	suffixes := make([]string, 0, len(opts.Suffixes))
	for _, suffix := range opts.Suffixes {
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		suffixes = append(suffixes, strings.ToLower(suffix))
	}

	excludeMap := make(map[string]bool)
	for _, name := range opts.ExcludeDirs {
		excludeMap[name] = true
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}

		if path == dir {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to relativize %s: %w", path, relErr))
			return nil
		}

		if d.IsDir() {
			if excludeMap[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				depth := strings.Count(rel, string(filepath.Separator)) + 1
				if depth >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if len(suffixes) > 0 && !hasAnySuffix(strings.ToLower(d.Name()), suffixes) {
			return nil
		}

		if opts.Pattern != "" {
			ok, err := doublestar.Match(opts.Pattern, filepath.ToSlash(rel))
			if err != nil {
				return fmt.Errorf("invalid pattern %q: %w", opts.Pattern, err)
			}
			if !ok {
				return nil
			}
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return nil
		}

		result.Files = append(result.Files, absPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(result.Files)

	return result, nil
}

// hasAnySuffix requires at least one character before the suffix so a file
// literally named ".project.json" is not treated as a project.
func hasAnySuffix(name string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// FindProjectFiles returns every project file below dir, sorted.
func FindProjectFiles(dir string) ([]string, error) {
	result, err := ScanDirectory(dir, ScanOptions{
		Suffixes:    []string{ProjectFileSuffix},
		Recursive:   true,
		ExcludeDirs: []string{"node_modules"},
	})
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return result.Files, fmt.Errorf("scan %s: %w", dir, result.Errors[0])
	}
	return result.Files, nil
}

// Package project loads declarative project files into a tree of
// ProjectNodes.
//
// A project file is JSON:
//
//	{
//	    "name": "my-game",
//	    "globIgnorePaths": ["**/*.spec.lua"],
//	    "tree": {
//	        "$className": "DataModel",
//	        "ReplicatedStorage": {
//	            "Shared": {"$path": "src/shared"}
//	        }
//	    }
//	}
//
// Children of a node keep the order in which they were declared.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultFileName is the project file looked up inside directories.
const DefaultFileName = "default.project.json"

// FileSuffix identifies project files.
const FileSuffix = ".project.json"

// Project is a loaded project file.
type Project struct {
	Name              string
	Tree              *ProjectNode
	ServePort         *uint16
	ServeAddress      string
	ServePlaceIDs     []uint64
	PlaceID           *uint64
	GameID            *uint64
	GlobIgnorePaths   []string
	EmitLegacyScripts *bool

	// FileLocation is the path the project was loaded from.
	FileLocation string
}

// FolderLocation returns the directory containing the project file. Relative
// paths inside the project are resolved against it.
func (p *Project) FolderLocation() string {
	return filepath.Dir(p.FileLocation)
}

// LoadError reports a project file that could not be parsed.
type LoadError struct {
	Path string
	Err  error
}

// Error implements the error interface for LoadError.
func (e *LoadError) Error() string {
	return fmt.Sprintf("file was not a valid project: %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsProjectFile reports whether path names a project file.
func IsProjectFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), FileSuffix)
}

type projectFile struct {
	Name              *string      `json:"name"`
	Tree              *ProjectNode `json:"tree"`
	ServePort         *uint16      `json:"servePort"`
	ServeAddress      string       `json:"serveAddress"`
	ServePlaceIDs     []uint64     `json:"servePlaceIds"`
	PlaceID           *uint64      `json:"placeId"`
	GameID            *uint64      `json:"gameId"`
	GlobIgnorePaths   []string     `json:"globIgnorePaths"`
	EmitLegacyScripts *bool        `json:"emitLegacyScripts"`
}

// Load parses project bytes read from path.
func Load(data []byte, path string) (*Project, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var raw projectFile
	if err := dec.Decode(&raw); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if dec.More() {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unexpected data after project object")}
	}

	if raw.Tree == nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("missing required field \"tree\"")}
	}

	for _, glob := range raw.GlobIgnorePaths {
		if !doublestar.ValidatePattern(glob) {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("invalid glob %q in globIgnorePaths: %w", glob, doublestar.ErrBadPattern)}
		}
	}

	name := defaultName(path)
	if raw.Name != nil {
		name = *raw.Name
	}
	if name == "" {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("project name must not be empty")}
	}

	return &Project{
		Name:              name,
		Tree:              raw.Tree,
		ServePort:         raw.ServePort,
		ServeAddress:      raw.ServeAddress,
		ServePlaceIDs:     raw.ServePlaceIDs,
		PlaceID:           raw.PlaceID,
		GameID:            raw.GameID,
		GlobIgnorePaths:   raw.GlobIgnorePaths,
		EmitLegacyScripts: raw.EmitLegacyScripts,
		FileLocation:      path,
	}, nil
}

// defaultName derives a project name from its file name: "foo.project.json"
// becomes "foo", and "default.project.json" takes its folder's name.
func defaultName(path string) string {
	base := filepath.Base(path)
	if base == DefaultFileName {
		return filepath.Base(filepath.Dir(path))
	}
	return strings.TrimSuffix(base, FileSuffix)
}

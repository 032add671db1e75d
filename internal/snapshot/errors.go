package snapshot

import (
	"fmt"
	"strings"
)

// ConflictError reports a node whose explicit class name disagrees with the
// class its $path produced.
type ConflictError struct {
	InstanceName   string
	ProjectClass   string
	PathClass      string
	ProjectPath    string
	FilesystemPath string
}

// Error implements the error interface for ConflictError.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("ClassName for instance %q was specified in both the project file (as %q) and from the filesystem (as %q).\n"+
		"If $className and $path are both set, $path must refer to a Folder.\n\n"+
		"Project path: %s\nFilesystem path: %s",
		e.InstanceName, e.ProjectClass, e.PathClass, e.ProjectPath, e.FilesystemPath)
}

// MissingInformationError reports a node with nothing to take a class from.
type MissingInformationError struct {
	InstanceName string
	ProjectPath  string
}

// Error implements the error interface for MissingInformationError.
func (e *MissingInformationError) Error() string {
	return fmt.Sprintf("instance %q is missing some required information.\n"+
		"One of the following must be true:\n"+
		"- $className must be set to the name of a class\n"+
		"- $path must be set to a path of an instance\n"+
		"- the instance must be a known service, like ReplicatedStorage\n\n"+
		"Project path: %s",
		e.InstanceName, e.ProjectPath)
}

// UnresolvedPathError reports a required $path that produced no instance.
type UnresolvedPathError struct {
	InstanceName string
	ProjectPath  string
	Path         string
}

// Error implements the error interface for UnresolvedPathError.
func (e *UnresolvedPathError) Error() string {
	return fmt.Sprintf("project referred to a file using $path that could not be turned into an instance (instance %q).\n"+
		"Check that the file exists and is a known file type.\n\n"+
		"Project path: %s\nFile $path: %s",
		e.InstanceName, e.ProjectPath, e.Path)
}

// PropertyResolutionError reports a declared property whose raw value could
// not be typed for its class.
type PropertyResolutionError struct {
	InstanceName string
	ClassName    string
	Property     string
	ProjectPath  string
	Err          error
}

// Error implements the error interface for PropertyResolutionError.
func (e *PropertyResolutionError) Error() string {
	return fmt.Sprintf("unresolvable property %q on instance %q (class %s) in project at path %s: %v",
		e.Property, e.InstanceName, e.ClassName, e.ProjectPath, e.Err)
}

// Unwrap returns the underlying resolution error.
func (e *PropertyResolutionError) Unwrap() error {
	return e.Err
}

// IncludeCycleError reports a project that includes itself through $path.
type IncludeCycleError struct {
	Chain []string
}

// Error implements the error interface for IncludeCycleError.
func (e *IncludeCycleError) Error() string {
	return fmt.Sprintf("project files include each other in a cycle: %s", strings.Join(e.Chain, " -> "))
}

package models

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathIgnoreRule excludes filesystem paths matching Glob. The glob is
// matched against the path relative to BasePath, using forward slashes.
type PathIgnoreRule struct {
	Glob     string `json:"glob" yaml:"glob"`
	BasePath string `json:"basePath" yaml:"basePath"`
}

// Passes reports whether path survives the rule. Paths outside BasePath
// always pass.
func (r PathIgnoreRule) Passes(path string) bool {
	rel, err := filepath.Rel(r.BasePath, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}

	matched, err := doublestar.Match(r.Glob, filepath.ToSlash(rel))
	if err != nil {
		return true
	}
	return !matched
}

// InstanceContext is the per-scan configuration handed down the resolution.
//
// It is a value type. Extending it returns a new context; the receiver and
// every context derived from it earlier are never changed, so sibling
// subtrees cannot observe each other's additions.
type InstanceContext struct {
	pathIgnoreRules []PathIgnoreRule
	projectChain    []string
}

// AddPathIgnoreRules returns a copy of c with rules appended.
func (c InstanceContext) AddPathIgnoreRules(rules ...PathIgnoreRule) InstanceContext {
	out := c
	out.pathIgnoreRules = append(slices.Clip(slices.Clone(c.pathIgnoreRules)), rules...)
	return out
}

// PathIgnoreRules returns the rules in the order they were added.
func (c InstanceContext) PathIgnoreRules() []PathIgnoreRule {
	return slices.Clone(c.pathIgnoreRules)
}

// ShouldIgnore reports whether any rule excludes path.
func (c InstanceContext) ShouldIgnore(path string) bool {
	for _, rule := range c.pathIgnoreRules {
		if !rule.Passes(path) {
			return true
		}
	}
	return false
}

// EnterProject returns a copy of c recording that projectPath is being
// expanded.
func (c InstanceContext) EnterProject(projectPath string) InstanceContext {
	out := c
	out.projectChain = append(slices.Clip(slices.Clone(c.projectChain)), filepath.Clean(projectPath))
	return out
}

// InProject reports whether projectPath is already being expanded by an
// enclosing project.
func (c InstanceContext) InProject(projectPath string) bool {
	return slices.Contains(c.projectChain, filepath.Clean(projectPath))
}

// ProjectChain returns the project files being expanded, outermost first.
func (c InstanceContext) ProjectChain() []string {
	return slices.Clone(c.projectChain)
}

// Package fileutil discovers files on disk.
//
// ScanDirectory walks a directory tree with suffix, glob, depth and
// exclusion filters and returns sorted absolute paths. Errors on individual
// entries are collected in the result instead of aborting the walk.
// Hidden directories (names starting with ".") are always skipped.
//
// FindProjectFiles is the scan used by "treesync validate <dir>": every
// *.project.json below the directory, ignoring node_modules.
package fileutil

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/harrison/treesync/internal/config"
)

// executeCommand runs the root command with args and returns stdout, stderr
// and the execution error.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeFiles creates files relative to dir
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

// newProjectDir creates a temp directory with a valid default project and
// isolates history from TREESYNC_HOME.
func newProjectDir(t *testing.T) string {
	t.Helper()
	t.Setenv(config.HomeEnv, "")

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"default.project.json": `{
  "name": "Demo",
  "tree": {
    "$className": "Folder",
    "Greeting": { "$path": "hello.txt" },
    "Settings": {
      "$className": "Configuration",
      "$properties": { "Name": "ignored" }
    }
  }
}`,
		"hello.txt": "hi",
	})
	return dir
}

const conflictProject = `{
  "name": "Broken",
  "tree": {
    "$className": "Folder",
    "Bad": { "$className": "Part", "$path": "hello.txt" }
  }
}`

// chdir changes the working directory to dir and restores it when the test
// finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}

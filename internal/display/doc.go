// Package display formats user-facing CLI output: warning blocks and
// pass/fail status lines.
//
// Colors come from fatih/color and are only emitted when the destination is
// a terminal, so output captured in files or tests stays plain text:
//
//	display.Warning{
//	    Title:      "No project files found in places/",
//	    Suggestion: "Project files must end in .project.json",
//	}.Display(os.Stdout)
//
//	display.Pass(os.Stdout, "%s is valid", path)
//	display.Fail(os.Stdout, "%s: %v", path, err)
package display

package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/treesync/internal/models"
	"github.com/harrison/treesync/internal/project"
	"github.com/harrison/treesync/internal/variant"
	"github.com/harrison/treesync/internal/vfs"
)

type recordingLogger struct {
	warnings []string
	debugs   []string
}

func (l *recordingLogger) LogWarn(message string)  { l.warnings = append(l.warnings, message) }
func (l *recordingLogger) LogDebug(message string) { l.debugs = append(l.debugs, message) }

// newTestSnapshotter loads files, keyed by absolute path, into a MemoryFS.
func newTestSnapshotter(t *testing.T, files map[string]string) (*Snapshotter, *recordingLogger) {
	t.Helper()
	fs := vfs.NewMemoryFS()
	for path, contents := range files {
		require.NoError(t, fs.Load(path, vfs.File(contents)))
	}
	logger := &recordingLogger{}
	return New(fs, nil, logger), logger
}

func snapshotProject(t *testing.T, files map[string]string, path string) (*models.InstanceSnapshot, *recordingLogger) {
	t.Helper()
	s, logger := newTestSnapshotter(t, files)
	snap, err := s.SnapshotProject(models.InstanceContext{}, path)
	require.NoError(t, err)
	require.NotNil(t, snap)
	return snap, logger
}

func childNames(snap *models.InstanceSnapshot) []string {
	names := make([]string, 0, len(snap.Children))
	for _, c := range snap.Children {
		names = append(names, c.Name)
	}
	return names
}

func TestProjectFromDirectFile(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo/hello.project.json": `{"name": "direct-project", "tree": {"$className": "Model"}}`,
	}, "/foo/hello.project.json")

	assert.Equal(t, "direct-project", snap.Name)
	assert.Equal(t, "Model", snap.ClassName)
	assert.Empty(t, snap.Properties)
	assert.Empty(t, snap.Children)
	assert.True(t, snap.Metadata.IgnoreUnknownInstances)
	assert.Equal(t, models.FilePathSource("/foo/hello.project.json"), snap.Metadata.InstigatingSource)
	assert.Equal(t, []string{"/foo/hello.project.json"}, snap.Metadata.RelevantPaths)
}

func TestProjectDefaultName(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo.project.json": `{"tree": {"$className": "Model"}}`,
	}, "/foo.project.json")

	assert.Equal(t, "foo", snap.Name)
}

func TestProjectProperties(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"resolved", `{"String": "Hello, world!"}`},
		{"unresolved", `"Hello, world!"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, _ := snapshotProject(t, map[string]string{
				"/foo.project.json": fmt.Sprintf(`{
					"name": "properties",
					"tree": {"$className": "StringValue", "$properties": {"Value": %s}}
				}`, tt.value),
			}, "/foo.project.json")

			assert.Equal(t, map[string]variant.Variant{"Value": variant.String("Hello, world!")}, snap.Properties)
		})
	}
}

func TestProjectWithChildren(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo.project.json": `{
			"name": "children",
			"tree": {
				"$className": "Folder",
				"Child": {"$className": "Model"}
			}
		}`,
	}, "/foo.project.json")

	require.Len(t, snap.Children, 1)
	child := snap.Children[0]
	assert.Equal(t, "Child", child.Name)
	assert.Equal(t, "Model", child.ClassName)
	assert.True(t, child.Metadata.IgnoreUnknownInstances)

	src := child.Metadata.InstigatingSource
	require.NotNil(t, src)
	assert.Equal(t, models.SourceProjectNode, src.Kind)
	assert.Equal(t, "/foo.project.json", src.Path)
	assert.Equal(t, "Child", src.InstanceName)
	assert.Equal(t, "Folder", src.ParentClass)
	assert.Equal(t, "Model", src.Node.ClassName)
	assert.Empty(t, child.Metadata.RelevantPaths)
}

func TestProjectPathToText(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{"name": "path-project", "tree": {"$path": "other.txt"}}`,
		"/foo/other.txt":            "Hello, world!",
	}, "/foo/default.project.json")

	assert.Equal(t, "path-project", snap.Name)
	assert.Equal(t, "StringValue", snap.ClassName)
	assert.Equal(t, variant.String("Hello, world!"), snap.Properties["Value"])
	assert.False(t, snap.Metadata.IgnoreUnknownInstances)
	assert.Equal(t, []string{"/foo/other.txt", "/foo/default.project.json"}, snap.Metadata.RelevantPaths)
	assert.Equal(t, models.FilePathSource("/foo/default.project.json"), snap.Metadata.InstigatingSource)
}

func TestProjectPathToProject(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{"name": "path-project", "tree": {"$path": "other.project.json"}}`,
		"/foo/other.project.json": `{
			"name": "other-project",
			"tree": {
				"$className": "Model",
				"SomeChild": {"$className": "Model"}
			}
		}`,
	}, "/foo/default.project.json")

	assert.Equal(t, "path-project", snap.Name)
	assert.Equal(t, "Model", snap.ClassName)
	assert.Equal(t, []string{"SomeChild"}, childNames(snap))
	assert.Equal(t, []string{"/foo/other.project.json", "/foo/default.project.json"}, snap.Metadata.RelevantPaths)
}

func TestProjectPathPropertyOverrides(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{
			"name": "path-property-override",
			"tree": {"$path": "value.project.json", "$properties": {"Value": "Changed"}}
		}`,
		"/foo/value.project.json": `{
			"name": "value",
			"tree": {"$className": "StringValue", "$properties": {"Value": "Original"}}
		}`,
	}, "/foo/default.project.json")

	assert.Equal(t, "StringValue", snap.ClassName)
	assert.Equal(t, variant.String("Changed"), snap.Properties["Value"])
}

func TestProjectOptionalPath(t *testing.T) {
	snap, logger := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{
			"name": "optional",
			"tree": {
				"$className": "Folder",
				"Missing": {"$path": {"optional": "missing.lua"}},
				"Present": {"$path": {"optional": "present.lua"}}
			}
		}`,
		"/foo/present.lua": "return {}",
	}, "/foo/default.project.json")

	assert.Equal(t, []string{"Present"}, childNames(snap))
	assert.Equal(t, "ModuleScript", snap.Children[0].ClassName)
	assert.NotEmpty(t, logger.debugs)
}

func TestProjectOptionalPathAtRoot(t *testing.T) {
	s, _ := newTestSnapshotter(t, map[string]string{
		"/foo/default.project.json": `{"name": "gone", "tree": {"$path": {"optional": "missing"}}}`,
	})

	snap, err := s.SnapshotProject(models.InstanceContext{}, "/foo/default.project.json")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestProjectResolutionErrors(t *testing.T) {
	tests := []struct {
		name  string
		tree  string
		files map[string]string
		check func(t *testing.T, err error)
	}{
		{
			name: "required path missing",
			tree: `{"$className": "Folder", "Child": {"$path": "missing.lua"}}`,
			check: func(t *testing.T, err error) {
				var target *UnresolvedPathError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "Child", target.InstanceName)
				assert.Equal(t, "missing.lua", target.Path)
				assert.Equal(t, "/foo/default.project.json", target.ProjectPath)
			},
		},
		{
			name:  "explicit class conflicts with script",
			tree:  `{"$className": "Model", "$path": "init.lua"}`,
			files: map[string]string{"/foo/init.lua": "return nil"},
			check: func(t *testing.T, err error) {
				var target *ConflictError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "Model", target.ProjectClass)
				assert.Equal(t, "ModuleScript", target.PathClass)
				assert.Equal(t, "init.lua", target.FilesystemPath)
				assert.Contains(t, err.Error(), "$path must refer to a Folder")
			},
		},
		{
			name: "no class information",
			tree: `{"$className": "Folder", "Stuff": {}}`,
			check: func(t *testing.T, err error) {
				var target *MissingInformationError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "Stuff", target.InstanceName)
			},
		},
		{
			name: "property type mismatch",
			tree: `{"$className": "StringValue", "$properties": {"Value": true}}`,
			check: func(t *testing.T, err error) {
				var target *PropertyResolutionError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "Value", target.Property)
				assert.Equal(t, "StringValue", target.ClassName)
				assert.ErrorIs(t, err, variant.ErrTypeMismatch)
			},
		},
		{
			name: "unknown property",
			tree: `{"$className": "Folder", "$properties": {"Bogus": "x"}}`,
			check: func(t *testing.T, err error) {
				var target *PropertyResolutionError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "Bogus", target.Property)
			},
		},
		{
			name: "error deep in the tree aborts the whole project",
			tree: `{"$className": "Folder", "A": {"$className": "Folder", "B": {"$className": "Folder", "C": {}}}}`,
			check: func(t *testing.T, err error) {
				var target *MissingInformationError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "C", target.InstanceName)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{
				"/foo/default.project.json": fmt.Sprintf(`{"name": "errors", "tree": %s}`, tt.tree),
			}
			for path, contents := range tt.files {
				files[path] = contents
			}
			s, _ := newTestSnapshotter(t, files)

			snap, err := s.SnapshotProject(models.InstanceContext{}, "/foo/default.project.json")
			require.Error(t, err)
			assert.Nil(t, snap)
			tt.check(t, err)
		})
	}
}

func TestProjectExplicitClassOverFolderPath(t *testing.T) {
	snap, logger := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{"name": "model", "tree": {"$className": "Model", "$path": "src"}}`,
		"/foo/src/a.lua":            "return 1",
	}, "/foo/default.project.json")

	assert.Equal(t, "Model", snap.ClassName)
	assert.Equal(t, []string{"a"}, childNames(snap))
	assert.Empty(t, logger.warnings)
}

func TestProjectServiceInference(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/game/default.project.json": `{
			"name": "game",
			"tree": {
				"$className": "DataModel",
				"ReplicatedStorage": {"$path": "shared"},
				"HttpService": {},
				"StarterPlayer": {
					"StarterPlayerScripts": {"$path": "client"}
				}
			}
		}`,
		"/game/shared/util.lua":        "return {}",
		"/game/client/main.client.lua": "print('hi')",
	}, "/game/default.project.json")

	require.Equal(t, []string{"ReplicatedStorage", "HttpService", "StarterPlayer"}, childNames(snap))

	storage := snap.Child("ReplicatedStorage")
	assert.Equal(t, "ReplicatedStorage", storage.ClassName)
	assert.False(t, storage.Metadata.IgnoreUnknownInstances)
	assert.Equal(t, []string{"util"}, childNames(storage))

	http := snap.Child("HttpService")
	assert.Equal(t, "HttpService", http.ClassName)
	assert.True(t, http.Metadata.IgnoreUnknownInstances)

	scripts := snap.Child("StarterPlayer").Child("StarterPlayerScripts")
	require.NotNil(t, scripts)
	assert.Equal(t, "StarterPlayerScripts", scripts.ClassName)
	assert.Equal(t, "LocalScript", scripts.Child("main").ClassName)
	assert.Equal(t, "StarterPlayer", scripts.Metadata.InstigatingSource.ParentClass)
}

func TestProjectStructuralPropertiesIgnored(t *testing.T) {
	snap, logger := snapshotProject(t, map[string]string{
		"/foo.project.json": `{
			"name": "structural",
			"tree": {
				"$className": "StringValue",
				"$properties": {"Name": "Other", "Parent": "Nope", "Value": "kept"}
			}
		}`,
	}, "/foo.project.json")

	assert.Equal(t, "structural", snap.Name)
	assert.Equal(t, map[string]variant.Variant{"Value": variant.String("kept")}, snap.Properties)
	require.Len(t, logger.warnings, 2)
	assert.Contains(t, logger.warnings[0], `"Name"`)
	assert.Contains(t, logger.warnings[1], `"Parent"`)
}

func TestProjectIgnoreUnknownInstances(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{
			"name": "flags",
			"tree": {
				"$className": "Folder",
				"NoPath": {"$className": "Folder"},
				"WithPath": {"$path": "src"},
				"ExplicitTrue": {"$path": "src", "$ignoreUnknownInstances": true},
				"ExplicitFalse": {"$className": "Folder", "$ignoreUnknownInstances": false},
				"Inherited": {"$path": "nested.project.json"}
			}
		}`,
		"/foo/src/a.txt": "a",
		"/foo/nested.project.json": `{
			"name": "nested",
			"tree": {"$className": "Folder", "$path": "src", "$ignoreUnknownInstances": true}
		}`,
	}, "/foo/default.project.json")

	want := map[string]bool{
		"NoPath":        true,
		"WithPath":      false,
		"ExplicitTrue":  true,
		"ExplicitFalse": false,
		"Inherited":     true,
	}
	for name, flag := range want {
		assert.Equal(t, flag, snap.Child(name).Metadata.IgnoreUnknownInstances, name)
	}
}

func TestProjectChildOrdering(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{
			"name": "ordering",
			"tree": {
				"$path": "src",
				"zeta": {"$className": "Folder"},
				"alpha": {"$className": "Folder"},
				"mid": {"$className": "Folder"}
			}
		}`,
		"/foo/src/b.lua": "",
		"/foo/src/a.lua": "",
	}, "/foo/default.project.json")

	assert.Equal(t, []string{"a", "b", "zeta", "alpha", "mid"}, childNames(snap))
}

func TestProjectIncludeCycle(t *testing.T) {
	s, _ := newTestSnapshotter(t, map[string]string{
		"/a/default.project.json": `{"name": "a", "tree": {"$path": "b.project.json"}}`,
		"/a/b.project.json":       `{"name": "b", "tree": {"$className": "Folder", "Back": {"$path": "."}}}`,
	})

	_, err := s.SnapshotProject(models.InstanceContext{}, "/a/default.project.json")
	var target *IncludeCycleError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, []string{"/a/default.project.json", "/a/b.project.json", "/a/default.project.json"}, target.Chain)
}

func TestProjectSameFileTwiceIsNotACycle(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/a/default.project.json": `{
			"name": "a",
			"tree": {
				"$className": "Folder",
				"First": {"$path": "shared.project.json"},
				"Second": {"$path": "shared.project.json"}
			}
		}`,
		"/a/shared.project.json": `{"name": "shared", "tree": {"$className": "Model"}}`,
	}, "/a/default.project.json")

	assert.Equal(t, []string{"First", "Second"}, childNames(snap))
}

func TestProjectGlobIgnorePaths(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{
			"name": "globs",
			"globIgnorePaths": ["**/*.spec.lua"],
			"tree": {"$path": "src"}
		}`,
		"/foo/src/a.lua":           "",
		"/foo/src/a.spec.lua":      "",
		"/foo/src/deep/b.spec.lua": "",
		"/foo/src/deep/b.lua":      "",
	}, "/foo/default.project.json")

	assert.Equal(t, []string{"a", "deep"}, childNames(snap))
	assert.Equal(t, []string{"b"}, childNames(snap.Child("deep")))
}

func TestProjectGlobRulesDoNotLeakToSiblings(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{
			"name": "outer",
			"tree": {
				"$className": "Folder",
				"Inner": {"$path": "inner"},
				"Plain": {"$path": "plain"}
			}
		}`,
		"/foo/inner/default.project.json": `{
			"name": "inner",
			"globIgnorePaths": ["**/*.txt"],
			"tree": {"$path": "src"}
		}`,
		"/foo/inner/src/a.txt": "ignored",
		"/foo/plain/a.txt":     "kept",
	}, "/foo/default.project.json")

	assert.Empty(t, snap.Child("Inner").Children)
	assert.Equal(t, []string{"a"}, childNames(snap.Child("Plain")))
}

func TestProjectDeepTree(t *testing.T) {
	const depth = 4000

	var b strings.Builder
	b.WriteString(`{"name": "deep", "tree": `)
	for i := 0; i < depth; i++ {
		fmt.Fprintf(&b, `{"$className": "Folder", "n%d": `, i)
	}
	b.WriteString(`{"$className": "Model"}`)
	b.WriteString(strings.Repeat("}", depth))
	b.WriteString("}")

	start := time.Now()
	snap, _ := snapshotProject(t, map[string]string{"/deep.project.json": b.String()}, "/deep.project.json")
	assert.Less(t, time.Since(start), 5*time.Second, "deep trees must load in linear time")

	assert.Equal(t, depth+1, snap.Count())
	leaf := snap
	for len(leaf.Children) > 0 {
		leaf = leaf.Children[0]
	}
	assert.Equal(t, "Model", leaf.ClassName)
	assert.Equal(t, fmt.Sprintf("n%d", depth-1), leaf.Name)
}

func TestProjectNodeSourcesAreIndependent(t *testing.T) {
	s, _ := newTestSnapshotter(t, nil)
	node := &project.ProjectNode{
		ClassName: "Folder",
		Children: []project.ProjectChild{
			{Name: "Inner", Node: &project.ProjectNode{
				ClassName: "Folder",
				Children: []project.ProjectChild{
					{Name: "Leaf", Node: &project.ProjectNode{ClassName: "Model"}},
				},
			}},
		},
	}

	snap, err := s.SnapshotProjectNode(models.InstanceContext{}, "/foo/default.project.json", "Root", node, "")
	require.NoError(t, err)

	node.ClassName = "Model"
	node.Children[0].Node.Children[0].Node.ClassName = "Part"

	rootSource := snap.Metadata.InstigatingSource.Node
	assert.Equal(t, "Folder", rootSource.ClassName)
	leafSource := rootSource.Children[0].Node.Children[0].Node
	assert.Equal(t, "Model", leafSource.ClassName)

	inner := snap.Child("Inner")
	require.NotNil(t, inner)
	assert.Same(t, rootSource.Children[0].Node, inner.Metadata.InstigatingSource.Node)
	assert.Equal(t, "Leaf", inner.Metadata.InstigatingSource.Node.Children[0].Name)
}

func TestProjectPathToFolderProjectMergesOuterNode(t *testing.T) {
	snap, _ := snapshotProject(t, map[string]string{
		"/foo/default.project.json": `{
			"name": "outer",
			"tree": {
				"$path": "inner.project.json",
				"$properties": {"Archivable": false},
				"OuterChild": {"$className": "Model"}
			}
		}`,
		"/foo/inner.project.json": `{
			"name": "inner",
			"tree": {"$className": "Folder", "SomeChild": {"$className": "Model"}}
		}`,
	}, "/foo/default.project.json")

	assert.Equal(t, "outer", snap.Name)
	assert.Equal(t, "Folder", snap.ClassName)
	assert.Equal(t, []string{"SomeChild", "OuterChild"}, childNames(snap))
	assert.Equal(t, "Model", snap.Child("SomeChild").ClassName)
	assert.Equal(t, "Model", snap.Child("OuterChild").ClassName)
	assert.Equal(t, variant.Bool(false), snap.Properties["Archivable"])
	assert.Equal(t, []string{"/foo/inner.project.json", "/foo/default.project.json"}, snap.Metadata.RelevantPaths)
}

func TestResnapshotProjectNode(t *testing.T) {
	s, _ := newTestSnapshotter(t, map[string]string{
		"/foo/default.project.json": `{
			"name": "resnapshot",
			"tree": {
				"$className": "DataModel",
				"ReplicatedStorage": {
					"$path": "shared",
					"Extra": {"$className": "StringValue", "$properties": {"Value": "x"}}
				}
			}
		}`,
		"/foo/shared/a.lua": "return 1",
	})

	root, err := s.SnapshotProject(models.InstanceContext{}, "/foo/default.project.json")
	require.NoError(t, err)
	original := root.Child("ReplicatedStorage")

	again, err := s.Resnapshot(original.Metadata.Context, original.Metadata.InstigatingSource)
	require.NoError(t, err)

	want, err := json.Marshal(original)
	require.NoError(t, err)
	got, err := json.Marshal(again)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestResnapshotProjectRoot(t *testing.T) {
	s, _ := newTestSnapshotter(t, map[string]string{
		"/foo/default.project.json": `{"name": "root", "tree": {"$className": "Model"}}`,
	})

	root, err := s.SnapshotProject(models.InstanceContext{}, "/foo/default.project.json")
	require.NoError(t, err)

	again, err := s.Resnapshot(root.Metadata.Context, root.Metadata.InstigatingSource)
	require.NoError(t, err, "the stored context must not already contain the project")
	assert.Equal(t, "root", again.Name)
}

func TestResnapshotWithoutSource(t *testing.T) {
	s, _ := newTestSnapshotter(t, nil)
	_, err := s.Resnapshot(models.InstanceContext{}, nil)
	assert.Error(t, err)
}

func TestProjectLoadErrorPropagates(t *testing.T) {
	s, _ := newTestSnapshotter(t, map[string]string{
		"/bad.project.json": `{"name": "bad"}`,
	})

	_, err := s.SnapshotProject(models.InstanceContext{}, "/bad.project.json")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "file was not a valid project"), err.Error())
	assert.False(t, errors.Is(err, variant.ErrTypeMismatch))
}

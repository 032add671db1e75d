package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/treesync/internal/project"
)

func TestPathIgnoreRulePasses(t *testing.T) {
	rule := PathIgnoreRule{Glob: "**/*.spec.lua", BasePath: "/game"}

	tests := []struct {
		path string
		want bool
	}{
		{"/game/src/thing.lua", true},
		{"/game/src/thing.spec.lua", false},
		{"/game/src/deep/er/x.spec.lua", false},
		{"/elsewhere/x.spec.lua", true},
		{"/gamer/x.spec.lua", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Passes(tt.path))
		})
	}
}

func TestContextCopyOnExtend(t *testing.T) {
	base := InstanceContext{}.AddPathIgnoreRules(PathIgnoreRule{Glob: "a/**", BasePath: "/p"})

	left := base.AddPathIgnoreRules(PathIgnoreRule{Glob: "left/**", BasePath: "/p"})
	right := base.AddPathIgnoreRules(PathIgnoreRule{Glob: "right/**", BasePath: "/p"})

	assert.Len(t, base.PathIgnoreRules(), 1)
	assert.Len(t, left.PathIgnoreRules(), 2)
	assert.Len(t, right.PathIgnoreRules(), 2)

	assert.True(t, left.ShouldIgnore("/p/left/x.lua"))
	assert.False(t, left.ShouldIgnore("/p/right/x.lua"), "siblings never see each other's rules")
	assert.True(t, right.ShouldIgnore("/p/right/x.lua"))
	assert.False(t, base.ShouldIgnore("/p/left/x.lua"))
	assert.True(t, base.ShouldIgnore("/p/a/b"))

	rules := left.PathIgnoreRules()
	rules[0].Glob = "mutated"
	assert.Equal(t, "a/**", left.PathIgnoreRules()[0].Glob)
}

func TestContextProjectChain(t *testing.T) {
	ctx := InstanceContext{}.EnterProject("/a/default.project.json")
	inner := ctx.EnterProject("/a/b/../other.project.json")

	assert.True(t, inner.InProject("/a/other.project.json"))
	assert.True(t, inner.InProject("/a/default.project.json"))
	assert.False(t, ctx.InProject("/a/other.project.json"))
	assert.Equal(t, []string{"/a/default.project.json", "/a/other.project.json"}, inner.ProjectChain())
}

func TestProjectNodeSourceKeepsCopy(t *testing.T) {
	node := &project.ProjectNode{ClassName: "Folder"}
	src := ProjectNodeSource("/p.project.json", "Root", node.Clone(), "DataModel")

	node.ClassName = "Model"
	assert.Equal(t, "Folder", src.Node.ClassName)
	assert.Equal(t, SourceProjectNode, src.Kind)
	assert.Equal(t, "project-node", src.Kind.String())
}

func TestInstigatingSourceJSON(t *testing.T) {
	out, err := json.Marshal(FilePathSource("/a.txt"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"FilePath": "/a.txt"}`, string(out))

	out, err = json.Marshal(ProjectNodeSource("/p.project.json", "Child", &project.ProjectNode{ClassName: "Model"}, "Folder"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ProjectNode": {
		"projectPath": "/p.project.json",
		"instanceName": "Child",
		"node": {"$className": "Model"},
		"parentClass": "Folder"
	}}`, string(out))
}

func TestSnapshotCountAndChild(t *testing.T) {
	snap := &InstanceSnapshot{
		Name: "root",
		Children: []*InstanceSnapshot{
			{Name: "a", Children: []*InstanceSnapshot{{Name: "a1"}}},
			{Name: "b"},
		},
	}

	assert.Equal(t, 4, snap.Count())
	assert.Equal(t, "b", snap.Child("b").Name)
	assert.Nil(t, snap.Child("zzz"))

	var empty *InstanceSnapshot
	assert.Equal(t, 0, empty.Count())
}

package snapshot

import "github.com/harrison/treesync/internal/reflection"

const (
	dataModelClass     = "DataModel"
	starterPlayerClass = "StarterPlayer"
)

// starterPlayerMembers are the children of StarterPlayer whose names are
// also their classes.
var starterPlayerMembers = map[string]bool{
	"StarterPlayerScripts":    true,
	"StarterCharacterScripts": true,
}

// ClassProvider reports metadata for known class names.
type ClassProvider interface {
	Class(name string) (*reflection.ClassDescriptor, bool)
}

// InferClassName guesses a class from a node's name and its parent's class.
// It returns "" when nothing can be inferred.
func InferClassName(classes ClassProvider, name, parentClass string) string {
	switch parentClass {
	case dataModelClass:
		class, ok := classes.Class(name)
		if ok && class.HasTag(reflection.TagService) {
			return name
		}
	case starterPlayerClass:
		if starterPlayerMembers[name] {
			return name
		}
	}
	return ""
}

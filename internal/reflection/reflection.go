// Package reflection is the read-only class metadata provider. It answers
// which classes exist, which of them are services, and what type each
// property has.
package reflection

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/harrison/treesync/internal/variant"
)

//go:embed database.yaml
var databaseYAML []byte

// ClassTag is a structural tag attached to a class.
type ClassTag string

// TagService marks singleton service classes that live directly under the
// DataModel.
const TagService ClassTag = "Service"

var (
	// ErrUnknownClass is returned for class names missing from the database.
	ErrUnknownClass = errors.New("unknown class")
	// ErrUnknownProperty is returned when neither a class nor any of its
	// superclasses declares a property.
	ErrUnknownProperty = errors.New("unknown property")
)

// PropertyDescriptor describes one property of a class.
type PropertyDescriptor struct {
	Type variant.Type `yaml:"type"`
	Enum string       `yaml:"enum,omitempty"`
}

// ClassDescriptor describes one class.
type ClassDescriptor struct {
	Name       string                        `yaml:"-"`
	Superclass string                        `yaml:"superclass,omitempty"`
	Tags       []ClassTag                    `yaml:"tags,omitempty"`
	Properties map[string]PropertyDescriptor `yaml:"properties,omitempty"`
}

// HasTag reports whether the class carries tag.
func (c *ClassDescriptor) HasTag(tag ClassTag) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Database holds class and enum metadata.
type Database struct {
	Classes map[string]*ClassDescriptor  `yaml:"classes"`
	Enums   map[string]map[string]uint32 `yaml:"enums"`
}

// Load parses a YAML database and checks that every superclass, property
// type and enum reference resolves.
func Load(data []byte) (*Database, error) {
	var db Database
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse reflection database: %w", err)
	}

	for name, class := range db.Classes {
		if class == nil {
			class = &ClassDescriptor{}
			db.Classes[name] = class
		}
		class.Name = name

		if class.Superclass != "" {
			if _, ok := db.Classes[class.Superclass]; !ok {
				return nil, fmt.Errorf("class %s: superclass %s is not defined", name, class.Superclass)
			}
		}
		for prop, desc := range class.Properties {
			if !desc.Type.IsKnown() {
				return nil, fmt.Errorf("class %s: property %s has unknown type %q", name, prop, desc.Type)
			}
			if desc.Type == variant.TypeEnum {
				if _, ok := db.Enums[desc.Enum]; !ok {
					return nil, fmt.Errorf("class %s: property %s refers to undefined enum %q", name, prop, desc.Enum)
				}
			}
		}
	}

	return &db, nil
}

var (
	defaultOnce sync.Once
	defaultDB   *Database
)

// Default returns the embedded database. The embedded file is part of the
// binary, so a parse failure is a programming error and panics.
func Default() *Database {
	defaultOnce.Do(func() {
		db, err := Load(databaseYAML)
		if err != nil {
			panic(err)
		}
		defaultDB = db
	})
	return defaultDB
}

// Class looks up a class by name.
func (db *Database) Class(name string) (*ClassDescriptor, bool) {
	class, ok := db.Classes[name]
	return class, ok
}

// FindProperty walks className and its superclasses looking for property.
func (db *Database) FindProperty(className, property string) (*PropertyDescriptor, error) {
	class, ok := db.Classes[className]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownClass, className)
	}

	// Superclass chains are validated by Load but not checked for cycles.
	for steps := 0; class != nil && steps <= len(db.Classes); steps++ {
		if desc, ok := class.Properties[property]; ok {
			return &desc, nil
		}
		if class.Superclass == "" {
			break
		}
		class = db.Classes[class.Superclass]
	}

	return nil, fmt.Errorf("%w %q on class %q", ErrUnknownProperty, property, className)
}

// PropertyInfo implements variant.PropertyLookup.
func (db *Database) PropertyInfo(className, property string) (variant.PropertyInfo, error) {
	desc, err := db.FindProperty(className, property)
	if err != nil {
		return variant.PropertyInfo{}, err
	}
	return variant.PropertyInfo{Type: desc.Type, Enum: desc.Enum}, nil
}

// EnumItem implements variant.PropertyLookup.
func (db *Database) EnumItem(enum, item string) (uint32, bool) {
	items, ok := db.Enums[enum]
	if !ok {
		return 0, false
	}
	value, ok := items[item]
	return value, ok
}

// Package schema loads the message-schema models imported by service
// definitions. A model groups message, enum and entity types under one
// namespace and one factory id.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	"github.com/drblury/topicflow/internal/runtime/jsoncodec"
)

// Kind classifies a type declared by a model.
type Kind string

const (
	KindMessage Kind = "message"
	KindEnum    Kind = "enum"
	KindEntity  Kind = "entity"
)

// Field is a declared message field. Field names double as key variables in
// channel key templates.
type Field struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// Type is a single type declared by a model.
type Type struct {
	Name     string  `yaml:"name" json:"name"`
	Kind     Kind    `yaml:"kind" json:"kind"`
	ID       int32   `yaml:"id" json:"id"`
	Abstract bool    `yaml:"abstract" json:"abstract"`
	Fields   []Field `yaml:"fields" json:"fields"`

	model *Model
}

// Model returns the model declaring t.
func (t *Type) Model() *Model { return t.model }

// IsMessage reports whether t can be routed.
func (t *Type) IsMessage() bool { return t.Kind == KindMessage }

// FullName is the namespace-qualified type name.
func (t *Type) FullName() string {
	if t.model == nil || t.model.Namespace == "" {
		return t.Name
	}
	return t.model.Namespace + "." + t.Name
}

// MessageID combines the model factory id with the type id.
func (t *Type) MessageID() contracts.MessageID {
	var factoryID int32
	if t.model != nil {
		factoryID = t.model.FactoryID
	}
	return contracts.NewMessageID(factoryID, t.ID)
}

// HasField reports whether the type declares a field with the given name.
func (t *Type) HasField(name string) bool {
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Model is one imported message schema.
type Model struct {
	Namespace string  `yaml:"namespace" json:"namespace"`
	Name      string  `yaml:"name" json:"name"`
	FactoryID int32   `yaml:"factoryId" json:"factoryId"`
	Types     []*Type `yaml:"types" json:"types"`

	// Source is the file the model was loaded from, if any.
	Source string `yaml:"-" json:"-"`

	byName map[string]*Type
}

// QualifiedName is namespace + "." + name, or the bare name when the model has
// no namespace.
func (m *Model) QualifiedName() string {
	if m.Namespace == "" {
		return m.Name
	}
	return m.Namespace + "." + m.Name
}

// Lookup returns the type with the given simple name, of any kind.
func (m *Model) Lookup(simpleName string) (*Type, bool) {
	t, ok := m.byName[simpleName]
	return t, ok
}

// Message returns the message type with the given simple name. Non-message
// types with the same name are ignored.
func (m *Model) Message(simpleName string) (*Type, bool) {
	t, ok := m.byName[simpleName]
	if !ok || !t.IsMessage() {
		return nil, false
	}
	return t, true
}

// Messages returns the message types in declaration order.
func (m *Model) Messages() []*Type {
	out := make([]*Type, 0, len(m.Types))
	for _, t := range m.Types {
		if t.IsMessage() {
			out = append(out, t)
		}
	}
	return out
}

// index links types back to m and validates the declarations.
func (m *Model) index() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("model name is required")
	}
	m.byName = make(map[string]*Type, len(m.Types))
	for i, t := range m.Types {
		if t == nil || t.Name == "" {
			return fmt.Errorf("type %d of model %s has no name", i, m.Name)
		}
		if t.Kind == "" {
			t.Kind = KindMessage
		}
		switch t.Kind {
		case KindMessage, KindEnum, KindEntity:
		default:
			return fmt.Errorf("type %s of model %s has unknown kind %q", t.Name, m.Name, t.Kind)
		}
		if _, dup := m.byName[t.Name]; dup {
			return fmt.Errorf("type %s declared twice in model %s", t.Name, m.Name)
		}
		t.model = m
		m.byName[t.Name] = t
	}
	return nil
}

// Format is the encoding of a document.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatOf picks the document format from a file extension.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Decode unmarshals a YAML or JSON document into v, wrapping failures in a
// ModelParseError naming source.
func Decode(data []byte, format Format, source string, v any) error {
	var err error
	switch format {
	case FormatJSON:
		err = jsoncodec.Unmarshal(data, v)
	default:
		err = yaml.Unmarshal(data, v)
	}
	if err != nil {
		return &errspkg.ModelParseError{Source: source, Cause: err}
	}
	return nil
}

// Parse decodes and validates a model document.
func Parse(data []byte, format Format, source string) (*Model, error) {
	m := &Model{}
	if err := Decode(data, format, source, m); err != nil {
		return nil, err
	}
	m.Source = source
	if err := m.index(); err != nil {
		return nil, &errspkg.ModelParseError{Source: source, Cause: err}
	}
	return m, nil
}

// LoadFile reads and parses the model stored at path.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errspkg.ModelParseError{Source: path, Cause: err}
	}
	return Parse(data, FormatOf(path), path)
}

// New builds a model programmatically, as generated code does.
func New(namespace, name string, factoryID int32, types ...*Type) (*Model, error) {
	m := &Model{Namespace: namespace, Name: name, FactoryID: factoryID, Types: types}
	if err := m.index(); err != nil {
		return nil, &errspkg.ModelParseError{Source: m.QualifiedName(), Cause: err}
	}
	return m, nil
}

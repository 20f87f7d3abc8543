package servicedef

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	"github.com/drblury/topicflow/internal/runtime/logging"
	"github.com/drblury/topicflow/internal/runtime/schema"
	"github.com/drblury/topicflow/internal/runtime/topic"
)

type document struct {
	Namespace          string       `yaml:"namespace" json:"namespace"`
	Name               string       `yaml:"name" json:"name"`
	PrefixChannelNames *bool        `yaml:"prefixChannelNames" json:"prefixChannelNames"`
	Models             []modelRef   `yaml:"models" json:"models"`
	Channels           []channelDoc `yaml:"channels" json:"channels"`
	Roles              []roleDoc    `yaml:"roles" json:"roles"`
}

type modelRef struct {
	File string `yaml:"file" json:"file"`
}

type channelDoc struct {
	Name    string  `yaml:"name" json:"name"`
	Bus     string  `yaml:"bus" json:"bus"`
	Key     string  `yaml:"key" json:"key"`
	Default bool    `yaml:"default" json:"default"`
	Qos     string  `yaml:"qos" json:"qos"`
	Filter  *string `yaml:"filter" json:"filter"`
}

type roleDoc struct {
	Name string       `yaml:"name" json:"name"`
	To   []bindingDoc `yaml:"to" json:"to"`
}

type bindingDoc struct {
	Message string `yaml:"message" json:"message"`
	Model   string `yaml:"model" json:"model"`
	Channel string `yaml:"channel" json:"channel"`
}

// Loader turns service documents into Service models. A Loader caches the
// schema models it reads, so services importing the same file share it.
type Loader struct {
	logger      logging.ServiceLogger
	schemaPaths []string
	prefix      *bool
	defaultBus  string
	models      map[string]*schema.Model
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithPrefixChannelNames overrides the prefixChannelNames attribute of every
// loaded document.
func WithPrefixChannelNames(prefix bool) LoaderOption {
	return func(l *Loader) { l.prefix = &prefix }
}

// WithSchemaPaths adds directories searched for model files that are not
// found next to the service document.
func WithSchemaPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.schemaPaths = append(l.schemaPaths, paths...) }
}

// WithDefaultBus sets the bus of channels that do not name one.
func WithDefaultBus(bus string) LoaderOption {
	return func(l *Loader) {
		if bus != "" {
			l.defaultBus = bus
		}
	}
}

// NewLoader returns a Loader configured by opts. A nil logger discards
// warnings.
func NewLoader(logger logging.ServiceLogger, opts ...LoaderOption) *Loader {
	l := &Loader{
		logger:     logging.OrNop(logger),
		defaultBus: DefaultBus,
		models:     map[string]*schema.Model{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the service document stored at path.
func (l *Loader) Load(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errspkg.ModelParseError{Source: path, Cause: err}
	}
	return l.LoadDocument(data, schema.FormatOf(path), path, filepath.Dir(path))
}

// LoadAll loads several service documents. Two documents defining the same
// service are rejected.
func (l *Loader) LoadAll(paths []string) ([]*Service, error) {
	services := make([]*Service, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		svc, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[svc.FullName()]; dup {
			return nil, &errspkg.ModelParseError{
				Source: path,
				Cause:  fmt.Errorf("service %s already defined by %s", svc.FullName(), prev),
			}
		}
		seen[svc.FullName()] = path
		services = append(services, svc)
	}
	return services, nil
}

// LoadDocument parses one service document. Relative model files are
// resolved against dir first, then against the schema paths.
func (l *Loader) LoadDocument(data []byte, format schema.Format, source, dir string) (*Service, error) {
	var doc document
	if err := schema.Decode(data, format, source, &doc); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, &errspkg.ModelParseError{Source: source, Cause: errors.New("service name is required")}
	}

	prefix := doc.PrefixChannelNames != nil && *doc.PrefixChannelNames
	if l.prefix != nil {
		prefix = *l.prefix
	}
	svc := newService(doc.Namespace, doc.Name, prefix)
	svc.Source = source
	log := l.logger.With(logging.LogFields{"service": svc.FullName(), "source": source})

	if err := l.loadModels(svc, doc.Models, dir); err != nil {
		return nil, err
	}
	if err := l.loadChannels(svc, doc.Channels, source); err != nil {
		return nil, err
	}
	if err := l.loadRoles(svc, doc.Roles, source); err != nil {
		return nil, err
	}

	log.Debug("Service definition loaded", logging.LogFields{
		"models":   len(svc.Models),
		"channels": len(svc.Channels),
		"roles":    len(svc.Roles),
	})
	return svc, nil
}

// AddModel imports an already built model into svc, as generated code does.
func AddModel(svc *Service, m *schema.Model) error {
	name := m.QualifiedName()
	if _, dup := svc.Models[name]; dup {
		return &errspkg.DuplicateModelError{Service: svc.FullName(), Model: name}
	}
	svc.Models[name] = m
	return nil
}

func (l *Loader) loadModels(svc *Service, refs []modelRef, dir string) error {
	for _, ref := range refs {
		path, err := l.findModel(ref.File, dir)
		if err != nil {
			return &errspkg.ModelParseError{Source: ref.File, Cause: err}
		}
		m, ok := l.models[path]
		if !ok {
			if m, err = schema.LoadFile(path); err != nil {
				return err
			}
			l.models[path] = m
		}
		if err := AddModel(svc, m); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) findModel(file, dir string) (string, error) {
	if strings.TrimSpace(file) == "" {
		return "", errors.New("model file is required")
	}
	if filepath.IsAbs(file) {
		return file, nil
	}
	candidates := make([]string, 0, len(l.schemaPaths)+1)
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, file))
	}
	for _, p := range l.schemaPaths {
		candidates = append(candidates, filepath.Join(p, file))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			abs, absErr := filepath.Abs(c)
			if absErr != nil {
				return c, nil
			}
			return abs, nil
		}
	}
	return "", fmt.Errorf("model file %s not found in %v", file, candidates)
}

func (l *Loader) loadChannels(svc *Service, docs []channelDoc, source string) error {
	for _, cd := range docs {
		if strings.TrimSpace(cd.Name) == "" {
			return &errspkg.ModelParseError{Source: source, Cause: errors.New("channel name is required")}
		}
		if cd.Key != "" {
			if _, err := topic.ParseTemplate(cd.Key); err != nil {
				return &errspkg.ModelParseError{Source: source, Cause: fmt.Errorf("channel %s: %w", cd.Name, err)}
			}
		}
		qos, err := contracts.ParseQos(cd.Qos)
		if err != nil {
			return &errspkg.ModelParseError{Source: source, Cause: fmt.Errorf("channel %s: %w", cd.Name, err)}
		}

		ch, exists := svc.Channels[cd.Name]
		if exists {
			if ch.Key != cd.Key {
				return &errspkg.ConflictingChannelDefinitionError{
					Service:   svc.FullName(),
					Channel:   cd.Name,
					FirstKey:  ch.Key,
					SecondKey: cd.Key,
				}
			}
			if ignored := ignoredChannelAttrs(ch, cd, qos); len(ignored) > 0 {
				l.logger.Warn("Channel declared again with different attributes, keeping first declaration", logging.LogFields{
					"service": svc.FullName(),
					"channel": cd.Name,
					"ignored": ignored,
					"source":  source,
				})
			}
		} else {
			bus := cd.Bus
			if bus == "" {
				bus = l.defaultBus
			}
			ch = &Channel{Service: svc, Name: cd.Name, Bus: bus, Key: cd.Key, Qos: qos}
			if cd.Filter != nil {
				ch.Filter, ch.HasFilter = *cd.Filter, true
			}
			svc.Channels[cd.Name] = ch
		}

		if cd.Default {
			if svc.DefaultChannel != nil && svc.DefaultChannel != ch {
				return &errspkg.DuplicateDefaultChannelError{
					Service: svc.FullName(),
					First:   svc.DefaultChannel.Name,
					Second:  ch.Name,
				}
			}
			ch.Default = true
			svc.DefaultChannel = ch
		}
	}
	return nil
}

// ignoredChannelAttrs lists the attributes cd sets explicitly that differ
// from the first declaration ch.
func ignoredChannelAttrs(ch *Channel, cd channelDoc, qos contracts.Qos) []string {
	var ignored []string
	if cd.Bus != "" && cd.Bus != ch.Bus {
		ignored = append(ignored, "bus")
	}
	if cd.Qos != "" && qos != ch.Qos {
		ignored = append(ignored, "qos")
	}
	if cd.Filter != nil && (!ch.HasFilter || *cd.Filter != ch.Filter) {
		ignored = append(ignored, "filter")
	}
	return ignored
}

func (l *Loader) loadRoles(svc *Service, docs []roleDoc, source string) error {
	ids := map[contracts.MessageID]string{}
	for _, rd := range docs {
		if strings.TrimSpace(rd.Name) == "" {
			return &errspkg.ModelParseError{Source: source, Cause: errors.New("role name is required")}
		}
		role, ok := svc.Roles[rd.Name]
		if !ok {
			role = &Role{Name: rd.Name, Bindings: map[string]*Binding{}}
			svc.Roles[rd.Name] = role
		}
		for _, bd := range rd.To {
			msg, err := svc.ResolveMessage(bd.Message, bd.Model)
			if err != nil {
				return err
			}
			ch, err := svc.ResolveChannel(msg, bd.Channel)
			if err != nil {
				return err
			}
			fullName := msg.FullName()
			id := msg.MessageID()
			if existing, seen := ids[id]; seen && existing != fullName {
				return &errspkg.FactoryIDCollisionError{ID: uint64(id), Existing: existing, Incoming: fullName}
			}
			ids[id] = fullName

			if prev, dup := role.Bindings[fullName]; dup && prev.Channel != ch {
				l.logger.Warn("Message bound twice in role, keeping last binding", logging.LogFields{
					"service": svc.FullName(),
					"role":    role.Name,
					"message": fullName,
					"channel": ch.Name,
				})
			}
			role.Bindings[fullName] = &Binding{Role: role, Message: msg, Channel: ch, MessageType: fullName}
		}
	}
	return nil
}

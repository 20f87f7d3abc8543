package topic

import (
	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
)

// ChannelInfo describes the channel a resolver is initialized for.
type ChannelInfo struct {
	Service       string
	Name          string
	QualifiedName string
	Bus           string
	// Key is the channel key after the initial key-resolution table has been
	// substituted.
	Key string
}

// Resolver computes the topic of an outbound message. Initialize is called
// once per channel before the first resolution. Resolvers are used from the
// dispatch goroutine only and may keep internal buffers. Implementations
// must be comparable; the registry tracks initialization per instance.
type Resolver interface {
	Initialize(ch ChannelInfo) error
	ResolveTopic(msg contracts.Message, krt RawKRT) (string, error)
	ResolveTopicWithProperties(msg contracts.Message, krt map[string]string) (string, error)
}

// Appender is implemented by resolvers that can write the topic into a
// caller-supplied buffer.
type Appender interface {
	AppendTopic(dst []byte, msg contracts.Message, krt RawKRT) ([]byte, error)
}

// TemplateResolver evaluates the channel key template. A variable is looked
// up in the per-send table first, then in the message fields, then falls back
// to its default.
type TemplateResolver struct {
	channel string
	tmpl    Template
	static  string
	buf     []byte
	last    string
}

var (
	_ Resolver = (*TemplateResolver)(nil)
	_ Appender = (*TemplateResolver)(nil)
)

// NewTemplateResolver returns a resolver for the channel key template. It is
// configured by Initialize.
func NewTemplateResolver() *TemplateResolver { return &TemplateResolver{} }

func (r *TemplateResolver) Initialize(ch ChannelInfo) error {
	tmpl, err := ParseTemplate(ch.Key)
	if err != nil {
		return &errspkg.TopicResolutionError{Channel: ch.QualifiedName, Reason: err.Error()}
	}
	r.channel = ch.QualifiedName
	r.tmpl = tmpl
	r.static = ""
	r.last = ""
	if tmpl.IsStatic() {
		r.static = tmpl.String()
	}
	return nil
}

func (r *TemplateResolver) AppendTopic(dst []byte, msg contracts.Message, krt RawKRT) ([]byte, error) {
	return appendTopic(r, dst, msg, krt)
}

func (r *TemplateResolver) ResolveTopic(msg contracts.Message, krt RawKRT) (string, error) {
	if r.static != "" {
		return r.static, nil
	}
	buf, err := appendTopic(r, r.buf[:0], msg, krt)
	r.buf = buf
	if err != nil {
		return "", err
	}
	return r.cached(), nil
}

func (r *TemplateResolver) ResolveTopicWithProperties(msg contracts.Message, krt map[string]string) (string, error) {
	if r.static != "" {
		return r.static, nil
	}
	buf, err := appendTopic(r, r.buf[:0], msg, propertiesKRT(krt))
	r.buf = buf
	if err != nil {
		return "", err
	}
	return r.cached(), nil
}

// cached returns the last produced topic, replacing it only when buf differs.
func (r *TemplateResolver) cached() string {
	if string(r.buf) != r.last {
		r.last = string(r.buf)
	}
	return r.last
}

func appendTopic[K krtSource](r *TemplateResolver, dst []byte, msg contracts.Message, krt K) ([]byte, error) {
	if r.tmpl.raw == "" {
		return dst, &errspkg.TopicResolutionError{Channel: r.channel, Reason: "channel has no key"}
	}
	fielder, _ := msg.(contracts.KeyFielder)
	for _, s := range r.tmpl.segments {
		if !s.isVariable() {
			dst = append(dst, s.literal...)
			continue
		}
		var ok bool
		if dst, ok = krt.appendValue(dst, s.variable); ok {
			continue
		}
		if fielder != nil {
			n := len(dst)
			if dst, ok = fielder.AppendKeyField(dst, s.variable); ok && len(dst) > n {
				continue
			}
			dst = dst[:n]
		}
		if s.hasDefault {
			dst = append(dst, s.def...)
			continue
		}
		return dst, &errspkg.TopicResolutionError{
			Channel:  r.channel,
			Variable: s.variable,
			Reason:   "no value in key-resolution table or message and no default",
		}
	}
	return dst, nil
}

package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stake-plus/govcurator/src/store"
)

// Built-in serializer tags.
const (
	TagModel = "TinyModel"
	TagLazy  = "TinyLazy"
	TagDate  = "TinyDate"

	// TagString marks a plain string that would otherwise read as tagged.
	TagString = "TinyStr"
)

// Serializer converts one category of Go value to and from a tagged string.
type Serializer interface {
	Tag() string
	Encodes(v any) bool
	Encode(v any) (string, error)
	Decode(payload string) (any, error)
}

// Codec encodes record fields into store documents. Values claimed by a
// registered serializer are stored as "{Tag}payload" strings.
type Codec struct {
	mu          sync.RWMutex
	serializers []Serializer
	byTag       map[string]Serializer
}

// NewCodec returns a codec with the model, lazy reference and date
// serializers registered against registry. Plain strings that start with
// "{" are escaped so they never decode as another tag.
func NewCodec(registry *Registry) *Codec {
	c := &Codec{byTag: make(map[string]Serializer)}
	_ = c.Register(stringSerializer{})
	_ = c.Register(modelSerializer{registry: registry})
	_ = c.Register(lazySerializer{registry: registry})
	_ = c.Register(dateSerializer{})
	return c
}

// Register adds a serializer; tags must be unique and brace-free.
func (c *Codec) Register(s Serializer) error {
	tag := s.Tag()
	if tag == "" || strings.ContainsAny(tag, "{}") {
		return fmt.Errorf("engine: invalid serializer tag %q", tag)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byTag[tag]; dup {
		return fmt.Errorf("engine: serializer tag %s already registered", tag)
	}
	c.byTag[tag] = s
	c.serializers = append(c.serializers, s)
	return nil
}

// EncodeFields converts fields into a store document.
func (c *Codec) EncodeFields(fields Fields) (store.Document, error) {
	doc := make(store.Document, len(fields))
	for k, v := range fields {
		enc, err := c.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		doc[k] = enc
	}
	return doc, nil
}

// DecodeDocument converts a store document back into fields. References
// come back as unresolved Refs.
func (c *Codec) DecodeDocument(doc store.Document) (Fields, error) {
	fields := make(Fields, len(doc))
	for k, v := range doc {
		dec, err := c.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = dec
	}
	return fields, nil
}

// Encode walks v, replacing values claimed by a serializer.
func (c *Codec) Encode(v any) (any, error) {
	c.mu.RLock()
	serializers := c.serializers
	c.mu.RUnlock()

	for _, s := range serializers {
		if s.Encodes(v) {
			payload, err := s.Encode(v)
			if err != nil {
				return nil, err
			}
			return "{" + s.Tag() + "}" + payload, nil
		}
	}

	switch x := v.(type) {
	case Fields:
		return c.encodeMap(x)
	case map[string]any:
		return c.encodeMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			enc, err := c.Encode(item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	}
	return v, nil
}

func (c *Codec) encodeMap(m map[string]any) (any, error) {
	out := make(map[string]any, len(m))
	for k, item := range m {
		enc, err := c.Encode(item)
		if err != nil {
			return nil, err
		}
		out[k] = enc
	}
	return out, nil
}

// Decode walks v, replacing tagged strings with their decoded values.
// Strings carrying an unknown tag are left untouched.
func (c *Codec) Decode(v any) (any, error) {
	switch x := v.(type) {
	case string:
		tag, payload, ok := splitTag(x)
		if !ok {
			return x, nil
		}
		c.mu.RLock()
		s, known := c.byTag[tag]
		c.mu.RUnlock()
		if !known {
			return x, nil
		}
		return s.Decode(payload)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			dec, err := c.Decode(item)
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			dec, err := c.Decode(item)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	}
	return v, nil
}

func splitTag(s string) (tag, payload string, ok bool) {
	if !strings.HasPrefix(s, "{") {
		return "", "", false
	}
	end := strings.IndexByte(s, '}')
	if end < 2 {
		return "", "", false
	}
	return s[1:end], s[end+1:], true
}

func formatRef(kind string, id int64) string {
	return kind + "/" + strconv.FormatInt(id, 10)
}

func parseRef(registry *Registry, payload string) (Ref, error) {
	kind, rawID, ok := strings.Cut(payload, "/")
	if !ok {
		return Ref{}, fmt.Errorf("engine: malformed reference %q", payload)
	}
	// Decoding needs a handle on the kind.
	if !registry.Has(kind) {
		return Ref{}, fmt.Errorf("%w: %s", ErrUnregisteredKind, kind)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Ref{}, fmt.Errorf("engine: malformed reference %q: %w", payload, err)
	}
	return Ref{Kind: kind, ID: id}, nil
}

// modelSerializer stores a *Record field as a reference to it.
type modelSerializer struct {
	registry *Registry
}

func (modelSerializer) Tag() string { return TagModel }

func (modelSerializer) Encodes(v any) bool {
	_, ok := v.(*Record)
	return ok
}

func (modelSerializer) Encode(v any) (string, error) {
	r := v.(*Record)
	if !r.HasID() {
		return "", fmt.Errorf("%w: %s is not in the database", ErrUnpersistedReference, r.Describe())
	}
	return formatRef(r.Kind, r.ID), nil
}

func (s modelSerializer) Decode(payload string) (any, error) {
	return parseRef(s.registry, payload)
}

// lazySerializer stores an unresolved Ref as-is.
type lazySerializer struct {
	registry *Registry
}

func (lazySerializer) Tag() string { return TagLazy }

func (lazySerializer) Encodes(v any) bool {
	_, ok := v.(Ref)
	return ok
}

func (lazySerializer) Encode(v any) (string, error) {
	r := v.(Ref)
	return formatRef(r.Kind, r.ID), nil
}

func (s lazySerializer) Decode(payload string) (any, error) {
	return parseRef(s.registry, payload)
}

// stringSerializer escapes strings that look like tagged values.
type stringSerializer struct{}

func (stringSerializer) Tag() string { return TagString }

func (stringSerializer) Encodes(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, "{")
}

func (stringSerializer) Encode(v any) (string, error) { return v.(string), nil }

func (stringSerializer) Decode(payload string) (any, error) { return payload, nil }

type dateSerializer struct{}

func (dateSerializer) Tag() string { return TagDate }

func (dateSerializer) Encodes(v any) bool {
	_, ok := v.(time.Time)
	return ok
}

func (dateSerializer) Encode(v any) (string, error) {
	return v.(time.Time).Format(time.RFC3339Nano), nil
}

func (dateSerializer) Decode(payload string) (any, error) {
	t, err := time.Parse(time.RFC3339Nano, payload)
	if err != nil {
		return nil, fmt.Errorf("engine: malformed date %q: %w", payload, err)
	}
	return t, nil
}

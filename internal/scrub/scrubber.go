// Package scrub redacts sensitive values from request params before they are
// sent to the error tracker. Keys matching a configured field name have their
// whole value replaced by a marker; open file handles and uploads are replaced
// by safe descriptors; everything else passes through.
package scrub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
)

const (
	// DefaultMarker replaces sensitive values.
	DefaultMarker = "FILTERED"

	// UploadedFileMarker replaces attachments whose metadata cannot be read.
	UploadedFileMarker = "Uploaded file"

	// DefaultMaxDepth bounds recursion into nested mappings and sequences.
	DefaultMaxDepth = 32
)

// Scrubber applies a sensitive-fields config to params. It is immutable
// after New and safe for concurrent use.
type Scrubber struct {
	fields   any
	registry *Registry
	marker   string
	maxDepth int
	logger   *slog.Logger
}

// Option configures a Scrubber.
type Option func(*Scrubber)

// WithRegistry replaces the default kind registry.
func WithRegistry(r *Registry) Option {
	return func(s *Scrubber) { s.registry = r }
}

// WithMarker sets the value substituted for sensitive fields.
func WithMarker(marker string) Option {
	return func(s *Scrubber) { s.marker = marker }
}

// WithMaxDepth sets how many nested levels are scrubbed before a branch is
// replaced by the marker. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(s *Scrubber) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for absorbed extraction failures.
// Without it the slog default at the time of the failure is used.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scrubber) { s.logger = l }
}

// New creates a Scrubber for the given sensitive-fields config. See
// BuildOptions for the accepted config shapes.
func New(fields any, opts ...Option) *Scrubber {
	s := &Scrubber{
		fields:   fields,
		registry: DefaultRegistry(),
		marker:   DefaultMarker,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Marker returns the redaction marker.
func (s *Scrubber) Marker() string {
	return s.marker
}

// Options builds the per-call options for the configured fields plus extra.
func (s *Scrubber) Options(extraFields ...string) Options {
	return BuildOptions(s.fields, extraFields)
}

// Call scrubs params, treating extraFields as additional sensitive names for
// this call only. Nil params yield an empty result. The input is not modified.
func (s *Scrubber) Call(params any, extraFields ...string) (*Params, error) {
	root, err := ToParams(params)
	if err != nil {
		return nil, err
	}
	seen := path{}
	seen.enter(params)
	seen.enter(root)
	return s.scrubParams(root, s.Options(extraFields...), 0, seen), nil
}

// Scrub returns a scrubbed copy of node.
func (s *Scrubber) Scrub(node *Params, o Options) *Params {
	seen := path{}
	seen.enter(node)
	return s.scrubParams(node, o, 0, seen)
}

// ScrubValue scrubs a single value stored under key.
func (s *Scrubber) ScrubValue(key string, value any, o Options) any {
	return s.scrubEntry(key, value, o, 0, path{})
}

func (s *Scrubber) scrubParams(node *Params, o Options, depth int, seen path) *Params {
	result := NewParams(node.Len())
	node.Range(func(key string, value any) bool {
		result.Set(key, s.scrubEntry(key, value, o, depth, seen))
		return true
	})
	return result
}

func (s *Scrubber) scrubEntry(key string, value any, o Options, depth int, seen path) any {
	if o.RedactAll || Matches(o.FieldsPattern, key) {
		return s.marker
	}

	if nested, ok := asParams(value); ok {
		return s.descend(value, nested, o, depth, seen)
	}

	// Sequences are unwrapped one level only. Mapping elements recurse,
	// anything else, including inner sequences, gets single-value handling.
	if seq, ok := asSequence(value); ok {
		if depth >= s.maxDepth {
			return s.marker
		}
		out := make([]any, len(seq))
		for i, elem := range seq {
			if nested, ok := asParams(elem); ok {
				out[i] = s.descend(elem, nested, o, depth, seen)
				continue
			}
			out[i] = s.filterValue(elem)
		}
		return out
	}

	return s.filterValue(value)
}

// descend scrubs a nested mapping. A mapping already being scrubbed further
// up the current branch is a cycle and becomes the marker.
func (s *Scrubber) descend(value any, nested *Params, o Options, depth int, seen path) any {
	if depth >= s.maxDepth || seen.contains(value) {
		return s.marker
	}
	if seen.enter(value) {
		defer seen.leave(value)
	}
	return s.scrubParams(nested, o, depth+1, seen)
}

func (s *Scrubber) filterValue(value any) any {
	e := s.registry.lookup(value)
	switch e.kind {
	case KindSkippable:
		return fmt.Sprintf("Skipped value of class '%s'", e.name)
	case KindAttachment:
		desc, err := describe(e, value)
		if err != nil {
			s.log().Debug("attachment metadata unavailable", slog.Any("error", err))
			return UploadedFileMarker
		}
		return desc
	}
	return value
}

func (s *Scrubber) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// asSequence views v as a sequence. Byte slices are scalars.
func asSequence(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case []byte, json.RawMessage:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil, false
		}
	case reflect.Array:
	default:
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// path holds the identities of the mappings on the branch being scrubbed.
type path map[uintptr]struct{}

func (p path) contains(v any) bool {
	id, ok := identity(v)
	if !ok {
		return false
	}
	_, found := p[id]
	return found
}

func (p path) enter(v any) bool {
	id, ok := identity(v)
	if !ok {
		return false
	}
	p[id] = struct{}{}
	return true
}

func (p path) leave(v any) {
	if id, ok := identity(v); ok {
		delete(p, id)
	}
}

// identity returns the address behind a *Params or a map value. Other values,
// including Params copies and Mapper results, have none and rely on the depth
// limit instead.
func identity(v any) (uintptr, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	case reflect.Pointer:
		if _, ok := v.(*Params); !ok || rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	}
	return 0, false
}

package scrub

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"reflect"

	"github.com/mdobak/go-xerrors"
)

// Kind classifies opaque values the scrubber must not pass through raw.
type Kind int

const (
	KindPlain Kind = iota
	KindSkippable
	KindAttachment
)

func (k Kind) String() string {
	switch k {
	case KindSkippable:
		return "skippable"
	case KindAttachment:
		return "attachment"
	default:
		return "plain"
	}
}

// Attachment is implemented by upload-like values that can describe
// themselves without exposing their content.
type Attachment interface {
	ContentType() string
	OriginalFilename() string
	Size() (int64, error)
}

// AttachmentDescriptor replaces an uploaded file in scrubbed output.
type AttachmentDescriptor struct {
	ContentType      string `json:"content_type"`
	OriginalFilename string `json:"original_filename"`
	Size             int64  `json:"size"`
}

// ExtractFunc reads attachment metadata from a registered value.
type ExtractFunc func(v any) (AttachmentDescriptor, error)

type kindEntry struct {
	kind    Kind
	name    string
	extract ExtractFunc
}

// Registry maps concrete Go types to a Kind. It is populated before the
// scrubber is built and only read afterwards.
type Registry struct {
	entries map[reflect.Type]kindEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[reflect.Type]kindEntry)}
}

// DefaultRegistry skips open file handles and describes multipart uploads.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterSkippable((*os.File)(nil), "os.File")
	r.RegisterAttachment((*multipart.FileHeader)(nil), "multipart.FileHeader", extractFileHeader)
	return r
}

// RegisterSkippable marks the type of sample as skippable. An empty name
// falls back to the Go type name.
func (r *Registry) RegisterSkippable(sample any, name string) {
	t := reflect.TypeOf(sample)
	r.entries[t] = kindEntry{kind: KindSkippable, name: typeName(t, name)}
}

// RegisterAttachment marks the type of sample as attachment-like.
func (r *Registry) RegisterAttachment(sample any, name string, extract ExtractFunc) {
	t := reflect.TypeOf(sample)
	r.entries[t] = kindEntry{kind: KindAttachment, name: typeName(t, name), extract: extract}
}

// Classify returns the kind of v. Values implementing Attachment are
// attachment-like without registration.
func (r *Registry) Classify(v any) Kind {
	return r.lookup(v).kind
}

func (r *Registry) lookup(v any) kindEntry {
	if v == nil {
		return kindEntry{kind: KindPlain}
	}
	t := reflect.TypeOf(v)
	if r != nil {
		if e, ok := r.entries[t]; ok {
			return e
		}
	}
	if _, ok := v.(Attachment); ok {
		return kindEntry{kind: KindAttachment, name: t.String(), extract: extractAttachment}
	}
	return kindEntry{kind: KindPlain}
}

func typeName(t reflect.Type, name string) string {
	if name != "" {
		return name
	}
	if t == nil {
		return "nil"
	}
	return t.String()
}

// describe runs the extractor, turning errors and panics into
// ErrAttachmentExtraction.
func describe(e kindEntry, v any) (desc AttachmentDescriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.WithStackTrace(fmt.Errorf("%w: %s: %v", ErrAttachmentExtraction, e.name, r), 0)
		}
	}()

	if e.extract == nil {
		return desc, fmt.Errorf("%w: %s has no extractor", ErrAttachmentExtraction, e.name)
	}
	desc, err = e.extract(v)
	if err != nil {
		return AttachmentDescriptor{}, xerrors.WithStackTrace(fmt.Errorf("%w: %s: %w", ErrAttachmentExtraction, e.name, err), 0)
	}
	return desc, nil
}

func extractAttachment(v any) (AttachmentDescriptor, error) {
	a := v.(Attachment)
	size, err := a.Size()
	if err != nil {
		return AttachmentDescriptor{}, err
	}
	return AttachmentDescriptor{
		ContentType:      a.ContentType(),
		OriginalFilename: a.OriginalFilename(),
		Size:             size,
	}, nil
}

// extractFileHeader measures the stored upload rather than trusting the
// declared size.
func extractFileHeader(v any) (AttachmentDescriptor, error) {
	fh := v.(*multipart.FileHeader)

	f, err := fh.Open()
	if err != nil {
		return AttachmentDescriptor{}, err
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return AttachmentDescriptor{}, err
	}

	return AttachmentDescriptor{
		ContentType:      fh.Header.Get("Content-Type"),
		OriginalFilename: fh.Filename,
		Size:             size,
	}, nil
}

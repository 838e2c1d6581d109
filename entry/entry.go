// Package entry exposes individual records of a position-addressed record list
// as lazily parsed key-value-with-tags entries.
//
// # Borrow contract
//
// An Entry holds a non-owning reference to its Accessor and a position that was
// valid when the Entry was created. Nothing is copied: every accessor call reads
// the collection again, so an Entry observes later mutations. The caller must keep
// the accessor alive, and the position in place, for as long as the Entry is used.
// Using an Entry after its collection is released or its record removed is
// undefined behaviour; it is not detected.
package entry

import (
	"context"
	"fmt"
	"iter"

	"github.com/rbaliyan/config/codec"
	jsoncodec "github.com/rbaliyan/config/codec/json"
)

// Field names of an entry, in declaration order.
const (
	FieldName     = "name"
	FieldCategory = "category"
	FieldValue    = "value"
	FieldTags     = "tags"
)

var fieldNames = [...]string{FieldName, FieldCategory, FieldValue, FieldTags}

// Keys returns the fixed set of entry field names.
func Keys() []string {
	return append([]string(nil), fieldNames[:]...)
}

// Entry is a view of the record at one position of an Accessor.
type Entry struct {
	acc        Accessor
	pos        int
	valueCodec codec.Codec
	tagsCodec  codec.Codec
}

// Option configures an Entry.
type Option func(*Entry)

// WithValueCodec sets the codec ValueAsStructured and DecodeValue use.
// Defaults to JSON.
func WithValueCodec(c codec.Codec) Option {
	return func(e *Entry) {
		if c != nil {
			e.valueCodec = c
		}
	}
}

// WithTagsCodec sets the codec TagsAsStructured uses. Defaults to JSON.
func WithTagsCodec(c codec.Codec) Option {
	return func(e *Entry) {
		if c != nil {
			e.tagsCodec = c
		}
	}
}

// New binds an Entry to pos in acc. The position is validated once, here.
func New(acc Accessor, pos int, opts ...Option) (*Entry, error) {
	if acc == nil {
		return nil, fmt.Errorf("entry: accessor is nil")
	}
	if n := acc.Len(); pos < 0 || pos >= n {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrPosition, pos, n)
	}
	e := &Entry{
		acc:        acc,
		pos:        pos,
		valueCodec: jsoncodec.New(),
		tagsCodec:  jsoncodec.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// All yields an Entry for every position of acc, in order.
// It stops at the first position that can no longer be bound. A nil accessor
// yields nothing.
func All(acc Accessor, opts ...Option) iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		if acc == nil {
			return
		}
		for pos := 0; pos < acc.Len(); pos++ {
			e, err := New(acc, pos, opts...)
			if err != nil {
				return
			}
			if !yield(pos, e) {
				return
			}
		}
	}
}

// Position returns the bound position.
func (e *Entry) Position() int {
	return e.pos
}

// Keys returns the fixed set of entry field names.
func (e *Entry) Keys() []string {
	return Keys()
}

// Category reads the record's category.
func (e *Entry) Category() (string, error) {
	s, err := e.acc.Category(e.pos)
	if err != nil {
		return "", fmt.Errorf("entry: %s: %w", FieldCategory, err)
	}
	return s, nil
}

// Name reads the record's name.
func (e *Entry) Name() (string, error) {
	s, err := e.acc.Name(e.pos)
	if err != nil {
		return "", fmt.Errorf("entry: %s: %w", FieldName, err)
	}
	return s, nil
}

// RawValue reads the record's value without interpreting it.
func (e *Entry) RawValue() ([]byte, error) {
	b, err := e.acc.Value(e.pos)
	if err != nil {
		return nil, fmt.Errorf("entry: %s: %w", FieldValue, err)
	}
	return b, nil
}

// Tags reads the record's serialized tags document.
func (e *Entry) Tags() (string, error) {
	s, err := e.acc.Tags(e.pos)
	if err != nil {
		return "", fmt.Errorf("entry: %s: %w", FieldTags, err)
	}
	return s, nil
}

// ValueAsStructured parses the value as a map-like document.
// Returns ErrDecode if the value is malformed or not a map.
func (e *Entry) ValueAsStructured() (map[string]any, error) {
	raw, err := e.RawValue()
	if err != nil {
		return nil, err
	}
	return decodeDocument(e.valueCodec, FieldValue, raw)
}

// DecodeValue decodes the value into v with the value codec.
// Returns ErrDecode if the value cannot be decoded into v.
func (e *Entry) DecodeValue(v any) error {
	raw, err := e.RawValue()
	if err != nil {
		return err
	}
	if err := e.valueCodec.Decode(context.Background(), raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, FieldValue, err)
	}
	return nil
}

// TagsAsStructured parses the tags document. Tags are always a document, so
// ErrDecode here means the stored record is corrupt.
func (e *Entry) TagsAsStructured() (map[string]any, error) {
	raw, err := e.Tags()
	if err != nil {
		return nil, err
	}
	return decodeDocument(e.tagsCodec, FieldTags, []byte(raw))
}

// Summary is a point-in-time snapshot of an Entry.
type Summary struct {
	Name     string         `json:"name"`
	Category string         `json:"category"`
	Value    any            `json:"value"`
	Keys     []string       `json:"keys"`
	Tags     map[string]any `json:"tags"`
}

// ToSummary reads every field once. Value holds the raw []byte, or the parsed
// map when parseValue is set.
func (e *Entry) ToSummary(parseValue bool) (Summary, error) {
	name, err := e.Name()
	if err != nil {
		return Summary{}, err
	}
	category, err := e.Category()
	if err != nil {
		return Summary{}, err
	}
	tags, err := e.TagsAsStructured()
	if err != nil {
		return Summary{}, err
	}

	var value any
	if parseValue {
		value, err = e.ValueAsStructured()
	} else {
		value, err = e.RawValue()
	}
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Name:     name,
		Category: category,
		Value:    value,
		Keys:     Keys(),
		Tags:     tags,
	}, nil
}

// String implements fmt.Stringer without exposing the value.
// Fields the accessor fails to read render as <error>.
func (e *Entry) String() string {
	return fmt.Sprintf("Entry(category=%s, name=%s, pos=%d)",
		quoteOrError(e.acc.Category(e.pos)), quoteOrError(e.acc.Name(e.pos)), e.pos)
}

func quoteOrError(s string, err error) string {
	if err != nil {
		return "<error>"
	}
	return fmt.Sprintf("%q", s)
}

func decodeDocument(c codec.Codec, field string, raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := c.Decode(context.Background(), raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, field, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s: not a document", ErrDecode, field)
	}
	return doc, nil
}

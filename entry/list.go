package entry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	jsoncodec "github.com/rbaliyan/config/codec/json"
)

// Record is one row of a List. Tags holds the serialized tags document.
type Record struct {
	Category string
	Name     string
	Value    []byte
	Tags     string
}

// NewRecord builds a Record, serializing tags as a JSON object.
// A nil tags map is stored as an empty object.
func NewRecord(category, name string, value []byte, tags map[string]string) (Record, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	b, err := jsoncodec.New().Encode(context.Background(), tags)
	if err != nil {
		return Record{}, fmt.Errorf("entry: encode tags: %w", err)
	}
	return Record{
		Category: category,
		Name:     name,
		Value:    append([]byte(nil), value...),
		Tags:     string(b),
	}, nil
}

// List is an in-memory Accessor, the shape of a fetched result set.
// It is safe for concurrent use; Entries over it observe every mutation.
type List struct {
	mu      sync.RWMutex
	records []Record
}

// Compile-time interface check.
var _ Accessor = (*List)(nil)

// NewList creates a List holding copies of records.
func NewList(records ...Record) *List {
	l := &List{records: make([]Record, 0, len(records))}
	for _, r := range records {
		l.records = append(l.records, copyRecord(r))
	}
	return l
}

// Append adds a record and returns its position.
func (l *List) Append(r Record) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, copyRecord(r))
	return len(l.records) - 1
}

// Set replaces the record at pos.
func (l *List) Set(pos int, r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(pos); err != nil {
		return err
	}
	l.records[pos] = copyRecord(r)
	return nil
}

// SetValue replaces only the value of the record at pos.
func (l *List) SetValue(pos int, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(pos); err != nil {
		return err
	}
	l.records[pos].Value = append([]byte(nil), value...)
	return nil
}

// Remove deletes the record at pos, shifting later records down.
// Entries bound to pos or later positions are invalidated.
func (l *List) Remove(pos int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(pos); err != nil {
		return err
	}
	l.records = slices.Delete(l.records, pos, pos+1)
	return nil
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *List) Category(pos int) (string, error) {
	r, err := l.get(pos)
	return r.Category, err
}

func (l *List) Name(pos int) (string, error) {
	r, err := l.get(pos)
	return r.Name, err
}

// Value returns a copy of the value at pos.
func (l *List) Value(pos int) ([]byte, error) {
	r, err := l.get(pos)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), r.Value...), nil
}

func (l *List) Tags(pos int) (string, error) {
	r, err := l.get(pos)
	return r.Tags, err
}

func (l *List) get(pos int) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.check(pos); err != nil {
		return Record{}, err
	}
	return l.records[pos], nil
}

// check must be called with l.mu held.
func (l *List) check(pos int) error {
	if pos < 0 || pos >= len(l.records) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrPosition, pos, len(l.records))
	}
	return nil
}

func copyRecord(r Record) Record {
	r.Value = append([]byte(nil), r.Value...)
	return r
}

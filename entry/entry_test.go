package entry

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func testList(t *testing.T) *List {
	t.Helper()
	r, err := NewRecord("category", "name", []byte(`{"user":"alice","pin":1234}`), map[string]string{
		"~plaintag": "a",
		"enctag":    "b",
	})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return NewList(r)
}

func TestEntryFields(t *testing.T) {
	e, err := New(testList(t), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	category, err := e.Category()
	if err != nil {
		t.Fatalf("Category: %v", err)
	}
	if category != "category" {
		t.Errorf("Category: got %q, want %q", category, "category")
	}

	name, err := e.Name()
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	if name != "name" {
		t.Errorf("Name: got %q, want %q", name, "name")
	}

	raw, err := e.RawValue()
	if err != nil {
		t.Fatalf("RawValue: %v", err)
	}
	if string(raw) != `{"user":"alice","pin":1234}` {
		t.Errorf("RawValue: got %q", raw)
	}

	tags, err := e.TagsAsStructured()
	if err != nil {
		t.Fatalf("TagsAsStructured: %v", err)
	}
	if tags["~plaintag"] != "a" || tags["enctag"] != "b" {
		t.Errorf("TagsAsStructured: got %v", tags)
	}
}

func TestNewPositionOutOfRange(t *testing.T) {
	l := testList(t)
	for _, pos := range []int{-1, 1, 100} {
		if _, err := New(l, pos); !IsPosition(err) {
			t.Errorf("New(%d): expected ErrPosition, got %v", pos, err)
		}
	}
}

func TestNewNilAccessor(t *testing.T) {
	if _, err := New(nil, 0); err == nil {
		t.Error("expected error for nil accessor")
	}
}

// flipAccessor returns a different value on every Value call.
type flipAccessor struct {
	mu    sync.Mutex
	calls int
}

func (a *flipAccessor) Len() int                         { return 1 }
func (a *flipAccessor) Category(pos int) (string, error) { return "c", nil }
func (a *flipAccessor) Name(pos int) (string, error)     { return "n", nil }
func (a *flipAccessor) Tags(pos int) (string, error)     { return "{}", nil }

func (a *flipAccessor) Value(pos int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return []byte(fmt.Sprintf("value-%d", a.calls)), nil
}

func TestEntryRawValueNotCached(t *testing.T) {
	acc := &flipAccessor{}
	e, err := New(acc, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := e.RawValue()
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.RawValue()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first, second) {
		t.Errorf("two reads returned the same value %q; entry must not cache", first)
	}
	if string(first) != "value-1" || string(second) != "value-2" {
		t.Errorf("got %q and %q, want value-1 and value-2", first, second)
	}
}

func TestEntryObservesListMutation(t *testing.T) {
	l := testList(t)
	e, err := New(l, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := l.SetValue(0, []byte(`{"user":"bob"}`)); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	doc, err := e.ValueAsStructured()
	if err != nil {
		t.Fatalf("ValueAsStructured: %v", err)
	}
	if doc["user"] != "bob" {
		t.Errorf("ValueAsStructured: got %v, want user=bob", doc)
	}
}

func TestValueAsStructured(t *testing.T) {
	e, err := New(testList(t), 0)
	if err != nil {
		t.Fatal(err)
	}

	doc, err := e.ValueAsStructured()
	if err != nil {
		t.Fatalf("ValueAsStructured: %v", err)
	}
	if doc["user"] != "alice" {
		t.Errorf("user: got %v, want alice", doc["user"])
	}
	if _, ok := doc["pin"]; !ok {
		t.Errorf("pin: missing from %v", doc)
	}
}

func TestValueAsStructuredMalformed(t *testing.T) {
	for _, value := range []string{"not a document", "[1,2,3]", "null", `{"open":`} {
		l := NewList(Record{Category: "c", Name: "n", Value: []byte(value), Tags: "{}"})
		e, err := New(l, 0)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.ValueAsStructured(); !IsDecode(err) {
			t.Errorf("ValueAsStructured(%q): expected ErrDecode, got %v", value, err)
		}
	}
}

func TestDecodeValueTyped(t *testing.T) {
	type credential struct {
		User string `json:"user"`
		Pin  int    `json:"pin"`
	}

	e, err := New(testList(t), 0)
	if err != nil {
		t.Fatal(err)
	}

	var got credential
	if err := e.DecodeValue(&got); err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if got != (credential{User: "alice", Pin: 1234}) {
		t.Errorf("DecodeValue: got %+v", got)
	}
}

func TestTagsAsStructuredCorrupt(t *testing.T) {
	l := NewList(Record{Category: "c", Name: "n", Value: []byte("v"), Tags: "plain text, not tags"})
	e, err := New(l, 0)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.TagsAsStructured()
	if !IsDecode(err) {
		t.Errorf("expected ErrDecode, got %v", err)
	}

	// Raw access still works.
	raw, err := e.Tags()
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if raw != "plain text, not tags" {
		t.Errorf("Tags: got %q", raw)
	}
}

func TestMalformedValueDoesNotFailConstruction(t *testing.T) {
	l := NewList(Record{Category: "c", Name: "n", Value: []byte("{{{"), Tags: "}}}"})
	if _, err := New(l, 0); err != nil {
		t.Fatalf("New should not parse fields: %v", err)
	}
}

func TestToSummary(t *testing.T) {
	e, err := New(testList(t), 0)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := e.ToSummary(false)
	if err != nil {
		t.Fatalf("ToSummary(false): %v", err)
	}
	if raw.Name != "name" || raw.Category != "category" {
		t.Errorf("ToSummary: got name=%q category=%q", raw.Name, raw.Category)
	}
	if b, ok := raw.Value.([]byte); !ok || string(b) != `{"user":"alice","pin":1234}` {
		t.Errorf("ToSummary(false).Value: got %#v", raw.Value)
	}
	if !reflect.DeepEqual(raw.Keys, []string{"name", "category", "value", "tags"}) {
		t.Errorf("ToSummary.Keys: got %v", raw.Keys)
	}
	if raw.Tags["enctag"] != "b" {
		t.Errorf("ToSummary.Tags: got %v", raw.Tags)
	}

	parsed, err := e.ToSummary(true)
	if err != nil {
		t.Fatalf("ToSummary(true): %v", err)
	}
	doc, ok := parsed.Value.(map[string]any)
	if !ok {
		t.Fatalf("ToSummary(true).Value: got %T, want map", parsed.Value)
	}
	if doc["user"] != "alice" {
		t.Errorf("ToSummary(true).Value: got %v", doc)
	}
}

func TestToSummaryParseFailure(t *testing.T) {
	l := NewList(Record{Category: "c", Name: "n", Value: []byte("opaque"), Tags: "{}"})
	e, err := New(l, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.ToSummary(false); err != nil {
		t.Errorf("ToSummary(false) on opaque value: %v", err)
	}
	if _, err := e.ToSummary(true); !IsDecode(err) {
		t.Errorf("ToSummary(true): expected ErrDecode, got %v", err)
	}
}

func TestKeysIsolated(t *testing.T) {
	k := Keys()
	k[0] = "mutated"
	if Keys()[0] != FieldName {
		t.Error("Keys returned shared backing array")
	}
}

// failingAccessor fails every field read.
type failingAccessor struct{}

var errBackend = errors.New("backend unavailable")

func (failingAccessor) Len() int                         { return 1 }
func (failingAccessor) Category(pos int) (string, error) { return "", errBackend }
func (failingAccessor) Name(pos int) (string, error)     { return "", errBackend }
func (failingAccessor) Value(pos int) ([]byte, error)    { return nil, errBackend }
func (failingAccessor) Tags(pos int) (string, error)     { return "", errBackend }

func TestAccessorErrorsPropagate(t *testing.T) {
	e, err := New(failingAccessor{}, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Category(); !errors.Is(err, errBackend) {
		t.Errorf("Category: got %v", err)
	}
	if _, err := e.Name(); !errors.Is(err, errBackend) {
		t.Errorf("Name: got %v", err)
	}
	if _, err := e.RawValue(); !errors.Is(err, errBackend) {
		t.Errorf("RawValue: got %v", err)
	}
	if _, err := e.TagsAsStructured(); !errors.Is(err, errBackend) || IsDecode(err) {
		t.Errorf("TagsAsStructured: got %v", err)
	}
	if _, err := e.ToSummary(true); !errors.Is(err, errBackend) {
		t.Errorf("ToSummary: got %v", err)
	}
}

func TestCBORValue(t *testing.T) {
	value, err := cbor.Marshal(map[string]any{"user": "carol", "otp": true})
	if err != nil {
		t.Fatal(err)
	}
	l := NewList(Record{Category: "c", Name: "n", Value: value, Tags: "{}"})

	e, err := New(l, 0, WithValueCodec(CBOR()))
	if err != nil {
		t.Fatal(err)
	}

	doc, err := e.ValueAsStructured()
	if err != nil {
		t.Fatalf("ValueAsStructured: %v", err)
	}
	if doc["user"] != "carol" || doc["otp"] != true {
		t.Errorf("ValueAsStructured: got %v", doc)
	}

	if err := l.SetValue(0, []byte{0xff, 0x00}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ValueAsStructured(); !IsDecode(err) {
		t.Errorf("expected ErrDecode for invalid CBOR, got %v", err)
	}
}

func TestAll(t *testing.T) {
	l := NewList()
	for i := 0; i < 3; i++ {
		r, err := NewRecord("c", fmt.Sprintf("n%d", i), nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		l.Append(r)
	}

	var names []string
	for pos, e := range All(l) {
		if e.Position() != pos {
			t.Errorf("Position: got %d, want %d", e.Position(), pos)
		}
		name, err := e.Name()
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}
	if !reflect.DeepEqual(names, []string{"n0", "n1", "n2"}) {
		t.Errorf("All: got %v", names)
	}
}

func TestEntryStringHidesValue(t *testing.T) {
	e, err := New(testList(t), 0)
	if err != nil {
		t.Fatal(err)
	}
	s := e.String()
	if bytes.Contains([]byte(s), []byte("alice")) {
		t.Errorf("String leaks value: %s", s)
	}
}

func TestEntryConcurrentReads(t *testing.T) {
	l := testList(t)
	e, err := New(l, 0)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := e.ToSummary(true); err != nil {
				t.Errorf("ToSummary: %v", err)
			}
		}()
		go func(n int) {
			defer wg.Done()
			_ = l.SetValue(0, []byte(fmt.Sprintf(`{"n":%d}`, n)))
		}(i)
	}
	wg.Wait()
}

func TestAllNilAccessor(t *testing.T) {
	for pos := range All(nil) {
		t.Errorf("All(nil) yielded position %d", pos)
	}
}

func TestEntryStringAccessorError(t *testing.T) {
	e, err := New(failingAccessor{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := "Entry(category=<error>, name=<error>, pos=0)"
	if got := e.String(); got != want {
		t.Errorf("String: got %q, want %q", got, want)
	}
}

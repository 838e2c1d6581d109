package entry

// Accessor is positional read access to an ordered record collection.
// Positions are stable only for the lifetime of the collection.
type Accessor interface {
	// Len returns the number of records.
	Len() int

	// Category returns the category of the record at pos.
	Category(pos int) (string, error)

	// Name returns the name of the record at pos.
	Name(pos int) (string, error)

	// Value returns the raw value of the record at pos.
	Value(pos int) ([]byte, error)

	// Tags returns the serialized tags document of the record at pos.
	Tags(pos int) (string, error)
}

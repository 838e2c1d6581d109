package entry

import "errors"

var (
	// ErrDecode is returned when a value or tags field is not a well-formed
	// structured document. For tags this indicates corrupted data.
	ErrDecode = errors.New("entry: decode failed")

	// ErrPosition is returned when a position is outside the accessor's range.
	ErrPosition = errors.New("entry: position out of range")
)

// IsDecode returns true if the error is or wraps ErrDecode.
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}

// IsPosition returns true if the error is or wraps ErrPosition.
func IsPosition(err error) bool {
	return errors.Is(err, ErrPosition)
}

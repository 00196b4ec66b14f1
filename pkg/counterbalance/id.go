package counterbalance

import (
	"errors"
	"fmt"
	"strconv"
)

// IDWidth is the number of digits in a CanonicalID.
const IDWidth = 3

// maxIDValue is the largest participant number representable in IDWidth digits.
const maxIDValue = 999

var (
	// ErrInvalidID indicates the raw input contains no digit run.
	ErrInvalidID = errors.New("invalid participant id")

	// ErrIDOutOfRange indicates the digit run does not fit in IDWidth digits.
	// It wraps ErrInvalidID so callers checking for ErrInvalidID also catch it.
	ErrIDOutOfRange = fmt.Errorf("%w: out of range", ErrInvalidID)
)

// CanonicalID is a zero-padded participant identifier, always IDWidth ASCII digits.
type CanonicalID string

// String returns the identifier text.
func (id CanonicalID) String() string {
	return string(id)
}

// Number returns the numeric value of the identifier.
func (id CanonicalID) Number() int {
	n, _ := strconv.Atoi(string(id))
	return n
}

// IDError reports why a raw identifier could not be canonicalized.
type IDError struct {
	Raw string
	Err error
}

func (e *IDError) Error() string {
	if errors.Is(e.Err, ErrIDOutOfRange) {
		return fmt.Sprintf("participant id %q: value exceeds %d digits", e.Raw, IDWidth)
	}
	return fmt.Sprintf("participant id %q: no digits found", e.Raw)
}

func (e *IDError) Unwrap() error {
	return e.Err
}

// Canonicalize extracts the first run of ASCII digits in raw and left-pads it
// with zeros to IDWidth. Leading zeros in the run do not count against the
// width ("0042" becomes "042"); values above 999 are rejected with
// ErrIDOutOfRange rather than truncated.
func Canonicalize(raw string) (CanonicalID, error) {
	digits := firstDigitRun(raw)
	if digits == "" {
		return "", &IDError{Raw: raw, Err: ErrInvalidID}
	}

	value, err := strconv.Atoi(digits)
	if err != nil || value > maxIDValue {
		// Atoi only fails here on overflow, which is out of range too.
		return "", &IDError{Raw: raw, Err: ErrIDOutOfRange}
	}

	return CanonicalID(fmt.Sprintf("%0*d", IDWidth, value)), nil
}

// MustCanonicalize is like Canonicalize but panics on error. For tests and constants.
func MustCanonicalize(raw string) CanonicalID {
	id, err := Canonicalize(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// firstDigitRun returns the first maximal run of '0'-'9' bytes in s.
func firstDigitRun(s string) string {
	start := -1
	for i := 0; i < len(s); i++ {
		isDigit := s[i] >= '0' && s[i] <= '9'
		switch {
		case isDigit && start < 0:
			start = i
		case !isDigit && start >= 0:
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}

package smf

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedFile is matched by every error returned from Decode.
	ErrMalformedFile = errors.New("malformed MIDI file")
	// ErrMalformedVLV reports a variable-length value longer than 4 bytes or cut short.
	ErrMalformedVLV = errors.New("malformed variable-length value")
	// ErrVLVOverflow reports a value that does not fit in 28 bits.
	ErrVLVOverflow = errors.New("value too large for variable-length encoding")
)

// DecodeError describes where decoding stopped.
type DecodeError struct {
	Track  int // -1 while reading the header
	Offset int // byte offset in the whole file
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Track < 0 {
		return fmt.Sprintf("smf: header at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("smf: track %d at offset %d: %v", e.Track, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes every decode failure match ErrMalformedFile.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedFile
}

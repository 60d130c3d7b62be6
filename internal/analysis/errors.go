package analysis

import (
	"errors"
	"fmt"
)

// Local failures. None of these escape the public locate operations; they
// are logged and the search moves on to the next candidate.
var (
	ErrAbsentRegion       = errors.New("region not present")
	ErrIdentifierNotFound = errors.New("identifier not found")
	ErrNoReferences       = errors.New("identifier has no code references")
	ErrFunctionResolution = errors.New("function could not be resolved or created")
	ErrPatternNotMatched  = errors.New("pattern not matched within window")
)

// DecodeError reports an address the code model could not decode. A window
// that hits one ends early, exactly as if its budget ran out.
type DecodeError struct {
	Addr uint64
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failure at %#x: %v", e.Addr, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

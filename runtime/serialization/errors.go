package serialization

import (
	"errors"
)

// CatchPanics converts codec panics recovered during pack/unpack back
// into errors. Any other panic value is re-raised.
func CatchPanics(r any) error {
	if r == nil {
		return nil
	}

	err, ok := r.(error)
	if !ok {
		panic(r)
	}

	if errors.As(err, &writerError{}) || errors.As(err, &readerError{}) {
		return err
	}

	panic(r)
}

package layer

import "fmt"

// MalformedError is returned for a layer definition that cannot be normalized
type MalformedError struct {
	Shape Shape
	Value any
	Err   error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed layer descriptor (%v): %v", e.Shape, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

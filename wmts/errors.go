package wmts

import "fmt"

// DuplicateIdentifierError is returned for a layer reusing the identifier of an earlier layer
type DuplicateIdentifierError struct {
	Identifier string
	// Index of the layer that has the identifier
	First int
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf(`duplicate layer identifier "%s", already used by layer %d`, e.Identifier, e.First)
}

package settings

import "fmt"

// MissingFieldError is returned when a required setting is absent
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf(`missing required setting "%s"`, e.Field)
}

// InvalidFieldError is returned when a setting violates a rule other than being required
type InvalidFieldError struct {
	Field string
	Rule  string
	Param string
	Value any
}

func (e *InvalidFieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf(`invalid setting "%s": %v does not satisfy %s=%s`, e.Field, e.Value, e.Rule, e.Param)
	}
	return fmt.Sprintf(`invalid setting "%s": %v does not satisfy %s`, e.Field, e.Value, e.Rule)
}

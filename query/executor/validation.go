package executor

import (
	"fmt"
	"strings"
)

// ValidationError is one rejected field.
type ValidationError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Validator checks an entity before it is written. A non-empty result turns
// the write into a 422 response on the entity.
type Validator interface {
	Validate(entity any) []ValidationError
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(entity any) []ValidationError

// Validate calls f.
func (f ValidatorFunc) Validate(entity any) []ValidationError {
	return f(entity)
}

// NopValidator accepts everything.
type NopValidator struct{}

// Validate implements Validator.
func (NopValidator) Validate(any) []ValidationError {
	return nil
}

func validationDetails(errs []ValidationError) []string {
	details := make([]string, len(errs))
	for i, e := range errs {
		details[i] = e.Error()
	}
	return details
}

func joinDetails(errs []ValidationError) string {
	return strings.Join(validationDetails(errs), "; ")
}

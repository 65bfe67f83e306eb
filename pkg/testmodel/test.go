package testmodel

import (
	"fmt"
	"maps"

	"github.com/go-playground/validator/v10"
)

// MaxVersion is the highest version a test or report may carry. Stores
// write Version+1, which must not overflow.
const MaxVersion = 1<<31 - 1

var validate = validator.New(validator.WithRequiredStructEnabled())

// TestStep is a single recorded action inside a test.
type TestStep struct {
	ID     string         `json:"id" validate:"required"`
	Image  []byte         `json:"image,omitempty"`
	Values map[string]any `json:"values,omitempty"`
}

// Test is a named, versioned sequence of steps.
type Test struct {
	Name    string     `json:"name" validate:"required,max=512"`
	Active  bool       `json:"active"`
	Version int        `json:"version" validate:"gte=0,lt=2147483647"`
	Steps   []TestStep `json:"steps" validate:"dive"`
}

// Validate checks the test for fields the store relies on.
func (t *Test) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid test %q: %w", t.Name, err)
	}
	return nil
}

// StripImages returns a copy of the test with every step image removed.
// The receiver is left untouched.
func (t Test) StripImages() Test {
	out := t
	out.Steps = make([]TestStep, len(t.Steps))
	for i, step := range t.Steps {
		out.Steps[i] = TestStep{
			ID:     step.ID,
			Values: maps.Clone(step.Values),
		}
	}
	return out
}

// PendingTest is a stored test queued for execution by the host runner.
type PendingTest struct {
	Owner string `json:"owner"`
	Test  Test   `json:"test"`
}

// Name returns the name of the queued test.
func (p PendingTest) Name() string {
	return p.Test.Name
}

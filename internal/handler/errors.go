package handler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingDependency is returned by New when a collaborator is nil.
var ErrMissingDependency = errors.New("handler dependency cannot be nil")

// AggregateError reports every per-message failure of a batch, in the
// order the messages were encountered. It is only produced for two or more
// failures; a single failure is returned as-is.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}

	return fmt.Sprintf("%d messages in batch failed: %s", len(e.Errors), strings.Join(messages, "; "))
}

// Unwrap exposes the member errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Failures flattens a batch failure into its per-message errors.
func Failures(err error) []error {
	if err == nil {
		return nil
	}

	var aggregate *AggregateError
	if errors.As(err, &aggregate) {
		return aggregate.Errors
	}

	return []error{err}
}

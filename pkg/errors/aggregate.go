// Package errors provides the tools for gathering errors for the processes in
// this program which keep working when there are errors, such as the access
// batch runner and the disablement manager.
package errors

import "strings"

// Aggregate groups a list of errors together.
type Aggregate struct {
	errlist []error
}

// NewAggregate returns an Aggregate containing the given list of errors.
func NewAggregate(errlist []error) *Aggregate {
	return &Aggregate{errlist}
}

// Add appends err to the aggregate. A nil err is ignored.
func (a *Aggregate) Add(err error) {
	if err != nil {
		a.errlist = append(a.errlist, err)
	}
}

// Len returns the number of errors collected.
func (a *Aggregate) Len() int {
	return len(a.errlist)
}

// ErrorOrNil returns the aggregate as an error or nil when nothing was
// collected. Use this rather than returning the *Aggregate directly to avoid
// a non-nil error interface holding an empty aggregate.
func (a *Aggregate) ErrorOrNil() error {
	if a == nil || len(a.errlist) == 0 {
		return nil
	}
	return a
}

// Error returns the combined error message for the Aggregate.
func (a *Aggregate) Error() string {
	msg := new(strings.Builder)
	for i, err := range a.errlist {
		if i > 0 {
			msg.WriteString("; ")
		}
		msg.WriteString(err.Error())
	}
	return msg.String()
}

// Errors returns the individual errors which make up the aggregate.
func (a *Aggregate) Errors() []error {
	return a.errlist
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (a *Aggregate) Unwrap() []error {
	return a.errlist
}

package utils

import "fmt"

// OpError tags an error with the operation and a human-facing message.
type OpError struct {
	Op  string
	Msg string
	Err error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// E constructs an OpError.
func E(op, msg string, err error) error {
	return &OpError{Op: op, Msg: msg, Err: err}
}

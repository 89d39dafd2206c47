package tsconfig

import "fmt"

// ReadError indicates the tsconfig file could not be read
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read tsconfig %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ParseError indicates the tsconfig file is not valid JSON with comments
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to parse tsconfig: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse tsconfig %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

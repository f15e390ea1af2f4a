package core

import (
	"errors"
	"fmt"
)

var (
	// ErrProjectNotFound is returned when a report targets an unknown project.
	ErrProjectNotFound = errors.New("project not found")
	// ErrUpstream matches every UpstreamError via errors.Is.
	ErrUpstream = errors.New("upstream fetch failed")
)

// UpstreamError reports a failed read from one of the collaborator sources.
// A request that hits one is aborted as a whole.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Upstream wraps err as an UpstreamError for source. A nil err stays nil.
func Upstream(source string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Source: source, Err: err}
}

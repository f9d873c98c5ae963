package models

import (
	"errors"
	"fmt"
)

// ErrorValidation is returned for rejected input: title collisions, reserved
// words, malformed role lists. Nothing has been written.
type ErrorValidation struct {
	Field   string
	Message string
}

func (e ErrorValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrorNotFound is returned when a version, template or article id does not resolve.
type ErrorNotFound struct {
	Resource string
	ID       string
}

func (e ErrorNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ErrorUnsupported is returned for operations the state machine forbids, such
// as trashing the home page.
type ErrorUnsupported struct {
	Message string
}

func (e ErrorUnsupported) Error() string {
	return e.Message
}

type ErrorConflict struct {
	Message string
}

func (e ErrorConflict) Error() string {
	return e.Message
}

type ErrorUnauthorized struct {
	Message string
}

func (e ErrorUnauthorized) Error() string {
	return e.Message
}

// ErrorConsistency describes a detected corruption in a version history. The
// engine repairs it and logs it; callers never see it.
type ErrorConsistency struct {
	ArticleNumber int
	Message       string
}

func (e ErrorConsistency) Error() string {
	return fmt.Sprintf("article %d: %s", e.ArticleNumber, e.Message)
}

// ErrorCascade wraps a failure of a publication or projection step. It is
// logged and swallowed so the primary content write survives.
type ErrorCascade struct {
	ArticleNumber int
	Step          string
	Err           error
}

func (e ErrorCascade) Error() string {
	return fmt.Sprintf("article %d: %s failed: %v", e.ArticleNumber, e.Step, e.Err)
}

func (e ErrorCascade) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	var target ErrorNotFound
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ErrorValidation
	return errors.As(err, &target)
}

func IsUnsupported(err error) bool {
	var target ErrorUnsupported
	return errors.As(err, &target)
}

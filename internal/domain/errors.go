package domain

import "errors"

var (
	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("invalid input")
	// ErrSessionNotFound is returned when a quiz session id is unknown.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuestionNotFound indicates a question id is unknown or not part of the session.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestionsMatch is returned when the sampling filters match nothing.
	ErrNoQuestionsMatch = errors.New("no questions match the requested filters")
	// ErrUserNotFound indicates the user record could not be loaded.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotOwner is returned when a caller operates on someone else's session.
	ErrNotOwner = errors.New("not the session owner")
	// ErrSessionNotActive is returned for operations that require an
	// in-progress session, including a second Complete on the same session.
	ErrSessionNotActive = errors.New("quiz session is not in progress")
	// ErrActiveSessionExists is returned when a user already holds an
	// in-progress session and tries to start another one.
	ErrActiveSessionExists = errors.New("an in-progress quiz session already exists")
)

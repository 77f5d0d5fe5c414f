package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy is returned when a prompt arrives while a turn is running.
	ErrSessionBusy = errors.New("session is already processing a prompt")

	// ErrSessionTerminated rejects pending approval requests when their
	// session is aborted or deleted.
	ErrSessionTerminated = errors.New("session terminated")

	// ErrApprovalTimeout rejects a plan approval that exceeded its deadline.
	ErrApprovalTimeout = errors.New("plan approval timed out")

	// ErrQuestionDismissed rejects a question the user declined to answer.
	ErrQuestionDismissed = errors.New("question dismissed")
)

package core

import "errors"

// Sentinel errors routed to HTTP statuses by the API layer. Ownership
// misses surface as the same not-found errors as genuine absence.
var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrCommitNotFound = errors.New("commit not found")
	ErrEmailTaken     = errors.New("email already registered")
)

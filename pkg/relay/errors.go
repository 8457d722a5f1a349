package relay

import (
	"errors"

	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/mahaj/chat-relay/pkg/store"
)

var (
	ErrInvalidMessage    = model.ErrInvalidMessage
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrNotFound          = store.ErrNotFound
	ErrStoreUnavailable  = store.ErrUnavailable
)

// Code maps an error returned by the engine to the code reported to the
// originating connection.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return "INVALID_MESSAGE"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrNotAuthorized):
		return "NOT_AUTHORIZED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	}
	return "INTERNAL"
}

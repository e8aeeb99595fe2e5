package dragdrop

import "errors"

// Sentinel errors for the drag engine.
var (
	// ErrDragInProgress indicates a pointer-down arrived while a session is live.
	ErrDragInProgress = errors.New("drag already in progress")

	// ErrNoActiveDrag indicates a move/up/cancel arrived with no live session.
	ErrNoActiveDrag = errors.New("no active drag session")
)

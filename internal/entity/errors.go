package entity

import "errors"

// Sentinel errors shared across the canvas domain.
var (
	// ErrElementNotFound indicates the id does not resolve to an element.
	ErrElementNotFound = errors.New("element not found")

	// ErrBoardNotFound indicates the id does not resolve to a board.
	ErrBoardNotFound = errors.New("board not found")

	// ErrNotABoard indicates a board operation was aimed at a non-board element.
	ErrNotABoard = errors.New("element is not a board")

	// ErrNotAGroup indicates a group operation was aimed at a non-group element.
	ErrNotAGroup = errors.New("element is not a group")

	// ErrNotAContainer indicates an attach aimed at an element that cannot
	// hold children.
	ErrNotAContainer = errors.New("element cannot hold children")

	// ErrGroupNotEmpty indicates a plain remove was attempted on a group that
	// still has members; callers must pick a removal policy instead.
	ErrGroupNotEmpty = errors.New("group still has members")

	// ErrElementLocked indicates the element refuses moves and edits.
	ErrElementLocked = errors.New("element is locked")

	// ErrHierarchyCycle indicates a reparent that would put a container
	// inside its own subtree.
	ErrHierarchyCycle = errors.New("element cannot be moved into its own subtree")

	// ErrMalformedDocument indicates a persisted document failed validation.
	ErrMalformedDocument = errors.New("malformed canvas document")
)

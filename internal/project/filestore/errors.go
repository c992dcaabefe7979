package filestore

import "errors"

var (
	// ErrUnknownKind is returned for content ids whose kind is not supported.
	ErrUnknownKind = errors.New("unknown content kind")

	// ErrInvalidContentID is returned for content ids without a kind.
	ErrInvalidContentID = errors.New("invalid content id")

	// ErrConflict is returned by CompareAndSwap when the stored content
	// changed since it was read.
	ErrConflict = errors.New("content has been updated by other method, state inconclusive")

	// ErrInvalidEditRange is returned when an edit does not fit the text.
	ErrInvalidEditRange = errors.New("invalid edit range")
)

package model

import "errors"

// Sentinel errors crossing the storage boundary. Repositories translate
// driver-level conditions into these; services translate them into API errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSlotFull          = errors.New("time slot is at capacity")
	ErrDuplicateReview   = errors.New("review already exists")
)

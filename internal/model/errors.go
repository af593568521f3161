package model

import "errors"

var (
	// ErrNotFound is returned by stores when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken is returned when another active booking already holds the start slot.
	ErrSlotTaken = errors.New("slot already taken")
)

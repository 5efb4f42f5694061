package util

import "github.com/google/uuid"

// NewID returns a random UUID string used as entity and job id.
func NewID() string {
	return uuid.NewString()
}

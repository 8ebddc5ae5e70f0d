package random

import "github.com/google/uuid"

// GenerateUUIDString returns a random (v4) UUID string.
func GenerateUUIDString() string {
	return uuid.New().String()
}

// GenerateTimeOrderedID returns a v7 UUID, which sorts by creation time.
func GenerateTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

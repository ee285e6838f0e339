package utils

import "github.com/google/uuid"

// GenerateID returns a random identifier such as "evt_6f1c...".
func GenerateID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "_" + uuid.NewString()
}

package common

import (
	"github.com/google/uuid"
)

// NewSourceID generates a unique data source ID with the "src_" prefix
func NewSourceID() string {
	return "src_" + uuid.New().String()
}

// NewModelID generates a unique semantic model ID with the "model_" prefix
func NewModelID() string {
	return "model_" + uuid.New().String()
}

// NewEventID generates a unique sync event ID with the "evt_" prefix
func NewEventID() string {
	return "evt_" + uuid.New().String()
}

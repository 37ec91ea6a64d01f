package common

import (
	"github.com/google/uuid"
)

// NewSurrogateID generates the internal surrogate identifier assigned to an
// entity row at first insert. External OParl ids are URLs; every cross-entity
// reference inside the store uses this UUID instead.
func NewSurrogateID() string {
	return uuid.New().String()
}

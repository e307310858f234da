package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID              uuid.UUID
	CreatedAt       time.Time
	Email           string
	HashedPassword  []byte
	IsEmailVerified bool
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendee is a person identified by CPF who registers for tutorials.
type Attendee struct {
	ID        uuid.UUID  `json:"id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Birthday  *time.Time `json:"birthday,omitempty"`
	CPF       string     `json:"cpf"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

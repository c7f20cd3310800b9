package domain

import "time"

// StaffMember models clinic staff who authenticate against the service.
// Rank is an opaque label; mapping ranks to display strings lives outside
// this service.
type StaffMember struct {
	ID           string
	Name         string
	Username     string
	PasswordHash string
	Rank         *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

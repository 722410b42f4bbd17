package links

import (
	"time"

	"github.com/google/uuid"
)

// Link maps a short code to a target URL and counts redirects through it.
type Link struct {
	ID            uuid.UUID
	Code          string
	Target        string
	Clicks        int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastClickedAt *time.Time
}

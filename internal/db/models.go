package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Link struct {
	ID            uuid.UUID          `json:"id"`
	Code          string             `json:"code"`
	Target        string             `json:"target"`
	Clicks        int64              `json:"clicks"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
	LastClickedAt pgtype.Timestamptz `json:"last_clicked_at"`
}

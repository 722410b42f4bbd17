package db

import (
	"context"

	"github.com/google/uuid"
)

const linkColumns = `id, code, target, clicks, created_at, updated_at, last_clicked_at`

const createLink = `
INSERT INTO links (id, code, target)
VALUES ($1, $2, $3)
RETURNING ` + linkColumns

type CreateLinkParams struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Target string    `json:"target"`
}

func (q *Queries) CreateLink(ctx context.Context, arg CreateLinkParams) (Link, error) {
	row := q.db.QueryRow(ctx, createLink, arg.ID, arg.Code, arg.Target)
	return scanLink(row)
}

const getLinkByCode = `
SELECT ` + linkColumns + `
FROM links
WHERE code = $1`

func (q *Queries) GetLinkByCode(ctx context.Context, code string) (Link, error) {
	row := q.db.QueryRow(ctx, getLinkByCode, code)
	return scanLink(row)
}

// The increment happens in one statement so concurrent redirects cannot
// lose updates. GREATEST keeps last_clicked_at from moving backwards if the
// database clock steps back.
const incrementLinkClicks = `
UPDATE links
SET clicks          = clicks + 1,
    last_clicked_at = GREATEST(COALESCE(last_clicked_at, now()), now())
WHERE code = $1
RETURNING ` + linkColumns

func (q *Queries) IncrementLinkClicks(ctx context.Context, code string) (Link, error) {
	row := q.db.QueryRow(ctx, incrementLinkClicks, code)
	return scanLink(row)
}

const updateLinkTarget = `
UPDATE links
SET target     = $2,
    updated_at = now()
WHERE code = $1
RETURNING ` + linkColumns

type UpdateLinkTargetParams struct {
	Code   string `json:"code"`
	Target string `json:"target"`
}

func (q *Queries) UpdateLinkTarget(ctx context.Context, arg UpdateLinkTargetParams) (Link, error) {
	row := q.db.QueryRow(ctx, updateLinkTarget, arg.Code, arg.Target)
	return scanLink(row)
}

const deleteLink = `
DELETE FROM links
WHERE code = $1`

// DeleteLink returns the number of rows removed.
func (q *Queries) DeleteLink(ctx context.Context, code string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteLink, code)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listLinks = `
SELECT ` + linkColumns + `
FROM links
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`

type ListLinksParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListLinks(ctx context.Context, arg ListLinksParams) ([]Link, error) {
	rows, err := q.db.Query(ctx, listLinks, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Link{}
	for rows.Next() {
		i, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(row rowScanner) (Link, error) {
	var i Link
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Target,
		&i.Clicks,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.LastClickedAt,
	)
	return i, err
}

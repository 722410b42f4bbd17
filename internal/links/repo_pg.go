package links

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/shortlink/internal/db"
	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/idgen"
)

// querier is the subset of *db.Queries the repository needs.
type querier interface {
	CreateLink(ctx context.Context, arg db.CreateLinkParams) (db.Link, error)
	GetLinkByCode(ctx context.Context, code string) (db.Link, error)
	IncrementLinkClicks(ctx context.Context, code string) (db.Link, error)
	UpdateLinkTarget(ctx context.Context, arg db.UpdateLinkTargetParams) (db.Link, error)
	DeleteLink(ctx context.Context, code string) (int64, error)
	ListLinks(ctx context.Context, arg db.ListLinksParams) ([]db.Link, error)
}

type repo struct {
	q   querier
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(q querier, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}
	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewV7(idgen.WithRetries(1))
	}
	return &repo{q: q, ids: ids}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func toDomainLink(x db.Link) (Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	updatedAt, err := mustTime(x.UpdatedAt, "updated_at")
	if err != nil {
		return Link{}, err
	}

	return Link{
		ID:            x.ID,
		Code:          x.Code,
		Target:        x.Target,
		Clicks:        x.Clicks,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		LastClickedAt: timePtr(x.LastClickedAt),
	}, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)
	case isCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)
	case isCheckViolation(err):
		return errx.E(op, errx.Invalid, err)
	case isConnectionError(err):
		return errx.E(op, errx.Unavailable, err)
	default:
		return errx.E(op, errx.Internal, err)
	}
}

func (r *repo) row(op string, x db.Link, err error) (Link, error) {
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	link, err := toDomainLink(x)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (r *repo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "links.repo.Create"

	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Internal, err)
		}
		link.ID = id
	}

	x, err := r.q.CreateLink(ctx, db.CreateLinkParams{
		ID:     link.ID,
		Code:   link.Code,
		Target: link.Target,
	})
	return r.row(op, x, err)
}

func (r *repo) GetByCode(ctx context.Context, code string) (Link, error) {
	x, err := r.q.GetLinkByCode(ctx, code)
	return r.row("links.repo.GetByCode", x, err)
}

func (r *repo) IncrementClicks(ctx context.Context, code string) (Link, error) {
	x, err := r.q.IncrementLinkClicks(ctx, code)
	return r.row("links.repo.IncrementClicks", x, err)
}

func (r *repo) UpdateTarget(ctx context.Context, code, target string) (Link, error) {
	x, err := r.q.UpdateLinkTarget(ctx, db.UpdateLinkTargetParams{Code: code, Target: target})
	return r.row("links.repo.UpdateTarget", x, err)
}

func (r *repo) Delete(ctx context.Context, code string) (bool, error) {
	const op = "links.repo.Delete"

	n, err := r.q.DeleteLink(ctx, code)
	if err != nil {
		return false, mapRepoError(op, err)
	}
	return n > 0, nil
}

func (r *repo) List(ctx context.Context, limit, offset int) ([]Link, error) {
	const op = "links.repo.List"

	rows, err := r.q.ListLinks(ctx, db.ListLinksParams{
		Limit:  clampInt32(limit),
		Offset: clampInt32(offset),
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	out := make([]Link, 0, len(rows))
	for _, x := range rows {
		link, err := toDomainLink(x)
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		out = append(out, link)
	}
	return out, nil
}

func clampInt32(n int) int32 {
	switch {
	case n < 0:
		return 0
	case n > math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(n)
	}
}

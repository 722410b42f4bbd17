package links

import "context"

// Repository persists links keyed by their unique code.
//
// Lookups of a missing code fail with errx.NotFound; inserting an existing
// code fails with errx.Conflict and leaves the stored link untouched.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetByCode(ctx context.Context, code string) (Link, error)
	IncrementClicks(ctx context.Context, code string) (Link, error)
	UpdateTarget(ctx context.Context, code, target string) (Link, error)
	Delete(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]Link, error)
}

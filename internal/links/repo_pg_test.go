package links

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/shortlink/internal/db"
	"github.com/sundayezeilo/shortlink/internal/errx"
)

/***************
 * Mocks / Stubs
 ***************/

// mockQueries implements the querier interface for testing.
type mockQueries struct {
	createLinkFunc       func(ctx context.Context, arg db.CreateLinkParams) (db.Link, error)
	getLinkByCodeFunc    func(ctx context.Context, code string) (db.Link, error)
	incrementClicksFunc  func(ctx context.Context, code string) (db.Link, error)
	updateLinkTargetFunc func(ctx context.Context, arg db.UpdateLinkTargetParams) (db.Link, error)
	deleteLinkFunc       func(ctx context.Context, code string) (int64, error)
	listLinksFunc        func(ctx context.Context, arg db.ListLinksParams) ([]db.Link, error)
}

func (m *mockQueries) CreateLink(ctx context.Context, arg db.CreateLinkParams) (db.Link, error) {
	if m.createLinkFunc != nil {
		return m.createLinkFunc(ctx, arg)
	}
	return db.Link{}, nil
}

func (m *mockQueries) GetLinkByCode(ctx context.Context, code string) (db.Link, error) {
	if m.getLinkByCodeFunc != nil {
		return m.getLinkByCodeFunc(ctx, code)
	}
	return db.Link{}, pgx.ErrNoRows
}

func (m *mockQueries) IncrementLinkClicks(ctx context.Context, code string) (db.Link, error) {
	if m.incrementClicksFunc != nil {
		return m.incrementClicksFunc(ctx, code)
	}
	return db.Link{}, pgx.ErrNoRows
}

func (m *mockQueries) UpdateLinkTarget(ctx context.Context, arg db.UpdateLinkTargetParams) (db.Link, error) {
	if m.updateLinkTargetFunc != nil {
		return m.updateLinkTargetFunc(ctx, arg)
	}
	return db.Link{}, pgx.ErrNoRows
}

func (m *mockQueries) DeleteLink(ctx context.Context, code string) (int64, error) {
	if m.deleteLinkFunc != nil {
		return m.deleteLinkFunc(ctx, code)
	}
	return 0, nil
}

func (m *mockQueries) ListLinks(ctx context.Context, arg db.ListLinksParams) ([]db.Link, error) {
	if m.listLinksFunc != nil {
		return m.listLinksFunc(ctx, arg)
	}
	return nil, nil
}

// stubIDGen lets tests control generated IDs deterministically.
type stubIDGen struct {
	id    uuid.UUID
	err   error
	calls int
}

func (g *stubIDGen) Generate() (uuid.UUID, error) {
	g.calls++
	return g.id, g.err
}

/***************
 * Helpers
 ***************/

func ts(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func makeTestDBLink(now time.Time) db.Link {
	return db.Link{
		ID:        uuid.New(),
		Code:      "abc123",
		Target:    "https://example.com",
		CreatedAt: ts(now),
		UpdatedAt: ts(now),
	}
}

/***************
 * Tests
 ***************/

func TestRepo_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("generates id and maps row", func(t *testing.T) {
		ids := &stubIDGen{id: uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")}
		var got db.CreateLinkParams
		q := &mockQueries{
			createLinkFunc: func(ctx context.Context, arg db.CreateLinkParams) (db.Link, error) {
				got = arg
				row := makeTestDBLink(now)
				row.ID, row.Code, row.Target = arg.ID, arg.Code, arg.Target
				return row, nil
			},
		}
		r := NewRepository(q, &RepositoryConfig{IDGenerator: ids})

		link, err := r.Create(ctx, Link{Code: "abc123", Target: "https://example.com"})
		if err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}
		if ids.calls != 1 {
			t.Errorf("id generator calls = %d, want 1", ids.calls)
		}
		if got.ID != ids.id || got.Code != "abc123" || got.Target != "https://example.com" {
			t.Errorf("CreateLink params = %+v", got)
		}
		if link.ID != ids.id || !link.CreatedAt.Equal(now) || link.LastClickedAt != nil {
			t.Errorf("Create() = %+v", link)
		}
	})

	t.Run("keeps caller id", func(t *testing.T) {
		ids := &stubIDGen{}
		preset := uuid.New()
		q := &mockQueries{
			createLinkFunc: func(ctx context.Context, arg db.CreateLinkParams) (db.Link, error) {
				if arg.ID != preset {
					t.Errorf("ID = %v, want %v", arg.ID, preset)
				}
				return makeTestDBLink(now), nil
			},
		}
		r := NewRepository(q, &RepositoryConfig{IDGenerator: ids})
		if _, err := r.Create(ctx, Link{ID: preset, Code: "abc123", Target: "https://x.io"}); err != nil {
			t.Fatal(err)
		}
		if ids.calls != 0 {
			t.Errorf("id generator called %d times", ids.calls)
		}
	})

	t.Run("id generation failure", func(t *testing.T) {
		r := NewRepository(&mockQueries{}, &RepositoryConfig{IDGenerator: &stubIDGen{err: errors.New("clock")}})
		_, err := r.Create(ctx, Link{Code: "abc123", Target: "https://x.io"})
		if !errx.Is(err, errx.Internal) {
			t.Errorf("kind = %v, want Internal", errx.KindOf(err))
		}
	})
}

func TestRepo_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want errx.Kind
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: errx.NotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: errx.NotFound},
		{
			name: "code unique violation",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "links_code_unique"},
			want: errx.Conflict,
		},
		{
			name: "other unique violation",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "links_pkey"},
			want: errx.Internal,
		},
		{
			name: "check violation",
			err:  &pgconn.PgError{Code: "23514", ConstraintName: "links_code_format"},
			want: errx.Invalid,
		},
		{name: "undefined table", err: &pgconn.PgError{Code: "42P01", Message: `relation "links" does not exist`}, want: errx.Internal},
		{name: "value too long", err: &pgconn.PgError{Code: "22001"}, want: errx.Internal},
		{name: "unclassified error", err: errors.New("unexpected"), want: errx.Internal},
		{
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			want: errx.Unavailable,
		},
		{name: "deadline exceeded", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: errx.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQueries{
				createLinkFunc: func(ctx context.Context, arg db.CreateLinkParams) (db.Link, error) {
					return db.Link{}, tt.err
				},
				getLinkByCodeFunc: func(ctx context.Context, code string) (db.Link, error) {
					return db.Link{}, tt.err
				},
			}
			r := NewRepository(q, &RepositoryConfig{IDGenerator: &stubIDGen{id: uuid.New()}})

			_, err := r.Create(ctx, Link{Code: "abc123", Target: "https://x.io"})
			if got := errx.KindOf(err); got != tt.want {
				t.Errorf("Create kind = %v, want %v", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("Create error %v does not wrap %v", err, tt.err)
			}

			_, err = r.GetByCode(ctx, "abc123")
			if got := errx.KindOf(err); got != tt.want {
				t.Errorf("GetByCode kind = %v, want %v", got, tt.want)
			}
			if got := errx.OpOf(err); got != "links.repo.GetByCode" {
				t.Errorf("op = %q", got)
			}
		})
	}
}

func TestRepo_NullTimestamps(t *testing.T) {
	q := &mockQueries{
		getLinkByCodeFunc: func(ctx context.Context, code string) (db.Link, error) {
			row := makeTestDBLink(time.Now())
			row.CreatedAt = pgtype.Timestamptz{}
			return row, nil
		},
	}
	r := NewRepository(q, nil)
	_, err := r.GetByCode(context.Background(), "abc123")
	if !errx.Is(err, errx.Internal) {
		t.Errorf("kind = %v, want Internal", errx.KindOf(err))
	}
}

func TestRepo_IncrementClicks(t *testing.T) {
	clicked := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	q := &mockQueries{
		incrementClicksFunc: func(ctx context.Context, code string) (db.Link, error) {
			row := makeTestDBLink(clicked.Add(-time.Hour))
			row.Code = code
			row.Clicks = 3
			row.LastClickedAt = ts(clicked)
			return row, nil
		},
	}
	r := NewRepository(q, nil)

	link, err := r.IncrementClicks(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("IncrementClicks() unexpected error: %v", err)
	}
	if link.Clicks != 3 {
		t.Errorf("Clicks = %d, want 3", link.Clicks)
	}
	if link.LastClickedAt == nil || !link.LastClickedAt.Equal(clicked) {
		t.Errorf("LastClickedAt = %v, want %v", link.LastClickedAt, clicked)
	}

	if _, err := NewRepository(&mockQueries{}, nil).IncrementClicks(context.Background(), "gone12"); !errx.Is(err, errx.NotFound) {
		t.Errorf("missing code kind = %v, want NotFound", errx.KindOf(err))
	}
}

func TestRepo_UpdateTarget(t *testing.T) {
	var got db.UpdateLinkTargetParams
	q := &mockQueries{
		updateLinkTargetFunc: func(ctx context.Context, arg db.UpdateLinkTargetParams) (db.Link, error) {
			got = arg
			row := makeTestDBLink(time.Now())
			row.Target = arg.Target
			return row, nil
		},
	}
	link, err := NewRepository(q, nil).UpdateTarget(context.Background(), "abc123", "https://new.example")
	if err != nil {
		t.Fatalf("UpdateTarget() unexpected error: %v", err)
	}
	if got.Code != "abc123" || got.Target != "https://new.example" {
		t.Errorf("params = %+v", got)
	}
	if link.Target != "https://new.example" {
		t.Errorf("Target = %q", link.Target)
	}
}

func TestRepo_Delete(t *testing.T) {
	tests := []struct {
		name     string
		rows     int64
		err      error
		want     bool
		wantKind errx.Kind
	}{
		{name: "removed", rows: 1, want: true},
		{name: "absent", rows: 0, want: false},
		{name: "store failure", err: errors.New("boom"), wantKind: errx.Internal},
		{name: "store unreachable", err: context.DeadlineExceeded, wantKind: errx.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQueries{
				deleteLinkFunc: func(ctx context.Context, code string) (int64, error) {
					return tt.rows, tt.err
				},
			}
			removed, err := NewRepository(q, nil).Delete(context.Background(), "abc123")
			if tt.err != nil {
				if !errx.Is(err, tt.wantKind) {
					t.Errorf("kind = %v, want %v", errx.KindOf(err), tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Delete() unexpected error: %v", err)
			}
			if removed != tt.want {
				t.Errorf("Delete() = %v, want %v", removed, tt.want)
			}
		})
	}
}

func TestRepo_List(t *testing.T) {
	now := time.Now()
	var got db.ListLinksParams
	q := &mockQueries{
		listLinksFunc: func(ctx context.Context, arg db.ListLinksParams) ([]db.Link, error) {
			got = arg
			a, b := makeTestDBLink(now), makeTestDBLink(now.Add(-time.Minute))
			b.Code = "xyz789"
			return []db.Link{a, b}, nil
		},
	}

	links, err := NewRepository(q, nil).List(context.Background(), 25, 50)
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if got.Limit != 25 || got.Offset != 50 {
		t.Errorf("params = %+v, want limit 25 offset 50", got)
	}
	if len(links) != 2 || links[1].Code != "xyz789" {
		t.Errorf("List() = %+v", links)
	}
}

func TestClampInt32(t *testing.T) {
	tests := []struct {
		in   int
		want int32
	}{
		{-5, 0},
		{0, 0},
		{42, 42},
		{math.MaxInt32 + 10, math.MaxInt32},
	}
	for _, tt := range tests {
		if got := clampInt32(tt.in); got != tt.want {
			t.Errorf("clampInt32(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

package links

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlink/internal/errx"
)

/***************
 * In-memory repository
 ***************/

// memRepo is a Repository backed by a map, honoring the same uniqueness
// and not-found contract as the PostgreSQL implementation.
type memRepo struct {
	mu    sync.Mutex
	links map[string]Link
	now   func() time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{links: make(map[string]Link), now: time.Now}
}

func (m *memRepo) Create(_ context.Context, link Link) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[link.Code]; ok {
		return Link{}, errx.E("memRepo.Create", errx.Conflict, errors.New("duplicate code"))
	}
	now := m.now()
	link.ID = uuid.New()
	link.CreatedAt = now
	link.UpdatedAt = now
	m.links[link.Code] = link
	return link, nil
}

func (m *memRepo) GetByCode(_ context.Context, code string) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok {
		return Link{}, errx.E("memRepo.GetByCode", errx.NotFound, errors.New("no rows"))
	}
	return link, nil
}

func (m *memRepo) IncrementClicks(_ context.Context, code string) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok {
		return Link{}, errx.E("memRepo.IncrementClicks", errx.NotFound, errors.New("no rows"))
	}
	now := m.now()
	if link.LastClickedAt != nil && link.LastClickedAt.After(now) {
		now = *link.LastClickedAt
	}
	link.Clicks++
	link.LastClickedAt = &now
	m.links[code] = link
	return link, nil
}

func (m *memRepo) UpdateTarget(_ context.Context, code, target string) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok {
		return Link{}, errx.E("memRepo.UpdateTarget", errx.NotFound, errors.New("no rows"))
	}
	link.Target = target
	link.UpdatedAt = m.now()
	m.links[code] = link
	return link, nil
}

func (m *memRepo) Delete(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[code]; !ok {
		return false, nil
	}
	delete(m.links, code)
	return true, nil
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]Link, 0, len(m.links))
	for _, link := range m.links {
		all = append(all, link)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []Link{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

/***************
 * Function-field mocks
 ***************/

// mockRepository implements Repository with overridable behavior.
type mockRepository struct {
	createFunc          func(ctx context.Context, link Link) (Link, error)
	getByCodeFunc       func(ctx context.Context, code string) (Link, error)
	incrementClicksFunc func(ctx context.Context, code string) (Link, error)
	updateTargetFunc    func(ctx context.Context, code, target string) (Link, error)
	deleteFunc          func(ctx context.Context, code string) (bool, error)
	listFunc            func(ctx context.Context, limit, offset int) ([]Link, error)
}

func (m *mockRepository) Create(ctx context.Context, link Link) (Link, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, link)
	}
	link.ID = uuid.New()
	link.CreatedAt = time.Now()
	link.UpdatedAt = link.CreatedAt
	return link, nil
}

func (m *mockRepository) GetByCode(ctx context.Context, code string) (Link, error) {
	if m.getByCodeFunc != nil {
		return m.getByCodeFunc(ctx, code)
	}
	return Link{}, errx.E("mock.GetByCode", errx.NotFound, errors.New("not found"))
}

func (m *mockRepository) IncrementClicks(ctx context.Context, code string) (Link, error) {
	if m.incrementClicksFunc != nil {
		return m.incrementClicksFunc(ctx, code)
	}
	return Link{}, errx.E("mock.IncrementClicks", errx.NotFound, errors.New("not found"))
}

func (m *mockRepository) UpdateTarget(ctx context.Context, code, target string) (Link, error) {
	if m.updateTargetFunc != nil {
		return m.updateTargetFunc(ctx, code, target)
	}
	return Link{}, errx.E("mock.UpdateTarget", errx.NotFound, errors.New("not found"))
}

func (m *mockRepository) Delete(ctx context.Context, code string) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, code)
	}
	return false, nil
}

func (m *mockRepository) List(ctx context.Context, limit, offset int) ([]Link, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit, offset)
	}
	return nil, nil
}

// mockCodeGenerator returns codes from a fixed list, then a fallback.
type mockCodeGenerator struct {
	codes     []string
	err       error
	lengths   []int
	callCount int
}

func (m *mockCodeGenerator) Generate(length int) (string, error) {
	m.callCount++
	m.lengths = append(m.lengths, length)
	if m.err != nil {
		return "", m.err
	}
	if idx := m.callCount - 1; idx < len(m.codes) {
		return m.codes[idx], nil
	}
	return "zzzzzz", nil
}

// countingRecorder counts lifecycle events.
type countingRecorder struct {
	mu                        sync.Mutex
	created, clicked, deleted int
}

func (c *countingRecorder) LinkCreated() { c.mu.Lock(); c.created++; c.mu.Unlock() }
func (c *countingRecorder) LinkClicked() { c.mu.Lock(); c.clicked++; c.mu.Unlock() }
func (c *countingRecorder) LinkDeleted() { c.mu.Lock(); c.deleted++; c.mu.Unlock() }

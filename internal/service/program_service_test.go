package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

type mockProgramRepo struct {
	programs    []models.Program
	listCalls   int
	findByIDErr error
}

func (m *mockProgramRepo) FindByID(ctx context.Context, id string) (*models.Program, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	for i := range m.programs {
		if m.programs[i].ID == id {
			return &m.programs[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockProgramRepo) ListActive(ctx context.Context) ([]models.Program, error) {
	m.listCalls++
	var out []models.Program
	for _, p := range m.programs {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCatalogCache struct {
	entries map[string][]models.Program
	sets    int
}

func (m *mockCatalogCache) Get(ctx context.Context, key string, dest interface{}) error {
	cached, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*[]models.Program) = cached
	return nil
}

func (m *mockCatalogCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]models.Program)
	}
	m.entries[key] = value.([]models.Program)
	m.sets++
	return nil
}

func TestProgramListActiveCacheMissThenHit(t *testing.T) {
	repo := &mockProgramRepo{programs: []models.Program{
		softwareProgram(),
		{ID: "prog-2", Name: "History", Active: false},
	}}
	cache := &mockCatalogCache{}
	svc := NewProgramService(repo, cache, nil, nil, time.Minute)

	programs, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, programs, 1)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from the cache.
	programs, err = svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, programs, 1)
	assert.Equal(t, 1, repo.listCalls)
}

func TestProgramListActiveWithoutCache(t *testing.T) {
	repo := &mockProgramRepo{programs: []models.Program{softwareProgram()}}
	svc := NewProgramService(repo, nil, nil, nil, time.Minute)

	programs, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, programs, 1)

	_, err = svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestProgramGet(t *testing.T) {
	repo := &mockProgramRepo{programs: []models.Program{softwareProgram()}}
	svc := NewProgramService(repo, nil, nil, nil, time.Minute)

	program, err := svc.Get(context.Background(), "prog-1")
	require.NoError(t, err)
	assert.Equal(t, "Software Engineering", program.Name)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

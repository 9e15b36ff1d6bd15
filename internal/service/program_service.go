package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

const programCatalogCacheKey = "programs:active"

type programRepository interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
	ListActive(ctx context.Context) ([]models.Program, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ProgramService serves the program catalog. The active listing is cached
// since the catalog changes rarely and backs every application submission.
type ProgramService struct {
	repo     programRepository
	cache    catalogCache
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewProgramService constructs ProgramService. The cache may be nil, in which
// case every read goes to the database.
func NewProgramService(repo programRepository, cache catalogCache, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *ProgramService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &ProgramService{repo: repo, cache: cache, metrics: metrics, logger: logger, cacheTTL: cacheTTL}
}

// Get returns a program by ID.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// ListActive returns the programs open for application, cache-aside.
func (s *ProgramService) ListActive(ctx context.Context) ([]models.Program, error) {
	if s.cache != nil {
		start := time.Now()
		var cached []models.Program
		err := s.cache.Get(ctx, programCatalogCacheKey, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("program catalog cache read failed", zap.Error(err))
		}
	}

	programs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}

	if s.cache != nil {
		start := time.Now()
		if err := s.cache.Set(ctx, programCatalogCacheKey, programs, s.cacheTTL); err != nil {
			s.logger.Warn("program catalog cache write failed", zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	return programs, nil
}

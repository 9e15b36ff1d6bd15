package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

type emailRegistry interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// StudentIdentity is the pair the allocator produces for a new student.
type StudentIdentity struct {
	StudentNo          string
	InstitutionalEmail string
}

// IdentityService generates collision-free student numbers and institutional
// email addresses. Safe to call concurrently; the unique constraint on
// institutional_email is the final arbiter, callers retry on conflict.
type IdentityService struct {
	registry    emailRegistry
	emailDomain string
	maxRetries  int
	logger      *zap.Logger
	now         func() time.Time
	randInt     func(n int) int
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(registry emailRegistry, emailDomain string, maxRetries int, logger *zap.Logger) *IdentityService {
	if maxRetries <= 0 {
		maxRetries = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		registry:    registry,
		emailDomain: emailDomain,
		maxRetries:  maxRetries,
		logger:      logger,
		now:         time.Now,
		randInt:     rand.Intn,
	}
}

// Allocate returns the identity for a new student. An existing student number
// (previously issued on the applicant's profile) is reused verbatim; the
// email is always freshly resolved against the registry.
func (s *IdentityService) Allocate(ctx context.Context, firstName, lastName, existingNo string) (*StudentIdentity, error) {
	studentNo := existingNo
	if studentNo == "" {
		studentNo = s.generateStudentNo()
	}

	email, err := s.resolveEmail(ctx, firstName, lastName)
	if err != nil {
		return nil, err
	}

	return &StudentIdentity{StudentNo: studentNo, InstitutionalEmail: email}, nil
}

// generateStudentNo synthesizes the canonical SK<year><4-digit> number.
func (s *IdentityService) generateStudentNo() string {
	return fmt.Sprintf("SK%d%04d", s.now().UTC().Year(), s.randInt(10000))
}

// resolveEmail builds firstname.lastname@<domain> and appends a numeric
// disambiguator on collision, up to the configured retry bound.
func (s *IdentityService) resolveEmail(ctx context.Context, firstName, lastName string) (string, error) {
	local := sanitizeEmailLocal(firstName) + "." + sanitizeEmailLocal(lastName)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		candidate := local
		if attempt > 0 {
			candidate = fmt.Sprintf("%s%d", local, attempt)
		}
		email := candidate + "@" + s.emailDomain

		taken, err := s.registry.EmailExists(ctx, email)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check institutional email")
		}
		if !taken {
			return email, nil
		}
		s.logger.Debug("institutional email taken, retrying",
			zap.String("email", email), zap.Int("attempt", attempt+1))
	}

	return "", appErrors.Clone(appErrors.ErrIdentityAllocation, "exhausted institutional email candidates")
}

func sanitizeEmailLocal(part string) string {
	part = strings.ToLower(strings.TrimSpace(part))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return -1
		}
	}, part)
}

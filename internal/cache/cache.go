package cache

import (
	"context"
	"time"

	"mejapos/backend/internal/domain"
)

// ShiftReportCache holds computed reports for closed shifts. A closed shift
// is immutable, so its report never changes; open-shift previews must not
// be cached.
type ShiftReportCache interface {
	Get(ctx context.Context, shiftID string) (*domain.ShiftReport, bool, error)
	Set(ctx context.Context, shiftID string, report *domain.ShiftReport, ttl time.Duration) error
}

type NoopShiftReportCache struct{}

func (NoopShiftReportCache) Get(_ context.Context, _ string) (*domain.ShiftReport, bool, error) {
	return nil, false, nil
}

func (NoopShiftReportCache) Set(_ context.Context, _ string, _ *domain.ShiftReport, _ time.Duration) error {
	return nil
}

// internal/repository/sqlite/store.go
package sqlite

import (
	"context"
	"database/sql"
	"slices"
	"sync"
	"time"

	"policy-service/internal/domain/policy"
	xerrors "policy-service/internal/pkg/errors"

	"github.com/ncruces/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PolicyStore is a policy.Repository backed by gorm on SQLite.
type PolicyStore struct {
	getDatabase func(ctx context.Context) (*gorm.DB, error)
	logger      *zap.Logger
}

var _ policy.Repository = &PolicyStore{}

func NewPolicyStore(db *gorm.DB, logger *zap.Logger) *PolicyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyStore{
		getDatabase: createGetDatabase(db),
		logger:      logger,
	}
}

func createGetDatabase(db *gorm.DB) func(ctx context.Context) (*gorm.DB, error) {
	var (
		migrateOnce sync.Once
		migrateErr  error
	)

	return func(ctx context.Context) (*gorm.DB, error) {
		migrateOnce.Do(func() {
			if err := db.AutoMigrate(&policyRecord{}); err != nil {
				migrateErr = errors.WithStack(err)
			}
		})
		if migrateErr != nil {
			return nil, errors.WithStack(migrateErr)
		}

		return db.WithContext(ctx), nil
	}
}

// List implements policy.Repository.
func (s *PolicyStore) List(ctx context.Context) ([]policy.Policy, error) {
	var records []policyRecord

	err := s.withRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		return db.Order("policy_number asc").Find(&records).Error
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	policies := make([]policy.Policy, 0, len(records))
	for i := range records {
		policies = append(policies, records[i].toPolicy())
	}

	return policies, nil
}

// FindByNumber implements policy.Repository.
func (s *PolicyStore) FindByNumber(ctx context.Context, policyNumber int64) (*policy.Policy, error) {
	var record policyRecord

	err := s.withRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		if err := db.First(&record, "policy_number = ?", policyNumber).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.WithStack(xerrors.ErrNotFound)
			}
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	p := record.toPolicy()
	return &p, nil
}

// MaxPolicyNumber implements policy.Repository.
func (s *PolicyStore) MaxPolicyNumber(ctx context.Context) (int64, bool, error) {
	var max sql.NullInt64

	err := s.withRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		return db.Model(&policyRecord{}).Select("MAX(policy_number)").Row().Scan(&max)
	})
	if err != nil {
		return 0, false, errors.WithStack(err)
	}

	return max.Int64, max.Valid, nil
}

// Insert implements policy.Repository.
func (s *PolicyStore) Insert(ctx context.Context, p *policy.Policy) error {
	now := time.Now().UTC()
	record := fromPolicy(p)
	record.Version = 1
	record.CreatedAt = now
	record.UpdatedAt = now

	err := s.withRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		var count int64
		if err := db.Model(&policyRecord{}).Where("policy_number = ?", record.PolicyNumber).Count(&count).Error; err != nil {
			return errors.WithStack(err)
		}
		if count > 0 {
			return errors.WithStack(xerrors.ErrDuplicateEntry)
		}

		return db.Create(record).Error
	})
	if err != nil {
		var sqliteErr *sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode() == sqlite3.CONSTRAINT_PRIMARYKEY {
			return errors.WithStack(xerrors.ErrDuplicateEntry)
		}
		return errors.WithStack(err)
	}

	p.Version = record.Version
	p.CreatedAt = record.CreatedAt
	p.UpdatedAt = record.UpdatedAt

	return nil
}

// Update implements policy.Repository.
func (s *PolicyStore) Update(ctx context.Context, p *policy.Policy, expectedVersion int64) error {
	now := time.Now().UTC()

	err := s.withRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
		res := db.Model(&policyRecord{}).
			Where("policy_number = ? AND version = ?", p.PolicyNumber, expectedVersion).
			Updates(map[string]any{
				"customer_name":  p.CustomerName,
				"start_date":     p.StartDate.UTC(),
				"end_date":       p.EndDate.UTC(),
				"is_cancelled":   p.IsCancelled,
				"cancelled_date": utcPtr(p.CancelledDate),
				"version":        expectedVersion + 1,
				"updated_at":     now,
			})
		if res.Error != nil {
			return errors.WithStack(res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var count int64
		if err := db.Model(&policyRecord{}).Where("policy_number = ?", p.PolicyNumber).Count(&count).Error; err != nil {
			return errors.WithStack(err)
		}
		if count == 0 {
			return errors.WithStack(xerrors.ErrNotFound)
		}
		return errors.WithStack(xerrors.ErrConcurrentUpdate)
	})
	if err != nil {
		return errors.WithStack(err)
	}

	p.Version = expectedVersion + 1
	p.UpdatedAt = now

	return nil
}

func (s *PolicyStore) withRetry(ctx context.Context, fn func(ctx context.Context, db *gorm.DB) error) error {
	db, err := s.getDatabase(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	codes := []sqlite3.ErrorCode{sqlite3.BUSY, sqlite3.LOCKED}
	backoff := 50 * time.Millisecond
	maxRetries := 5
	retries := 0

	for {
		err := db.Transaction(func(tx *gorm.DB) error {
			return fn(ctx, tx)
		})
		if err == nil {
			return nil
		}

		var sqliteErr *sqlite3.Error
		if retries >= maxRetries || !errors.As(err, &sqliteErr) || !slices.Contains(codes, sqliteErr.Code()) {
			return err
		}

		s.logger.Debug("sqlite transaction failed, will retry",
			zap.Int("retries", retries),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		retries++
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

package repository

import (
	"context"

	"github.com/refind-app/refind/internal/domain"
	"gorm.io/gorm"
)

// MatchRepository handles match audit records.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new MatchRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *MatchRepository: repository instance bound to db.
func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// BulkCreate inserts all staged match records in a single transaction.
// All-or-nothing: a failure rolls back every record of the batch.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - matches: staged audit records.
// Returns:
//   - error: non-nil if the transaction fails; no partial writes remain.
func (r *MatchRepository) BulkCreate(ctx context.Context, matches []domain.Match) error {
	if len(matches) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(matches, 100).Error
	})
}

// ListRecent retrieves the most recent positive-decision matches.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Match: records ordered by recency.
//   - error: non-nil if the query fails.
func (r *MatchRepository) ListRecent(ctx context.Context, limit int) ([]domain.Match, error) {
	var matches []domain.Match
	if err := r.db.WithContext(ctx).
		Where("is_match = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

// CountByDecision counts match records with the given decision.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - isMatch: decision value to count.
// Returns:
//   - int64: number of records.
//   - error: non-nil if the query fails.
func (r *MatchRepository) CountByDecision(ctx context.Context, isMatch bool) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Match{}).
		Where("is_match = ?", isMatch).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

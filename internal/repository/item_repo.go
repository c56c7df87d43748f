package repository

import (
	"context"

	"github.com/refind-app/refind/internal/domain"
	"gorm.io/gorm"
)

// ItemRepository handles item data operations.
type ItemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new ItemRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ItemRepository: repository instance bound to db.
func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new item record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - item: item record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByToken retrieves an item by its tracking token.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - token: tracking token.
// Returns:
//   - *domain.Item: item record if found.
//   - error: gorm.ErrRecordNotFound if absent, other non-nil on failure.
func (r *ItemRepository) FindByToken(ctx context.Context, token string) (*domain.Item, error) {
	var item domain.Item
	if err := r.db.WithContext(ctx).First(&item, "tracking_token = ?", token).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByID retrieves an item by its primary key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: item ID.
// Returns:
//   - *domain.Item: item record if found.
//   - error: gorm.ErrRecordNotFound if absent, other non-nil on failure.
func (r *ItemRepository) FindByID(ctx context.Context, id uint) (*domain.Item, error) {
	var item domain.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByType retrieves all items of the given type.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - itemType: item type to filter by.
// Returns:
//   - []domain.Item: matching items in insertion order.
//   - error: non-nil if the query fails.
func (r *ItemRepository) ListByType(ctx context.Context, itemType domain.ItemType) ([]domain.Item, error) {
	var items []domain.Item
	if err := r.db.WithContext(ctx).
		Where("item_type = ?", itemType).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindByIDs retrieves items matching the given IDs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: item IDs.
// Returns:
//   - []domain.Item: found items; missing IDs are simply absent.
//   - error: non-nil if the query fails.
func (r *ItemRepository) FindByIDs(ctx context.Context, ids []uint) ([]domain.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CountByType counts items of the given type.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - itemType: item type to count.
// Returns:
//   - int64: number of items.
//   - error: non-nil if the query fails.
func (r *ItemRepository) CountByType(ctx context.Context, itemType domain.ItemType) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Item{}).
		Where("item_type = ?", itemType).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

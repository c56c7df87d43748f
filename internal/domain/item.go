package domain

import "time"

// ItemType distinguishes lost submissions from found submissions.
// Values are ItemTypeLost and ItemTypeFound.
type ItemType string

const (
	ItemTypeLost  ItemType = "lost"
	ItemTypeFound ItemType = "found"
)

// Opposite returns the item type searched against when this type is the query.
// Parameters: none.
// Returns:
//   - ItemType: the opposite pool type.
func (t ItemType) Opposite() ItemType {
	if t == ItemTypeLost {
		return ItemTypeFound
	}
	return ItemTypeLost
}

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	return t == ItemTypeLost || t == ItemTypeFound
}

// Item represents a lost-or-found submission.
// The tracking token is unique and immutable once assigned.
type Item struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TrackingToken string    `gorm:"type:varchar(50);uniqueIndex:idx_items_token" json:"tracking_token"`
	ItemType      ItemType  `gorm:"type:varchar(10);not null;index:idx_items_type" json:"item_type"`
	ItemName      string    `gorm:"type:varchar(200);not null" json:"item_name"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ImagePath     string    `gorm:"type:varchar(500);not null" json:"image_path"`
	ContactInfo   string    `gorm:"type:varchar(200)" json:"contact_info,omitempty"`
	Location      string    `gorm:"type:varchar(200)" json:"location,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string {
	return "items"
}

package domain

import "time"

// Match is the audit record of one evaluated (lost, found) pair.
// The lost/found orientation is fixed regardless of which side ran the search.
// Records are append-only; they are written once and only read back for
// recent-match reporting.
type Match struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	LostItemID  uint `gorm:"not null;index:idx_matches_lost" json:"lost_item_id"`
	FoundItemID uint `gorm:"not null;index:idx_matches_found" json:"found_item_id"`

	// Component scores in classifier column order.
	VisualSimilarity   float64 `json:"visual_similarity"`
	KeypointSimilarity float64 `json:"keypoint_similarity"`
	TextSimilarity     float64 `json:"text_similarity"`
	NameSimilarity     float64 `json:"name_similarity"`
	ColorMatch         float64 `json:"color_match"`

	OverallScore float64   `json:"overall_score"`
	IsMatch      bool      `gorm:"index:idx_matches_decision" json:"is_match"`
	Confidence   float64   `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for Match.
func (Match) TableName() string {
	return "matches"
}

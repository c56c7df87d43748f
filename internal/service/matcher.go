package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/refind-app/refind/internal/domain"
	"github.com/refind-app/refind/internal/logger"
)

// Sentinel errors surfaced to the transport layer.
var (
	// ErrItemNotFound marks a tracking token with no stored item.
	ErrItemNotFound = errors.New("item not found")
	// ErrQueryImage marks a query item whose stored image cannot be loaded.
	// Candidates degrade individually, the query does not.
	ErrQueryImage = errors.New("query image unavailable")
)

// Search response statuses.
const (
	StatusSuccess      = "success"
	StatusNoCandidates = "no_candidates"
)

// colorDisplayCutoff is the score above which the breakdown reports a
// colour agreement.
const colorDisplayCutoff = 0.7

// featureNames is the canonical column order of the feature vector.
var featureNames = []string{
	"visual_similarity",
	"texture_similarity",
	"description_similarity",
	"name_similarity",
	"color_match",
}

type itemFinder interface {
	FindByToken(ctx context.Context, token string) (*domain.Item, error)
	ListByType(ctx context.Context, itemType domain.ItemType) ([]domain.Item, error)
	FindByIDs(ctx context.Context, ids []uint) ([]domain.Item, error)
	CountByType(ctx context.Context, itemType domain.ItemType) (int64, error)
}

type matchAuditor interface {
	BulkCreate(ctx context.Context, matches []domain.Match) error
	ListRecent(ctx context.Context, limit int) ([]domain.Match, error)
	CountByDecision(ctx context.Context, isMatch bool) (int64, error)
}

type imageLoader interface {
	Load(ctx context.Context, path string) (image.Image, error)
	URL(path string) string
}

type matchPredictor interface {
	Predict(fv FeatureVector) (float64, bool, error)
	Loaded() bool
	Threshold() float64
	Metadata() ModelMetadata
}

type candidateShortlister interface {
	Shortlist(ctx context.Context, vector []float32, itemType domain.ItemType, limit int) ([]uint, error)
}

type imageEmbedder interface {
	Embed(ctx context.Context, img image.Image) ([]float32, error)
}

// MatcherConfig tunes result sizing and the optional shortlist stage.
type MatcherConfig struct {
	DefaultTopK   int
	MaxTopK       int
	MinPoolSize   int
	ShortlistSize int
}

// MatcherService runs the full matching flow: resolve the query item,
// select the opposite-type candidate pool, score each candidate through the
// feature extractors and the classifier, persist every decision for audit,
// and return candidates ranked by confidence.
type MatcherService struct {
	items      itemFinder
	matches    matchAuditor
	store      imageLoader
	composer   *FeatureComposer
	classifier matchPredictor
	index      candidateShortlister
	embedder   imageEmbedder
	cfg        MatcherConfig
}

// NewMatcherService creates the matching orchestrator. index and embedder
// are optional; when either is nil every search scans the full candidate
// pool.
func NewMatcherService(
	items itemFinder,
	matches matchAuditor,
	store imageLoader,
	composer *FeatureComposer,
	classifier matchPredictor,
	index candidateShortlister,
	embedder imageEmbedder,
	cfg MatcherConfig,
) *MatcherService {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 50
	}
	return &MatcherService{
		items:      items,
		matches:    matches,
		store:      store,
		composer:   composer,
		classifier: classifier,
		index:      index,
		embedder:   embedder,
		cfg:        cfg,
	}
}

// SimilarityBreakdown is the per-signal score breakdown, as percentages.
// Colour agreement is reported as Yes/No, thresholded for display.
type SimilarityBreakdown struct {
	VisualSimilarity      float64 `json:"visual_similarity"`
	TextureSimilarity     float64 `json:"texture_similarity"`
	DescriptionSimilarity float64 `json:"description_similarity"`
	NameSimilarity        float64 `json:"name_similarity"`
	ColorMatch            string  `json:"color_match"`
}

// MatchResult is one evaluated candidate in a search response. Rejected
// candidates appear too, flagged by IsMatch; the caller filters or displays
// them as it sees fit.
type MatchResult struct {
	CandidateID    uint                `json:"candidate_id"`
	CandidateToken string              `json:"candidate_token"`
	ItemName       string              `json:"item_name"`
	Description    string              `json:"description"`
	ImageURL       string              `json:"image_url"`
	ContactInfo    string              `json:"contact_info"`
	IsMatch        bool                `json:"is_match"`
	Confidence     float64             `json:"confidence"`
	Breakdown      SimilarityBreakdown `json:"similarity_breakdown"`
}

// QueryItem is the echo of the resolved query in a search response.
type QueryItem struct {
	ID          uint   `json:"id"`
	Token       string `json:"token"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SearchResponse is the result of one matching run.
type SearchResponse struct {
	Status                 string        `json:"status"`
	QueryItem              QueryItem     `json:"query_item"`
	TotalCandidatesChecked int           `json:"total_candidates_checked"`
	TotalMatchesFound      int           `json:"total_matches_found"`
	TopMatches             []MatchResult `json:"top_matches"`
}

// SearchMatches evaluates items of the opposite type against the item behind
// token and returns them ranked by confidence, truncated to topK. topK <= 0
// selects the configured default; requests above the configured maximum are
// clamped. Every evaluated candidate is persisted to the audit trail, but
// audit persistence failure does not fail the search.
func (s *MatcherService) SearchMatches(ctx context.Context, token string, topK int) (*SearchResponse, error) {
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK > s.cfg.MaxTopK {
		topK = s.cfg.MaxTopK
	}

	query, err := s.items.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: token %s", ErrItemNotFound, token)
		}
		return nil, fmt.Errorf("resolve query item: %w", err)
	}

	queryImg, err := s.store.Load(ctx, query.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrQueryImage, query.ImagePath, err)
	}

	candidateType := query.ItemType.Opposite()
	pool, err := s.selectPool(ctx, queryImg, candidateType)
	if err != nil {
		return nil, fmt.Errorf("select candidate pool: %w", err)
	}

	resp := &SearchResponse{
		Status: StatusSuccess,
		QueryItem: QueryItem{
			ID:          query.ID,
			Token:       query.TrackingToken,
			Type:        string(query.ItemType),
			Name:        query.ItemName,
			Description: query.Description,
		},
		TotalCandidatesChecked: len(pool),
		TopMatches:             []MatchResult{},
	}
	if len(pool) == 0 {
		resp.Status = StatusNoCandidates
		return resp, nil
	}

	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldToken: query.TrackingToken,
		"candidate_type":  string(candidateType),
		"pool_size":       len(pool),
	})
	start := time.Now()

	audit := make([]domain.Match, 0, len(pool))
	for i := range pool {
		result, record := s.evaluateCandidate(ctx, query, queryImg, &pool[i])
		if record == nil {
			continue
		}
		audit = append(audit, *record)
		if record.IsMatch {
			resp.TotalMatchesFound++
		}
		resp.TopMatches = append(resp.TopMatches, *result)
	}

	if len(audit) > 0 {
		if err := s.matches.BulkCreate(ctx, audit); err != nil {
			log.WithError(err).Error("failed to persist match audit records")
		}
	}

	sort.SliceStable(resp.TopMatches, func(i, j int) bool {
		return resp.TopMatches[i].Confidence > resp.TopMatches[j].Confidence
	})
	if len(resp.TopMatches) > topK {
		resp.TopMatches = resp.TopMatches[:topK]
	}

	log.WithFields(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"matches_found":        resp.TotalMatchesFound,
		"results_returned":     len(resp.TopMatches),
	}).Info("match search completed")
	return resp, nil
}

// selectPool returns the candidate items to evaluate. With the embedding
// index enabled and a pool larger than the configured minimum, the pool is
// shortlisted by visual-embedding similarity first; index failures fall back
// to the full pool.
func (s *MatcherService) selectPool(ctx context.Context, queryImg image.Image, candidateType domain.ItemType) ([]domain.Item, error) {
	pool, err := s.items.ListByType(ctx, candidateType)
	if err != nil {
		return nil, err
	}
	if s.index == nil || s.embedder == nil || len(pool) <= s.cfg.MinPoolSize {
		return pool, nil
	}

	vector, err := s.embedder.Embed(ctx, queryImg)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("query embedding failed, scanning full pool")
		return pool, nil
	}
	ids, err := s.index.Shortlist(ctx, vector, candidateType, s.cfg.ShortlistSize)
	if err != nil || len(ids) == 0 {
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("shortlist failed, scanning full pool")
		}
		return pool, nil
	}
	shortlisted, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return shortlisted, nil
}

// evaluateCandidate scores one candidate and builds its result fragment and
// audit record. Both returns are nil when the candidate is skipped: an
// unloadable image or a classification failure drops the candidate without
// aborting the batch.
func (s *MatcherService) evaluateCandidate(ctx context.Context, query *domain.Item, queryImg image.Image, cand *domain.Item) (*MatchResult, *domain.Match) {
	candImg, err := s.store.Load(ctx, cand.ImagePath)
	if err != nil {
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldCandidateID: cand.ID,
			"image_path":            cand.ImagePath,
		}).WithError(err).Warn("skipping candidate, image unavailable")
		return nil, nil
	}

	fv := s.composer.Compose(ctx, queryImg, candImg, query.Description, cand.Description, query.ItemName)
	prob, isMatch, err := s.classifier.Predict(fv)
	if err != nil {
		logger.FromContext(ctx).WithField(logger.FieldCandidateID, cand.ID).
			WithError(err).Warn("skipping candidate, classification failed")
		return nil, nil
	}

	record := &domain.Match{
		VisualSimilarity:   fv[FeatVisual],
		KeypointSimilarity: fv[FeatKeypoint],
		TextSimilarity:     fv[FeatText],
		NameSimilarity:     fv[FeatName],
		ColorMatch:         fv[FeatColor],
		OverallScore:       prob,
		IsMatch:            isMatch,
		Confidence:         prob,
	}
	if query.ItemType == domain.ItemTypeLost {
		record.LostItemID = query.ID
		record.FoundItemID = cand.ID
	} else {
		record.LostItemID = cand.ID
		record.FoundItemID = query.ID
	}

	result := &MatchResult{
		CandidateID:    cand.ID,
		CandidateToken: cand.TrackingToken,
		ItemName:       cand.ItemName,
		Description:    cand.Description,
		ImageURL:       s.store.URL(cand.ImagePath),
		ContactInfo:    cand.ContactInfo,
		IsMatch:        isMatch,
		Confidence:     asPercent(prob),
		Breakdown: SimilarityBreakdown{
			VisualSimilarity:      asPercent(fv[FeatVisual]),
			TextureSimilarity:     asPercent(fv[FeatKeypoint]),
			DescriptionSimilarity: asPercent(fv[FeatText]),
			NameSimilarity:        asPercent(fv[FeatName]),
			ColorMatch:            yesNo(fv[FeatColor] > colorDisplayCutoff),
		},
	}
	return result, record
}

// RecentMatch is one confirmed match in the recent-matches listing.
type RecentMatch struct {
	LostToken     string    `json:"lost_token"`
	LostItemName  string    `json:"lost_item_name"`
	FoundToken    string    `json:"found_token"`
	FoundItemName string    `json:"found_item_name"`
	Confidence    float64   `json:"confidence"`
	MatchedAt     time.Time `json:"matched_at"`
}

// RecentMatches lists the latest accepted matches joined with both items.
// Records whose items were deleted since the match are skipped.
func (s *MatcherService) RecentMatches(ctx context.Context, limit int) ([]RecentMatch, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultTopK
	}
	records, err := s.matches.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent matches: %w", err)
	}
	if len(records) == 0 {
		return []RecentMatch{}, nil
	}

	idSet := make(map[uint]struct{}, len(records)*2)
	for _, m := range records {
		idSet[m.LostItemID] = struct{}{}
		idSet[m.FoundItemID] = struct{}{}
	}
	ids := make([]uint, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load matched items: %w", err)
	}
	byID := make(map[uint]*domain.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	out := make([]RecentMatch, 0, len(records))
	for _, m := range records {
		lost, okL := byID[m.LostItemID]
		found, okF := byID[m.FoundItemID]
		if !okL || !okF {
			continue
		}
		out = append(out, RecentMatch{
			LostToken:     lost.TrackingToken,
			LostItemName:  lost.ItemName,
			FoundToken:    found.TrackingToken,
			FoundItemName: found.ItemName,
			Confidence:    asPercent(m.Confidence),
			MatchedAt:     m.CreatedAt,
		})
	}
	return out, nil
}

// Stats summarizes the item pools and confirmed matches.
type Stats struct {
	LostItems        int64 `json:"lost_items"`
	FoundItems       int64 `json:"found_items"`
	ConfirmedMatches int64 `json:"confirmed_matches"`
}

// Stats counts both item pools and the accepted match records.
func (s *MatcherService) Stats(ctx context.Context) (*Stats, error) {
	lost, err := s.items.CountByType(ctx, domain.ItemTypeLost)
	if err != nil {
		return nil, fmt.Errorf("count lost items: %w", err)
	}
	found, err := s.items.CountByType(ctx, domain.ItemTypeFound)
	if err != nil {
		return nil, fmt.Errorf("count found items: %w", err)
	}
	confirmed, err := s.matches.CountByDecision(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("count confirmed matches: %w", err)
	}
	return &Stats{LostItems: lost, FoundItems: found, ConfirmedMatches: confirmed}, nil
}

// ModelInfo describes the loaded classifier for the diagnostics endpoint.
type ModelInfo struct {
	Loaded       bool               `json:"loaded"`
	Threshold    float64            `json:"threshold"`
	FeatureNames []string           `json:"feature_names"`
	Version      string             `json:"version,omitempty"`
	TrainedAt    string             `json:"trained_at,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

// ModelInfo reports the classifier state and training metadata.
func (s *MatcherService) ModelInfo() ModelInfo {
	meta := s.classifier.Metadata()
	names := meta.FeatureNames
	if len(names) == 0 {
		names = featureNames
	}
	return ModelInfo{
		Loaded:       s.classifier.Loaded(),
		Threshold:    s.classifier.Threshold(),
		FeatureNames: names,
		Version:      meta.Version,
		TrainedAt:    meta.TrainedAt,
		Metrics:      meta.Metrics,
	}
}

// asPercent converts a [0,1] score to a percentage rounded to two decimals.
func asPercent(v float64) float64 {
	return math.Round(v*10000) / 100
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/refind-app/refind/internal/domain"
	"github.com/refind-app/refind/internal/logger"
	"github.com/refind-app/refind/internal/token"
)

// ErrInvalidToken marks a tracking token that fails format validation.
var ErrInvalidToken = errors.New("invalid tracking token")

// ErrMissingFields marks a submission without the required text fields.
var ErrMissingFields = errors.New("item name and description are required")

type itemWriter interface {
	Create(ctx context.Context, item *domain.Item) error
	FindByToken(ctx context.Context, token string) (*domain.Item, error)
}

type imageSaver interface {
	Save(ctx context.Context, path string, data []byte, contentType string) error
	URL(path string) string
}

type indexUpserter interface {
	UpsertItem(ctx context.Context, itemID uint, itemType domain.ItemType, vector []float32) error
}

// Submission is one incoming lost or found report.
type Submission struct {
	ItemType    domain.ItemType
	ItemName    string
	Description string
	Location    string
	ContactInfo string
	Filename    string
	ImageData   []byte
}

// SubmissionResult is returned after a report is stored.
type SubmissionResult struct {
	TrackingToken string `json:"tracking_token"`
	ItemType      string `json:"item_type"`
	ImageURL      string `json:"image_url"`
	Message       string `json:"message"`
}

// SubmissionService stores lost and found reports: it normalizes the image,
// issues a tracking token, persists the item and keeps the embedding index
// updated.
type SubmissionService struct {
	items     itemWriter
	store     imageSaver
	processor *ImageProcessor
	embedder  imageEmbedder
	index     indexUpserter
}

// NewSubmissionService creates the submission service. embedder and index
// are optional; without them items are stored but never shortlisted.
func NewSubmissionService(items itemWriter, store imageSaver, processor *ImageProcessor, embedder imageEmbedder, index indexUpserter) *SubmissionService {
	return &SubmissionService{
		items:     items,
		store:     store,
		processor: processor,
		embedder:  embedder,
		index:     index,
	}
}

// Submit validates the report, processes and stores its image, persists the
// item and returns the issued tracking token. Text fields are trimmed and
// lower-cased before storage so the extractors see canonical input. Index
// upkeep is best-effort: a failed upsert is logged, not returned.
func (s *SubmissionService) Submit(ctx context.Context, sub *Submission) (*SubmissionResult, error) {
	if !sub.ItemType.Valid() {
		return nil, fmt.Errorf("unknown item type %q", sub.ItemType)
	}
	name := strings.TrimSpace(sub.ItemName)
	description := strings.TrimSpace(sub.Description)
	if name == "" || description == "" {
		return nil, ErrMissingFields
	}

	processed, img, err := s.processor.Process(ctx, sub.Filename, sub.ImageData)
	if err != nil {
		return nil, err
	}

	trackingToken, err := token.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate tracking token: %w", err)
	}
	path := fmt.Sprintf("%s/%s_%s.jpg", sub.ItemType, trackingToken, uuid.NewString()[:8])
	if err := s.store.Save(ctx, path, processed, "image/jpeg"); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	item := &domain.Item{
		TrackingToken: trackingToken,
		ItemType:      sub.ItemType,
		ItemName:      strings.ToLower(name),
		Description:   strings.ToLower(description),
		Location:      strings.TrimSpace(sub.Location),
		ContactInfo:   strings.TrimSpace(sub.ContactInfo),
		ImagePath:     path,
		CreatedAt:     time.Now(),
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("persist item: %w", err)
	}

	s.indexItem(ctx, item, img)

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldToken: trackingToken,
		"item_type":       string(sub.ItemType),
		"image_path":      path,
	}).Info("item report stored")
	return &SubmissionResult{
		TrackingToken: trackingToken,
		ItemType:      string(sub.ItemType),
		ImageURL:      s.store.URL(path),
		Message:       "Keep this tracking token. Use it to search for matches and check your report.",
	}, nil
}

// indexItem pushes the item's visual embedding to the shortlist index.
func (s *SubmissionService) indexItem(ctx context.Context, item *domain.Item, img image.Image) {
	if s.index == nil || s.embedder == nil {
		return
	}
	vector, err := s.embedder.Embed(ctx, img)
	if err != nil {
		logger.FromContext(ctx).WithField(logger.FieldToken, item.TrackingToken).
			WithError(err).Warn("embedding failed, item not indexed")
		return
	}
	if err := s.index.UpsertItem(ctx, item.ID, item.ItemType, vector); err != nil {
		logger.FromContext(ctx).WithField(logger.FieldToken, item.TrackingToken).
			WithError(err).Warn("index upsert failed")
	}
}

// TrackingInfo is the public view of a stored report.
type TrackingInfo struct {
	TrackingToken string    `json:"tracking_token"`
	ItemType      string    `json:"item_type"`
	ItemName      string    `json:"item_name"`
	Description   string    `json:"description"`
	Location      string    `json:"location,omitempty"`
	ImageURL      string    `json:"image_url"`
	ReportedAt    time.Time `json:"reported_at"`
}

// Track looks up a report by its tracking token.
func (s *SubmissionService) Track(ctx context.Context, trackingToken string) (*TrackingInfo, error) {
	if !token.Validate(trackingToken) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, trackingToken)
	}
	item, err := s.items.FindByToken(ctx, trackingToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: token %s", ErrItemNotFound, trackingToken)
		}
		return nil, fmt.Errorf("lookup item: %w", err)
	}
	return &TrackingInfo{
		TrackingToken: item.TrackingToken,
		ItemType:      string(item.ItemType),
		ItemName:      item.ItemName,
		Description:   item.Description,
		Location:      item.Location,
		ImageURL:      s.store.URL(item.ImagePath),
		ReportedAt:    item.CreatedAt,
	}, nil
}

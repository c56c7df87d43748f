package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitryikh/leaves"

	"github.com/refind-app/refind/internal/logger"
)

// ErrModelNotLoaded is returned when a prediction is requested before the
// model artifacts were loaded. Callers must treat this as fatal for the
// search rather than substituting a default decision.
var ErrModelNotLoaded = errors.New("classifier model not loaded")

// Artifact file names expected under the model directory.
const (
	modelFileName     = "xgboost_model.bin"
	thresholdFileName = "best_threshold.txt"
	metadataFileName  = "model_metadata.json"

	defaultThreshold = 0.5
)

// ensembleModel is the prediction surface of a loaded gradient-boosted
// ensemble.
type ensembleModel interface {
	PredictSingle(fvals []float64, nEstimators int) float64
	PredictDense(vals []float64, nrows int, ncols int, predictions []float64, nEstimators int, nThreads int) error
}

// ModelMetadata describes the training run that produced the loaded model.
type ModelMetadata struct {
	Version      string             `json:"version,omitempty"`
	TrainedAt    string             `json:"trained_at,omitempty"`
	FeatureNames []string           `json:"feature_names,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

// MatchClassifier turns a feature vector into a match probability and a
// thresholded decision using a gradient-boosted tree ensemble. The decision
// threshold is tuned offline and shipped alongside the model.
type MatchClassifier struct {
	model     ensembleModel
	threshold float64
	metadata  ModelMetadata
}

// NewMatchClassifier returns an unloaded classifier. Load must succeed
// before predictions are possible.
func NewMatchClassifier() *MatchClassifier {
	return &MatchClassifier{threshold: defaultThreshold}
}

// Load reads the model binary, decision threshold and metadata from dir.
// A missing threshold or metadata file falls back to defaults; a missing or
// unreadable model binary is an error.
func (c *MatchClassifier) Load(dir string) error {
	modelPath := filepath.Join(dir, modelFileName)
	model, err := leaves.XGEnsembleFromFile(modelPath, true)
	if err != nil {
		return fmt.Errorf("load model %s: %w", modelPath, err)
	}
	c.model = model

	c.threshold = defaultThreshold
	thresholdPath := filepath.Join(dir, thresholdFileName)
	if raw, err := os.ReadFile(thresholdPath); err == nil {
		t, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			return fmt.Errorf("parse threshold %s: %w", thresholdPath, err)
		}
		c.threshold = t
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read threshold %s: %w", thresholdPath, err)
	}

	metadataPath := filepath.Join(dir, metadataFileName)
	if raw, err := os.ReadFile(metadataPath); err == nil {
		if err := json.Unmarshal(raw, &c.metadata); err != nil {
			return fmt.Errorf("parse metadata %s: %w", metadataPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read metadata %s: %w", metadataPath, err)
	}

	logger.GetDefault().WithFields(logger.Fields{
		logger.FieldComponent: "classifier",
		"model_path":          modelPath,
		"threshold":           c.threshold,
	}).Info("match classifier loaded")
	return nil
}

// Loaded reports whether the model artifacts have been loaded.
func (c *MatchClassifier) Loaded() bool {
	return c.model != nil
}

// Threshold returns the active decision threshold.
func (c *MatchClassifier) Threshold() float64 {
	return c.threshold
}

// Metadata returns the training metadata shipped with the model.
func (c *MatchClassifier) Metadata() ModelMetadata {
	return c.metadata
}

// Predict returns the match probability for the feature vector and the
// decision probability >= threshold.
func (c *MatchClassifier) Predict(fv FeatureVector) (float64, bool, error) {
	if c.model == nil {
		return 0, false, ErrModelNotLoaded
	}
	prob := c.model.PredictSingle(fv[:], 0)
	return prob, prob >= c.threshold, nil
}

// PredictBatch scores many feature vectors in one pass over the ensemble.
// The threshold rule is applied per row, so probs[i] and decisions[i] match
// what Predict would return for fvs[i].
func (c *MatchClassifier) PredictBatch(fvs []FeatureVector) ([]float64, []bool, error) {
	if c.model == nil {
		return nil, nil, ErrModelNotLoaded
	}
	if len(fvs) == 0 {
		return nil, nil, nil
	}
	vals := make([]float64, 0, len(fvs)*FeatureCount)
	for _, fv := range fvs {
		vals = append(vals, fv[:]...)
	}
	probs := make([]float64, len(fvs))
	if err := c.model.PredictDense(vals, len(fvs), FeatureCount, probs, 0, 1); err != nil {
		return nil, nil, fmt.Errorf("batch predict: %w", err)
	}
	decisions := make([]bool, len(fvs))
	for i, p := range probs {
		decisions[i] = p >= c.threshold
	}
	return probs, decisions, nil
}

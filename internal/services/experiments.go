package services

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

// ExperimentAnalyzer derives A/B variant counts from event context after
// the fact. It reports raw conversions and views only; significance testing
// is the caller's concern.
type ExperimentAnalyzer struct {
	repo   storage.Repository
	logger *logrus.Logger
}

func NewExperimentAnalyzer(repo storage.Repository, logger *logrus.Logger) *ExperimentAnalyzer {
	return &ExperimentAnalyzer{repo: repo, logger: logger}
}

// GetExperimentResults scans context-bearing events in the range, keeps
// those tagged with the experiment, and groups them by variant. Conversions
// count completed events; views count all matching events.
func (a *ExperimentAnalyzer) GetExperimentResults(ctx context.Context, experimentName string, from, to time.Time) ([]models.ExperimentVariantResult, error) {
	events, err := a.repo.EventsWithContext(ctx, from, to)
	if err != nil {
		return nil, err
	}

	variants := make(map[string]*models.ExperimentVariantResult)
	for i := range events {
		event := &events[i]
		if event.Context == nil || event.Context.ExperimentName != experimentName {
			continue
		}
		variant := event.Context.ExperimentVariant
		result, ok := variants[variant]
		if !ok {
			result = &models.ExperimentVariantResult{Variant: variant}
			variants[variant] = result
		}
		result.Views++
		if event.Action == models.ActionCompleted {
			result.Conversions++
		}
	}

	results := make([]models.ExperimentVariantResult, 0, len(variants))
	for _, result := range variants {
		results = append(results, *result)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Variant < results[j].Variant
	})

	a.logger.WithFields(logrus.Fields{
		"experiment": experimentName,
		"variants":   len(results),
	}).Debug("Computed experiment results")
	return results, nil
}

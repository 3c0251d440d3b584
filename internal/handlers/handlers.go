package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/services"
)

// Handlers bundles the HTTP surface of the analytics core.
type Handlers struct {
	Behavior       *BehaviorHandler
	Content        *ContentHandler
	Recommendation *RecommendationHandler
	Experiment     *ExperimentHandler
	Health         *HealthHandler
	Admin          *AdminHandler
}

func New(logger *logrus.Logger, svc *services.Services) *Handlers {
	return &Handlers{
		Behavior:       NewBehaviorHandler(logger, svc.Behavior, svc.Similarity),
		Content:        NewContentHandler(logger, svc.ContentMetrics),
		Recommendation: NewRecommendationHandler(logger, svc.Aggregator),
		Experiment:     NewExperimentHandler(logger, svc.Experiments),
		Health:         NewHealthHandler(logger, svc.Health),
		Admin:          NewAdminHandler(logger, svc.Behavior),
	}
}

//go:build wireinject
// +build wireinject

package di

import (
	"PetroPulse/pkg/config"
	"PetroPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Analytics engines
		ProvidePreprocessor,
		ProvideForecaster,
		ProvideAnomalyScorer,

		// Infrastructure sinks
		ProvideClickHouseArchive,
		ProvideAlertPublisher,
		ProvideSnapshotCache,
		ProvideModelStore,
		ProvideSnapshotStream,

		// Use case and presentation
		ProvideOrchestrator,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

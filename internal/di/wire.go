// Package di wires databases, repositories, and services together.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/config"
	"github.com/frontieralpha/cvrf/internal/database"
	"github.com/frontieralpha/cvrf/internal/events"
	"github.com/frontieralpha/cvrf/internal/modules/beliefs"
	"github.com/frontieralpha/cvrf/internal/modules/cycles"
	"github.com/frontieralpha/cvrf/internal/modules/episodes"
	"github.com/frontieralpha/cvrf/internal/reliability"
	"github.com/frontieralpha/cvrf/internal/scheduler"
)

// Container holds every wired component of the engine
type Container struct {
	// Databases
	EpisodesDB *database.DB
	BeliefsDB  *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	EpisodeRepo *episodes.EpisodeRepository
	BeliefRepo  *beliefs.BeliefRepository
	CycleRepo   *cycles.CycleRepository

	// Engine components
	Comparator *cycles.Comparator
	Extractor  *cycles.Extractor
	Classifier beliefs.RegimeClassifier
	Updater    *beliefs.Updater

	// Services
	EpisodeService *episodes.Service
	BeliefService  *beliefs.Service
	CycleService   *cycles.Service

	// Handlers
	EpisodeHandlers *episodes.Handlers
	BeliefHandlers  *beliefs.Handlers
	CycleHandlers   *cycles.Handlers

	// Background work
	Scheduler     *scheduler.Scheduler
	BackupService *reliability.BackupService // nil when backups are disabled
}

// Databases returns the engine databases keyed by name, for health checks
// and maintenance
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"episodes": c.EpisodesDB,
		"beliefs":  c.BeliefsDB,
	}
}

// Close shuts down the databases. Call after the scheduler and server stop.
func (c *Container) Close() {
	if c.EpisodesDB != nil {
		c.EpisodesDB.Close()
	}
	if c.BeliefsDB != nil {
		c.BeliefsDB.Close()
	}
}

// Wire builds the full dependency graph from configuration
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{}

	// episodes.db - episode lifecycle and decision log
	episodesDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/episodes.db",
		Profile: database.ProfileStandard,
		Name:    "episodes",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize episodes database: %w", err)
	}
	c.EpisodesDB = episodesDB

	// beliefs.db - belief state and cycle history. Colocated so a belief
	// write and its cycle record commit in one transaction.
	beliefsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/beliefs.db",
		Profile: database.ProfileLedger, // cycle history is an audit trail
		Name:    "beliefs",
	})
	if err != nil {
		episodesDB.Close()
		return nil, fmt.Errorf("failed to initialize beliefs database: %w", err)
	}
	c.BeliefsDB = beliefsDB

	for name, db := range c.Databases() {
		if err := db.Migrate(); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
		}
	}

	// Events
	c.EventBus = events.NewBus()
	c.EventManager = events.NewManager(c.EventBus, log)

	// Repositories
	c.EpisodeRepo = episodes.NewEpisodeRepository(episodesDB.Conn(), log)
	c.BeliefRepo = beliefs.NewBeliefRepository(beliefsDB.Conn(), log)
	c.CycleRepo = cycles.NewCycleRepository(beliefsDB.Conn(), log)

	// Engine pipeline
	c.Comparator = cycles.NewComparator()
	c.Extractor = cycles.NewExtractor(cfg.Engine.InsightThreshold, cfg.Engine.MaxInsights)
	c.Classifier = beliefs.NewThresholdClassifier(cfg.Engine)
	c.Updater = beliefs.NewUpdater(
		beliefsDB.Conn(),
		c.BeliefRepo,
		c.CycleRepo,
		c.Comparator,
		c.Extractor,
		c.Classifier,
		c.EventManager,
		cfg.Engine,
		log,
	)

	// Services
	c.EpisodeService = episodes.NewService(c.EpisodeRepo, c.Updater, c.EventManager, log)
	c.BeliefService = beliefs.NewService(c.BeliefRepo, beliefs.NewConstraintDeriver(), log)
	c.CycleService = cycles.NewService(c.CycleRepo, cycles.NewAnalyzer(c.CycleRepo, log), log)

	// Handlers
	c.EpisodeHandlers = episodes.NewHandlers(c.EpisodeService, log)
	c.BeliefHandlers = beliefs.NewHandlers(c.BeliefService, log)
	c.CycleHandlers = cycles.NewHandlers(c.CycleService, log)

	// Background maintenance
	c.Scheduler = scheduler.New(log)

	if cfg.Backup.Enabled {
		storageClient, err := reliability.NewStorageClient(ctx, cfg.Backup, log)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize backup storage client: %w", err)
		}
		c.BackupService = reliability.NewBackupService(
			c.Databases(),
			storageClient,
			c.EventManager,
			cfg.DataDir,
			cfg.Backup.RetentionDays,
			log,
		)
	}

	maintenance := reliability.NewMaintenanceJob(c.Databases(), c.BackupService, log)
	if err := c.Scheduler.AddJob(cfg.Backup.Schedule, maintenance); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to schedule maintenance job: %w", err)
	}

	return c, nil
}

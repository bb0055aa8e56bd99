package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/database"
)

// MaintenanceJob is the nightly housekeeping pass: integrity checks and WAL
// checkpoints on every database, then a cloud backup with rotation when
// backups are configured.
type MaintenanceJob struct {
	databases     map[string]*database.DB
	backupService *BackupService // nil when backups are disabled
	log           zerolog.Logger
}

// NewMaintenanceJob creates the nightly maintenance job
func NewMaintenanceJob(
	databases map[string]*database.DB,
	backupService *BackupService,
	log zerolog.Logger,
) *MaintenanceJob {
	return &MaintenanceJob{
		databases:     databases,
		backupService: backupService,
		log:           log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *MaintenanceJob) Name() string {
	return "nightly_maintenance"
}

// Run executes the maintenance pass. Checkpoint failures are logged but do
// not abort the backup; a failed integrity check does.
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	for name, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health check failed for %s: %w", name, err)
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}

	if j.backupService == nil {
		j.log.Debug().Msg("Backups disabled, maintenance finished after checkpoints")
		return nil
	}

	if err := j.backupService.CreateAndUpload(ctx); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	if err := j.backupService.RotateOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}

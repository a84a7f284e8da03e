package jobs

import (
	"context"
	"fmt"

	"copyengine/internal/config"
)

// Store persists jobs and their artefacts.
type Store interface {
	CreateJob(ctx context.Context, kind Kind, meta map[string]any) (Job, error)
	// UpdateJobStatus returns ok=false without error when the job is unknown.
	UpdateJobStatus(ctx context.Context, id string, status Status, patch Patch) (Job, bool, error)
	GetJob(ctx context.Context, id string) (Job, bool, error)

	SaveCopyOutput(ctx context.Context, output CopyOutput) error
	GetCopyOutput(ctx context.Context, jobID string) (CopyOutput, bool, error)

	// SetRequestMapping records clientRequestID -> jobID once. When the key is
	// already taken the existing job id is returned with created=false.
	SetRequestMapping(ctx context.Context, clientRequestID, jobID string) (string, bool, error)
	GetJobByRequestID(ctx context.Context, clientRequestID string) (string, bool, error)

	SaveProductProfile(ctx context.Context, profile ProductProfile) (ProductProfile, error)
	GetProductProfile(ctx context.Context, profileID string) (ProductProfile, bool, error)

	Close() error
}

// Open builds the store selected by cfg.Store.Driver.
func Open(cfg *config.Config) (Store, error) {
	driver := "memory"
	if cfg != nil && cfg.Store.Driver != "" {
		driver = cfg.Store.Driver
	}
	switch driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(context.Background())
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps all state in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	jobs     map[string]Job
	outputs  map[string]CopyOutput
	requests map[string]string
	profiles map[string]ProductProfile
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		jobs:     make(map[string]Job),
		outputs:  make(map[string]CopyOutput),
		requests: make(map[string]string),
		profiles: make(map[string]ProductProfile),
	}
}

// CreateJob stores a new queued job of kind.
func (s *MemoryStore) CreateJob(_ context.Context, kind Kind, meta map[string]any) (Job, error) {
	if !kind.valid() {
		return Job{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	now := s.now().UTC()
	job := Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusQueued,
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job = job.clone()

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job.clone(), nil
}

// UpdateJobStatus moves a job to status and applies patch when the transition is allowed.
func (s *MemoryStore) UpdateJobStatus(_ context.Context, id string, status Status, patch Patch) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false, nil
	}
	if err := checkTransition(job, status); err != nil {
		return job.clone(), true, err
	}
	job.Status = status
	patch.apply(&job)
	job.UpdatedAt = s.now().UTC()
	s.jobs[id] = job
	return job.clone(), true, nil
}

// GetJob returns a copy of the job.
func (s *MemoryStore) GetJob(_ context.Context, id string) (Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false, nil
	}
	return job.clone(), true, nil
}

// SaveCopyOutput stores output once per job.
func (s *MemoryStore) SaveCopyOutput(_ context.Context, output CopyOutput) error {
	if output.CreatedAt.IsZero() {
		output.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outputs[output.JobID]; exists {
		return fmt.Errorf("%w: job %s", ErrOutputExists, output.JobID)
	}
	s.outputs[output.JobID] = output.clone()
	return nil
}

// GetCopyOutput returns the output saved for jobID.
func (s *MemoryStore) GetCopyOutput(_ context.Context, jobID string) (CopyOutput, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output, ok := s.outputs[jobID]
	if !ok {
		return CopyOutput{}, false, nil
	}
	return output.clone(), true, nil
}

// SetRequestMapping claims clientRequestID for jobID unless another job holds it.
func (s *MemoryStore) SetRequestMapping(_ context.Context, clientRequestID, jobID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.requests[clientRequestID]; ok {
		return existing, false, nil
	}
	s.requests[clientRequestID] = jobID
	return jobID, true, nil
}

// GetJobByRequestID returns the job that claimed clientRequestID.
func (s *MemoryStore) GetJobByRequestID(_ context.Context, clientRequestID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobID, ok := s.requests[clientRequestID]
	return jobID, ok, nil
}

// SaveProductProfile stores profile, assigning an id when it has none.
func (s *MemoryStore) SaveProductProfile(_ context.Context, profile ProductProfile) (ProductProfile, error) {
	if profile.ProfileID == "" {
		profile.ProfileID = uuid.NewString()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.profiles[profile.ProfileID] = profile.clone()
	s.mu.Unlock()
	return profile.clone(), nil
}

// GetProductProfile returns a copy of the profile.
func (s *MemoryStore) GetProductProfile(_ context.Context, profileID string) (ProductProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[profileID]
	if !ok {
		return ProductProfile{}, false, nil
	}
	return profile.clone(), true, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"copyengine/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	sqliteLockedCode        = 6
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const jobColumns = "id, kind, status, retry_count, error_code, error_message, transcript_text, output_ref, media_url, play_url, meta_json, created_at, updated_at"

// SQLStore keeps state in a private in-memory SQLite database.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite creates a fresh in-memory database with the job schema applied.
func OpenSQLite(ctx context.Context) (*SQLStore, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// The database lives as long as one connection stays open.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}

	store := &SQLStore{db: db, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the connection, dropping all data.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// Extended result codes keep the primary code in the low byte.
		switch coder.Code() & 0xff {
		case sqliteBusyCode, sqliteLockedCode:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLStore) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *SQLStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateJob inserts a new queued job of kind.
func (s *SQLStore) CreateJob(ctx context.Context, kind Kind, meta map[string]any) (Job, error) {
	if !kind.valid() {
		return Job{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	metaJSON, err := marshalOptional(meta)
	if err != nil {
		return Job{}, fmt.Errorf("encode job meta: %w", err)
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
	err = s.execWithoutResultRetry(ctx,
		"INSERT INTO jobs ("+jobColumns+") VALUES (?, ?, ?, 0, NULL, NULL, NULL, NULL, NULL, NULL, ?, ?, ?)",
		job.ID, string(kind), string(StatusQueued), metaJSON, formatTime(now), formatTime(now),
	)
	if err != nil {
		return Job{}, fmt.Errorf("insert job: %w", err)
	}
	return job.clone(), nil
}

// UpdateJobStatus moves a job to status inside a transaction when the transition is allowed.
func (s *SQLStore) UpdateJobStatus(ctx context.Context, id string, status Status, patch Patch) (Job, bool, error) {
	ctx = ensureContext(ctx)
	var (
		result Job
		found  bool
		txErr  error
	)
	err := retryOnBusy(ctx, func() error {
		result, found, txErr = s.updateJobTx(ctx, id, status, patch)
		return txErr
	})
	if err != nil && !errors.Is(err, ErrInvalidTransition) {
		return Job{}, false, fmt.Errorf("update job %s: %w", id, err)
	}
	return result, found, err
}

func (s *SQLStore) updateJobTx(ctx context.Context, id string, status Status, patch Patch) (Job, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Job{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	job, err := scanJob(tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	if err := checkTransition(job, status); err != nil {
		return job, true, err
	}

	job.Status = status
	patch.apply(&job)
	job.UpdatedAt = s.now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, retry_count = ?, error_code = ?, error_message = ?,
		transcript_text = ?, output_ref = ?, media_url = ?, play_url = ?, updated_at = ? WHERE id = ?`,
		string(job.Status), job.RetryCount, nullableString(string(job.ErrorCode)), nullableString(job.ErrorMessage),
		nullableString(job.TranscriptText), nullableString(job.OutputRef), nullableString(job.MediaURL),
		nullableString(job.PlayURL), formatTime(job.UpdatedAt), id,
	)
	if err != nil {
		return Job{}, true, err
	}
	if err := tx.Commit(); err != nil {
		return Job{}, true, err
	}
	return job, true, nil
}

// GetJob loads one job.
func (s *SQLStore) GetJob(ctx context.Context, id string) (Job, bool, error) {
	ctx = ensureContext(ctx)
	job, err := scanJob(s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, true, nil
}

// SaveCopyOutput inserts output once per job.
func (s *SQLStore) SaveCopyOutput(ctx context.Context, output CopyOutput) error {
	if output.CreatedAt.IsZero() {
		output.CreatedAt = s.now().UTC()
	}
	versions, err := json.Marshal(output.Versions)
	if err != nil {
		return fmt.Errorf("encode versions: %w", err)
	}
	report, err := json.Marshal(output.QcReport)
	if err != nil {
		return fmt.Errorf("encode qc report: %w", err)
	}
	meta, err := json.Marshal(output.ModelMeta)
	if err != nil {
		return fmt.Errorf("encode model meta: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO copy_outputs (job_id, source_text, versions_json, qc_report_json, model_meta_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(job_id) DO NOTHING`,
		output.JobID, output.SourceText, string(versions), string(report), string(meta), formatTime(output.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert copy output: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: job %s", ErrOutputExists, output.JobID)
	}
	return nil
}

// GetCopyOutput loads the output saved for jobID.
func (s *SQLStore) GetCopyOutput(ctx context.Context, jobID string) (CopyOutput, bool, error) {
	ctx = ensureContext(ctx)
	var (
		output                      CopyOutput
		versions, report, meta, raw string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT job_id, source_text, versions_json, qc_report_json, model_meta_json, created_at FROM copy_outputs WHERE job_id = ?",
		jobID,
	).Scan(&output.JobID, &output.SourceText, &versions, &report, &meta, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return CopyOutput{}, false, nil
	}
	if err != nil {
		return CopyOutput{}, false, fmt.Errorf("get copy output %s: %w", jobID, err)
	}
	if err := json.Unmarshal([]byte(versions), &output.Versions); err != nil {
		return CopyOutput{}, false, fmt.Errorf("decode versions: %w", err)
	}
	if err := json.Unmarshal([]byte(report), &output.QcReport); err != nil {
		return CopyOutput{}, false, fmt.Errorf("decode qc report: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &output.ModelMeta); err != nil {
		return CopyOutput{}, false, fmt.Errorf("decode model meta: %w", err)
	}
	output.CreatedAt, _ = parseTimeString(raw)
	return output, true, nil
}

// SetRequestMapping claims clientRequestID for jobID unless another job holds it.
func (s *SQLStore) SetRequestMapping(ctx context.Context, clientRequestID, jobID string) (string, bool, error) {
	res, err := s.execWithRetry(ctx,
		"INSERT INTO request_mappings (client_request_id, job_id) VALUES (?, ?) ON CONFLICT(client_request_id) DO NOTHING",
		clientRequestID, jobID,
	)
	if err != nil {
		return "", false, fmt.Errorf("insert request mapping: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 1 {
		return jobID, true, nil
	}
	existing, ok, err := s.GetJobByRequestID(ctx, clientRequestID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, fmt.Errorf("request mapping %s vanished", clientRequestID)
	}
	return existing, false, nil
}

// GetJobByRequestID returns the job that claimed clientRequestID.
func (s *SQLStore) GetJobByRequestID(ctx context.Context, clientRequestID string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var jobID string
	err := s.db.QueryRowContext(ctx,
		"SELECT job_id FROM request_mappings WHERE client_request_id = ?", clientRequestID,
	).Scan(&jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get request mapping: %w", err)
	}
	return jobID, true, nil
}

// SaveProductProfile inserts profile, assigning an id when it has none.
func (s *SQLStore) SaveProductProfile(ctx context.Context, profile ProductProfile) (ProductProfile, error) {
	if profile.ProfileID == "" {
		profile.ProfileID = uuid.NewString()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = s.now().UTC()
	}
	points, err := json.Marshal(nonNil(profile.SellingPoints))
	if err != nil {
		return ProductProfile{}, fmt.Errorf("encode selling points: %w", err)
	}
	forbidden, err := json.Marshal(nonNil(profile.ForbiddenWords))
	if err != nil {
		return ProductProfile{}, fmt.Errorf("encode forbidden words: %w", err)
	}
	err = s.execWithoutResultRetry(ctx,
		`INSERT OR REPLACE INTO product_profiles
		(profile_id, product_name, category, selling_points_json, target_audience, cta, forbidden_words_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ProfileID, profile.ProductName, profile.Category, string(points),
		profile.TargetAudience, profile.CTA, string(forbidden), formatTime(profile.CreatedAt),
	)
	if err != nil {
		return ProductProfile{}, fmt.Errorf("insert product profile: %w", err)
	}
	return profile.clone(), nil
}

// GetProductProfile loads one profile.
func (s *SQLStore) GetProductProfile(ctx context.Context, profileID string) (ProductProfile, bool, error) {
	ctx = ensureContext(ctx)
	var (
		profile           ProductProfile
		points, forbidden string
		raw               string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT profile_id, product_name, category, selling_points_json, target_audience, cta, forbidden_words_json, created_at
		FROM product_profiles WHERE profile_id = ?`, profileID,
	).Scan(&profile.ProfileID, &profile.ProductName, &profile.Category, &points,
		&profile.TargetAudience, &profile.CTA, &forbidden, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ProductProfile{}, false, nil
	}
	if err != nil {
		return ProductProfile{}, false, fmt.Errorf("get product profile %s: %w", profileID, err)
	}
	if err := json.Unmarshal([]byte(points), &profile.SellingPoints); err != nil {
		return ProductProfile{}, false, fmt.Errorf("decode selling points: %w", err)
	}
	if err := json.Unmarshal([]byte(forbidden), &profile.ForbiddenWords); err != nil {
		return ProductProfile{}, false, fmt.Errorf("decode forbidden words: %w", err)
	}
	profile.CreatedAt, _ = parseTimeString(raw)
	return profile, true, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (Job, error) {
	var (
		id, kind, status       string
		retryCount             int
		errorCode, errorMsg    sql.NullString
		transcript, outputRef  sql.NullString
		mediaURL, playURL      sql.NullString
		metaJSON               sql.NullString
		createdRaw, updatedRaw string
	)
	if err := scanner.Scan(&id, &kind, &status, &retryCount, &errorCode, &errorMsg,
		&transcript, &outputRef, &mediaURL, &playURL, &metaJSON, &createdRaw, &updatedRaw); err != nil {
		return Job{}, err
	}
	job := Job{
		ID:             id,
		Kind:           Kind(kind),
		Status:         Status(status),
		RetryCount:     retryCount,
		ErrorMessage:   errorMsg.String,
		TranscriptText: transcript.String,
		OutputRef:      outputRef.String,
		MediaURL:       mediaURL.String,
		PlayURL:        playURL.String,
	}
	job.ErrorCode = services.ErrorCode(errorCode.String)
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &job.Meta); err != nil {
			return Job{}, fmt.Errorf("decode job meta: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func marshalOptional(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

package api

import (
	"time"

	"copyengine/internal/copygen"
	"copyengine/internal/jobs"
	"copyengine/internal/services"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// Accepted mode literals.
const (
	ModeRewrite      = "rewrite"
	ModeProductAdapt = "product_adapt"
)

// TaskRequest submits share text for transcription.
type TaskRequest struct {
	ShareText       string `json:"shareText"`
	ClientRequestID string `json:"clientRequestId"`
}

// TaskAccepted acknowledges a transcription task.
type TaskAccepted struct {
	TaskID string      `json:"taskId"`
	Status jobs.Status `json:"status"`
}

// CopyVariantsRequest asks for close rewrites of SourceText. Mode,
// VariantCount and Strictness are optional; omitted values take the only
// accepted literal.
type CopyVariantsRequest struct {
	SourceText   string `json:"sourceText"`
	Mode         string `json:"mode,omitempty"`
	VariantCount *int   `json:"variantCount,omitempty"`
	Strictness   string `json:"strictness,omitempty"`
}

// ProductVariantsRequest asks for rewrites that promote ProductInfo.
type ProductVariantsRequest struct {
	SourceText   string              `json:"sourceText"`
	Mode         string              `json:"mode,omitempty"`
	VariantCount *int                `json:"variantCount,omitempty"`
	Strictness   string              `json:"strictness,omitempty"`
	ProductInfo  copygen.ProductInfo `json:"productInfo"`
}

// JobAccepted acknowledges a copy job.
type JobAccepted struct {
	JobID  string      `json:"jobId"`
	Status jobs.Status `json:"status"`
}

// ErrorResponse is returned by every failing route.
type ErrorResponse struct {
	ErrorCode    services.ErrorCode `json:"errorCode"`
	ErrorMessage string             `json:"errorMessage"`
}

// JobFailure is returned when a succeeded copy job cannot be read back.
type JobFailure struct {
	JobID        string             `json:"jobId"`
	Status       jobs.Status        `json:"status"`
	ErrorCode    services.ErrorCode `json:"errorCode"`
	ErrorMessage string             `json:"errorMessage"`
}

// Health is the liveness payload.
type Health struct {
	Status string `json:"status"`
	Now    string `json:"now"`
}

// NewHealth reports ok at now.
func NewHealth(now time.Time) Health {
	return Health{Status: "ok", Now: now.UTC().Format(dateTimeFormat)}
}

// Int returns a pointer to n, for building requests with an explicit
// variant count.
func Int(n int) *int {
	return &n
}

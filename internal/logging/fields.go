package logging

// Standardized structured logging keys.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldJobKind       = "job_kind"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldAlert         = "alert"
	FieldEventType     = "event_type"
	FieldErrorCode     = "error_code"
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
	FieldAttempt       = "attempt"
	FieldProvider      = "provider"
)

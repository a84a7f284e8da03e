// Package api defines the wire-format types of the copyengine HTTP API, the
// request validation applied before any job is created, and a small client
// used by the CLI.
//
// # Key Types
//
// TaskRequest/TaskAccepted: share-text transcription submissions.
//
// CopyVariantsRequest/ProductVariantsRequest/JobAccepted: copy generation
// submissions for the rewrite and product-adapt modes.
//
// ErrorResponse: the {errorCode, errorMessage} body every failing route
// returns.
//
// # Validation
//
// Decode* functions read a JSON body, apply defaults for omitted optional
// fields and reject anything that does not match the accepted literals with
// an INVALID_INPUT error naming the offending field.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Poll responses reuse transcript.TaskView and
// copygen.JobView so the daemon and the client agree on one shape.
package api

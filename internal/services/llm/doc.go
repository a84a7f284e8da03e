// Package llm provides an OpenAI-compatible chat client used to draft copy
// variants through Volcengine Ark.
//
// # Configuration
//
// Requires api_key and model, and optionally base_url, temperature, timeout.
// When unconfigured, Configured reports false and callers fall back to the
// heuristic rewriter.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON object.
// DecodeLLMJSON: decode content that may be wrapped in a ```json fence.
//
// # Retry Behaviour
//
// The client issues one request by default. WithRetryMaxAttempts enables
// retries on HTTP 408/429/5xx, empty content, and timeouts with exponential
// backoff. Context cancellation aborts retries immediately.
//
// # Failure classes
//
// IsUnavailable groups timeouts, non-2xx responses, and empty content; the
// copy engine reports those as MODEL_TIMEOUT.
package llm

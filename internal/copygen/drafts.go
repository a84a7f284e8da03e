package copygen

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"copyengine/internal/services/llm"
)

// Drafter is the chat model surface the engine needs. *llm.Client satisfies it.
type Drafter interface {
	Configured() bool
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

var (
	errSchemaInvalid = errors.New("model output schema invalid")
	errCountInvalid  = errors.New("model output count invalid")
)

var fencedJSONPattern = regexp.MustCompile("(?is)```json\\s*(.*?)```")

type versionsPayload struct {
	Versions []string `json:"versions"`
}

func requestDrafts(ctx context.Context, drafter Drafter, system, user string, count int) ([]string, error) {
	content, err := drafter.CompleteJSON(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return extractVersions(content, count)
}

// extractVersions accepts the model answer either as a bare JSON object or
// inside one ```json fence and returns exactly count trimmed versions.
func extractVersions(content string, count int) ([]string, error) {
	body := strings.TrimSpace(content)
	if match := fencedJSONPattern.FindStringSubmatch(body); match != nil && strings.TrimSpace(match[1]) != "" {
		body = strings.TrimSpace(match[1])
	}
	var payload versionsPayload
	if err := llm.DecodeLLMJSON(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", errSchemaInvalid, err)
	}
	if payload.Versions == nil {
		return nil, fmt.Errorf("%w: versions missing", errSchemaInvalid)
	}
	versions := make([]string, 0, count)
	for _, version := range payload.Versions {
		if trimmed := strings.TrimSpace(version); trimmed != "" {
			versions = append(versions, trimmed)
		}
		if len(versions) == count {
			break
		}
	}
	if len(versions) != count {
		return nil, fmt.Errorf("%w: got %d, want %d", errCountInvalid, len(versions), count)
	}
	return versions, nil
}

package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"copyengine/internal/jobs"
	"copyengine/internal/logging"
	"copyengine/internal/services"
	"copyengine/internal/workflow"
)

// Launcher starts background job tasks. *workflow.Launcher satisfies it.
type Launcher interface {
	Go(jobID, stage string, task workflow.Task) error
}

// LinkResolver turns an extracted share link into a media URL.
type LinkResolver interface {
	Resolve(ctx context.Context, rawURL, shareText string) (string, error)
}

// SpeechRecognizer produces transcript text for a media URL.
type SpeechRecognizer interface {
	Transcribe(ctx context.Context, mediaURL, shareText string) (string, error)
}

// MediaRelay hands out public relay URLs for resolved media.
type MediaRelay interface {
	CreateProxyURL(sourceURL, baseURL string) (string, bool)
}

// Dependencies wires a Pipeline. Relay and PublicBaseURL are optional.
type Dependencies struct {
	Store         jobs.Store
	Launcher      Launcher
	Resolver      LinkResolver
	Recognizer    SpeechRecognizer
	Relay         MediaRelay
	PublicBaseURL string
	Logger        *slog.Logger
}

// Pipeline runs share-link transcription tasks.
type Pipeline struct {
	store         jobs.Store
	launcher      Launcher
	resolver      LinkResolver
	recognizer    SpeechRecognizer
	relay         MediaRelay
	publicBaseURL string
	logger        *slog.Logger
}

// NewPipeline builds a pipeline from deps.
func NewPipeline(deps Dependencies) *Pipeline {
	return &Pipeline{
		store:         deps.Store,
		launcher:      deps.Launcher,
		resolver:      deps.Resolver,
		recognizer:    deps.Recognizer,
		relay:         deps.Relay,
		publicBaseURL: deps.PublicBaseURL,
		logger:        logging.NewComponentLogger(deps.Logger, "transcript"),
	}
}

// CreateTaskResult acknowledges a transcription request.
type CreateTaskResult struct {
	TaskID string      `json:"taskId"`
	Status jobs.Status `json:"status"`
}

// TaskView is what a poller sees for a transcription task.
type TaskView struct {
	TaskID         string             `json:"taskId"`
	Status         jobs.Status        `json:"status"`
	TranscriptText string             `json:"transcriptText,omitempty"`
	ErrorCode      services.ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage   string             `json:"errorMessage,omitempty"`
	PlayURL        string             `json:"playUrl,omitempty"`
}

// CreateTask starts transcription of the link in shareText. Repeating a
// clientRequestID returns the task it first created without starting new work.
func (p *Pipeline) CreateTask(ctx context.Context, shareText, clientRequestID string) (CreateTaskResult, error) {
	shareText = strings.TrimSpace(shareText)
	clientRequestID = strings.TrimSpace(clientRequestID)
	if shareText == "" || clientRequestID == "" {
		return CreateTaskResult{}, services.Fail(services.ErrInvalidInput, "shareText and clientRequestId are required", nil)
	}

	existing, ok, err := p.store.GetJobByRequestID(ctx, clientRequestID)
	if err != nil {
		return CreateTaskResult{}, services.Wrap(services.ErrInternal, "transcript", "lookup request", "", err)
	}
	if ok {
		return CreateTaskResult{TaskID: existing, Status: jobs.StatusQueued}, nil
	}

	job, err := p.store.CreateJob(ctx, jobs.KindTranscript, map[string]any{
		"shareText":       shareText,
		"clientRequestId": clientRequestID,
	})
	if err != nil {
		return CreateTaskResult{}, services.Wrap(services.ErrInternal, "transcript", "create job", "", err)
	}
	winner, created, err := p.store.SetRequestMapping(ctx, clientRequestID, job.ID)
	if err != nil {
		return CreateTaskResult{}, services.Wrap(services.ErrInternal, "transcript", "record request", "", err)
	}
	if !created {
		message := fmt.Sprintf("superseded by task %s for the same clientRequestId", winner)
		_, _, _ = p.store.UpdateJobStatus(ctx, job.ID, jobs.StatusFailed, jobs.Failure(services.CodeInternal, message))
		return CreateTaskResult{TaskID: winner, Status: jobs.StatusQueued}, nil
	}

	logging.WithContext(services.WithJobID(ctx, job.ID), p.logger).Info("transcript task queued",
		logging.String(logging.FieldEventType, "transcript_task_queued"),
		logging.String(logging.FieldJobKind, string(jobs.KindTranscript)),
	)
	if err := p.launcher.Go(job.ID, "resolve", p.task(job.ID, shareText)); err != nil {
		message := fmt.Sprintf("could not start transcription: %v", err)
		_, _, _ = p.store.UpdateJobStatus(ctx, job.ID, jobs.StatusFailed, jobs.Failure(services.CodeInternal, message))
		return CreateTaskResult{}, services.Wrap(services.ErrInternal, "transcript", "launch", "", err)
	}
	return CreateTaskResult{TaskID: job.ID, Status: jobs.StatusQueued}, nil
}

// GetTask reports a transcription task. Unknown ids and copy jobs report
// false.
func (p *Pipeline) GetTask(ctx context.Context, taskID string) (TaskView, bool, error) {
	job, ok, err := p.store.GetJob(ctx, taskID)
	if err != nil {
		return TaskView{}, false, err
	}
	if !ok || job.Kind != jobs.KindTranscript {
		return TaskView{}, false, nil
	}
	return TaskView{
		TaskID:         job.ID,
		Status:         job.Status,
		TranscriptText: job.TranscriptText,
		ErrorCode:      job.ErrorCode,
		ErrorMessage:   job.ErrorMessage,
		PlayURL:        job.PlayURL,
	}, true, nil
}

// task resolves then transcribes. Failures are returned to the launcher,
// which records them on the job.
func (p *Pipeline) task(jobID, shareText string) workflow.Task {
	return func(ctx context.Context) error {
		if err := p.advance(ctx, jobID, jobs.StatusResolving, jobs.Patch{}); err != nil {
			return err
		}
		rawURL, ok := ExtractShareURL(shareText)
		if !ok {
			return services.Fail(services.ErrInvalidLink, "no valid link found in share text", nil)
		}
		mediaURL, err := p.resolver.Resolve(ctx, rawURL, shareText)
		if err != nil {
			return err
		}

		playURL := ""
		if p.relay != nil && p.publicBaseURL != "" {
			if relayURL, ok := p.relay.CreateProxyURL(mediaURL, p.publicBaseURL); ok {
				playURL = relayURL
			}
		}
		ctx = services.WithStage(ctx, "transcribe")
		if err := p.advance(ctx, jobID, jobs.StatusTranscribing, jobs.Media(mediaURL, playURL)); err != nil {
			return err
		}
		asrURL := mediaURL
		if playURL != "" {
			asrURL = playURL
		}
		text, err := p.recognizer.Transcribe(ctx, asrURL, shareText)
		if err != nil {
			return err
		}
		if err := p.advance(ctx, jobID, jobs.StatusSucceeded, jobs.Transcript(text)); err != nil {
			return err
		}
		logging.WithContext(ctx, p.logger).Info("transcript ready",
			logging.String(logging.FieldEventType, "transcript_succeeded"),
			logging.Int("transcript_chars", len([]rune(text))),
		)
		return nil
	}
}

func (p *Pipeline) advance(ctx context.Context, jobID string, status jobs.Status, patch jobs.Patch) error {
	_, ok, err := p.store.UpdateJobStatus(ctx, jobID, status, patch)
	if err != nil {
		return services.Wrap(services.ErrInternal, "transcript", "update status", string(status), err)
	}
	if !ok {
		return services.Fail(services.ErrNotFound, "job "+jobID+" disappeared", nil)
	}
	logging.WithContext(ctx, p.logger).Info("transcript stage",
		logging.String(logging.FieldEventType, "transcript_stage"),
		logging.String("status", string(status)),
	)
	return nil
}

package jobs

import (
	"maps"
	"slices"
	"time"

	"copyengine/internal/qc"
	"copyengine/internal/services"
)

// Kind identifies which pipeline owns a job.
type Kind string

const (
	KindTranscript   Kind = "transcript"
	KindRewrite      Kind = "rewrite"
	KindProductAdapt Kind = "product_adapt"
)

// IsCopy reports whether the job produces copy variants.
func (k Kind) IsCopy() bool {
	return k == KindRewrite || k == KindProductAdapt
}

func (k Kind) valid() bool {
	return k == KindTranscript || k.IsCopy()
}

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusResolving    Status = "resolving"
	StatusTranscribing Status = "transcribing"
	StatusGenerating   Status = "generating"
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Provider names who drafted a copy output.
type Provider string

const (
	ProviderVolcengine    Provider = "volcengine"
	ProviderLocalFallback Provider = "local_fallback"
)

// Job is one unit of asynchronous work.
type Job struct {
	ID             string             `json:"jobId"`
	Kind           Kind               `json:"type"`
	Status         Status             `json:"status"`
	RetryCount     int                `json:"retryCount"`
	ErrorCode      services.ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage   string             `json:"errorMessage,omitempty"`
	TranscriptText string             `json:"transcriptText,omitempty"`
	OutputRef      string             `json:"outputRef,omitempty"`
	MediaURL       string             `json:"mediaUrl,omitempty"`
	PlayURL        string             `json:"playUrl,omitempty"`
	Meta           map[string]any     `json:"meta,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func (j Job) clone() Job {
	j.Meta = maps.Clone(j.Meta)
	return j
}

// Patch carries the optional fields of a status update. Nil fields keep their
// current value.
type Patch struct {
	RetryCount     *int
	ErrorCode      *services.ErrorCode
	ErrorMessage   *string
	TranscriptText *string
	OutputRef      *string
	MediaURL       *string
	PlayURL        *string
}

// Failure builds a patch recording an error code and message.
func Failure(code services.ErrorCode, message string) Patch {
	return Patch{ErrorCode: &code, ErrorMessage: &message}
}

// Transcript builds a patch recording transcript text.
func Transcript(text string) Patch {
	return Patch{TranscriptText: &text}
}

// Media builds a patch recording the resolved media URL and its relay URL.
func Media(mediaURL, playURL string) Patch {
	return Patch{MediaURL: &mediaURL, PlayURL: &playURL}
}

// Output builds a patch pointing at a saved copy output.
func Output(ref string) Patch {
	return Patch{OutputRef: &ref}
}

func (p Patch) apply(job *Job) {
	if p.RetryCount != nil {
		job.RetryCount = *p.RetryCount
	}
	if p.ErrorCode != nil {
		job.ErrorCode = *p.ErrorCode
	}
	if p.ErrorMessage != nil {
		job.ErrorMessage = *p.ErrorMessage
	}
	if p.TranscriptText != nil {
		job.TranscriptText = *p.TranscriptText
	}
	if p.OutputRef != nil {
		job.OutputRef = *p.OutputRef
	}
	if p.MediaURL != nil {
		job.MediaURL = *p.MediaURL
	}
	if p.PlayURL != nil {
		job.PlayURL = *p.PlayURL
	}
}

// ModelMeta records how a copy output was produced.
type ModelMeta struct {
	Mode       qc.Mode  `json:"mode"`
	Strictness string   `json:"strictness"`
	Provider   Provider `json:"provider"`
	ProfileID  string   `json:"profileId,omitempty"`
}

// CopyOutput is the immutable result of a finished copy job. A job that
// failed the quality gate stores only its last report, with no versions.
type CopyOutput struct {
	JobID      string    `json:"jobId"`
	SourceText string    `json:"sourceText"`
	Versions   []string  `json:"versions"`
	QcReport   qc.Report `json:"qcReport"`
	ModelMeta  ModelMeta `json:"modelMeta"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (o CopyOutput) clone() CopyOutput {
	o.Versions = slices.Clone(o.Versions)
	o.QcReport.VersionChecks = slices.Clone(o.QcReport.VersionChecks)
	return o
}

// ProductProfile is the product snapshot taken when a product-adapt job starts.
type ProductProfile struct {
	ProfileID      string    `json:"profileId"`
	ProductName    string    `json:"productName"`
	Category       string    `json:"category"`
	SellingPoints  []string  `json:"sellingPoints"`
	TargetAudience string    `json:"targetAudience"`
	CTA            string    `json:"cta"`
	ForbiddenWords []string  `json:"forbiddenWords"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (p ProductProfile) clone() ProductProfile {
	p.SellingPoints = slices.Clone(p.SellingPoints)
	p.ForbiddenWords = slices.Clone(p.ForbiddenWords)
	return p
}

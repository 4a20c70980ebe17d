package constants

// JobState is the canonical lifecycle state for a pipeline job.
type JobState string

// Stable values (store these exact strings in DB).
const (
	JobStateQueued    JobState = "QUEUED"
	JobStateRunning   JobState = "RUNNING"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
	JobStateCancelled JobState = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// ValidationStatus labels the quality of extracted text.
type ValidationStatus string

const (
	ValidationValid      ValidationStatus = "valid"
	ValidationLowQuality ValidationStatus = "low_quality"
	ValidationInvalid    ValidationStatus = "invalid"
	ValidationEmpty      ValidationStatus = "empty"
)

// ExtractionMethod marks how a structured guide or answer set was produced.
const (
	MethodLLMPowered = "llm_powered"
	MethodFallback   = "fallback"
)

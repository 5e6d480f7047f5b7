package export

// ArtifactType represents the kind of document that was exported
type ArtifactType string

const (
	ArtifactTypeWarrantyCard ArtifactType = "WARRANTY_CARD" // warranty card issued at checkout
	ArtifactTypeHTMLSnippet  ArtifactType = "HTML_SNIPPET"  // caller supplied markup
)

// IsValid checks if the ArtifactType is a valid value
func (a ArtifactType) IsValid() bool {
	switch a {
	case ArtifactTypeWarrantyCard, ArtifactTypeHTMLSnippet:
		return true
	}
	return false
}

// String returns the string representation of ArtifactType
func (a ArtifactType) String() string {
	return string(a)
}

// DisplayName returns a human readable name for ArtifactType
func (a ArtifactType) DisplayName() string {
	switch a {
	case ArtifactTypeWarrantyCard:
		return "Warranty card"
	case ArtifactTypeHTMLSnippet:
		return "HTML snippet"
	default:
		return string(a)
	}
}

// AllArtifactTypes returns all valid ArtifactType values
func AllArtifactTypes() []ArtifactType {
	return []ArtifactType{ArtifactTypeWarrantyCard, ArtifactTypeHTMLSnippet}
}

// JobStatus represents the status of an export job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRendering JobStatus = "RENDERING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// IsValid checks if the JobStatus is a valid value
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRendering, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this is a terminal status (no further transitions)
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo checks if the status can transition to the target status
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusPending:
		return target == JobStatusRendering || target == JobStatusFailed
	case JobStatusRendering:
		return target == JobStatusCompleted || target == JobStatusFailed
	case JobStatusCompleted, JobStatusFailed:
		return false
	}
	return false
}

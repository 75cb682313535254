package summary

import (
	"time"

	"github.com/medvault/portal/internal/models"
)

const (
	EmptyFolderText     = "This folder is empty."
	NotConfiguredText   = "AI summaries are not configured."
	GenerationErrorText = "Error generating summary."
)

// Reason explains a staleness decision.
type Reason string

const (
	ReasonFingerprintError Reason = "fingerprint_error"
	ReasonMissing          Reason = "missing"
	ReasonForced           Reason = "forced"
	ReasonChanged          Reason = "changed"
	ReasonExpired          Reason = "expired"
	ReasonFresh            Reason = "fresh"
)

// Decision is the outcome of the staleness policy.
type Decision struct {
	Regenerate bool
	Reason     Reason
}

// Record is the cached summary of one folder. A nil SummaryText means never computed.
type Record struct {
	FolderID    string
	SummaryText *string
	Fingerprint string
	LastUpdated *time.Time
}

func recordFromModel(m *models.FolderSummaryModel) *Record {
	return &Record{
		FolderID:    m.FolderID,
		SummaryText: m.SummaryText,
		Fingerprint: m.Fingerprint,
		LastUpdated: m.LastUpdated,
	}
}

// Result is what callers display.
type Result struct {
	Text        string
	LastUpdated *time.Time
	Cached      bool
}

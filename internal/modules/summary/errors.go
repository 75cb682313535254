package summary

import "fmt"

// ConfigurationError means summaries cannot be produced until the service is reconfigured.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "summary configuration: " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ExtractionError is a per-document read or parse failure.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Filename, e.Err)
}
func (e *ExtractionError) Unwrap() error { return e.Err }

// ExternalServiceError is a failed or timed-out model call.
type ExternalServiceError struct {
	Err error
}

func (e *ExternalServiceError) Error() string { return "summary model call: " + e.Err.Error() }
func (e *ExternalServiceError) Unwrap() error { return e.Err }

// PersistenceError is a failed cache read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("summary store %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// FingerprintError means the folder's document listing could not be read.
type FingerprintError struct {
	FolderID string
	Err      error
}

func (e *FingerprintError) Error() string {
	return fmt.Sprintf("fingerprint folder %s: %v", e.FolderID, e.Err)
}
func (e *FingerprintError) Unwrap() error { return e.Err }

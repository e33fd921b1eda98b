package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so the manager can decide between
// backoff-delayed re-queue and hard job failure.
type ErrorKind string

const (
	KindInputTooLarge          ErrorKind = "input_too_large"
	KindUnreadableDocument     ErrorKind = "unreadable_document"
	KindUnsupportedFileType    ErrorKind = "unsupported_file_type"
	KindFetchFailed            ErrorKind = "fetch_failed"
	KindUnsupportedContentType ErrorKind = "unsupported_content_type"
	KindInvalidConfiguration   ErrorKind = "invalid_configuration"
	KindEmbeddingUnavailable   ErrorKind = "embedding_provider_unavailable"
	KindDimensionMismatch      ErrorKind = "embedding_dimension_mismatch"
	KindStoreWriteFailed       ErrorKind = "store_write_failed"
	KindEmptyExtraction        ErrorKind = "empty_extraction"
)

// Retryable reports whether the failure is transient and worth re-queueing.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindFetchFailed, KindEmbeddingUnavailable, KindStoreWriteFailed:
		return true
	}
	return false
}

// PipelineError attaches an ErrorKind to a stage failure. It survives %w
// wrapping so the manager can classify errors raised deep inside a stage.
type PipelineError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Errf builds a PipelineError with a formatted message.
func Errf(kind ErrorKind, format string, args ...any) error {
	return &PipelineError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapErr builds a PipelineError around an underlying cause.
func WrapErr(kind ErrorKind, err error, msg string) error {
	return &PipelineError{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the ErrorKind from err, unwrapping as needed. Errors with
// no PipelineError in their chain yield the empty kind.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Retryable reports whether err carries a retryable kind. Unclassified errors
// are treated as retryable: they are most often transient infrastructure
// failures (connection drops, timeouts) surfaced by drivers.
func Retryable(err error) bool {
	if k := KindOf(err); k != "" {
		return k.Retryable()
	}
	return true
}

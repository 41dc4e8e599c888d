// Package services defines the business logic for document ingestion
// scheduling, retrieval-grounded answering, and analytics. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; the
// handler layer translates them into HTTP statuses and stable error codes.
// Every external-dependency failure surfaces as exactly one of these values
// so operators can distinguish "our bug" from a dependency outage.
package services

import "errors"

// Document-related errors.
var (
	// ErrDocumentNotFound indicates that the referenced document does not
	// exist or has been deleted.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidState is returned when an operation is illegal for the
	// document's current lifecycle state (e.g. reprocessing a document whose
	// ingestion is still queued or running).
	ErrInvalidState = errors.New("operation not allowed in current document state")

	// ErrDuplicateDocument is returned when an upload's content hash matches
	// an existing document of the same service.
	ErrDuplicateDocument = errors.New("identical document already exists for this service")

	// ErrNotPDF is returned when an uploaded file is not a PDF.
	ErrNotPDF = errors.New("file must be a PDF")

	// ErrFileTooLarge is returned when an upload exceeds the configured size cap.
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")

	// ErrIngestionBusy is returned when the background ingestion queue cannot
	// accept another job right now.
	ErrIngestionBusy = errors.New("ingestion queue full")

	// ErrServiceNotFound is returned when a request references a service id
	// that has not been provisioned.
	ErrServiceNotFound = errors.New("service not found")
)

// Query-related errors.
var (
	// ErrEmptyQuestion is returned when an ask request contains an empty question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrQuestionTooLong is returned when a question exceeds the maximum
	// configured length limit.
	ErrQuestionTooLong = errors.New("question too long")

	// ErrEmbeddingUnavailable indicates the embedding capability was
	// unreachable, timed out, or returned malformed output.
	ErrEmbeddingUnavailable = errors.New("embedding capability unavailable")

	// ErrGenerationFailed indicates the generation capability failed or timed
	// out; no partial answer is ever returned.
	ErrGenerationFailed = errors.New("answer generation failed")
)

package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeConfig             ErrorType = "config"
	ErrorTypeIO                 ErrorType = "io"
	ErrorTypeAPI                ErrorType = "api"
	ErrorTypeScrape             ErrorType = "scrape"
	ErrorTypeModelOutput        ErrorType = "model_output"
	ErrorTypeVision             ErrorType = "vision"
	ErrorTypeDocumentExtraction ErrorType = "document_extraction"
	ErrorTypeIndex              ErrorType = "index"
	ErrorTypeClientInit         ErrorType = "client_init"
	ErrorTypeDocumentOpen       ErrorType = "document_open"
	ErrorTypeEmptyDocument      ErrorType = "empty_document"
)

// Sentinel errors matched with errors.Is.
var (
	ErrDocumentOpen       = errors.New("document cannot be opened")
	ErrEmptyDocument      = errors.New("document has no passages")
	ErrDocumentExtraction = errors.New("no passages extracted from document")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether any error in err's chain is a DomainError of type t.
func IsType(err error, t ErrorType) bool {
	var de *DomainError
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == t {
			return true
		}
		err = de.Err
	}
	return false
}

// IsRequestFatal reports whether err must abort the whole request. Only
// caller-input and client initialisation failures do; everything else
// degrades the affected stage.
func IsRequestFatal(err error) bool {
	return IsType(err, ErrorTypeValidation) || IsType(err, ErrorTypeClientInit)
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func ScrapeError(message string, err error) *DomainError {
	return NewError(ErrorTypeScrape, message, err)
}

func ModelOutputError(message string, err error) *DomainError {
	return NewError(ErrorTypeModelOutput, message, err)
}

func VisionError(message string, err error) *DomainError {
	return NewError(ErrorTypeVision, message, err)
}

func IndexError(message string, err error) *DomainError {
	return NewError(ErrorTypeIndex, message, err)
}

func ClientInitError(message string, err error) *DomainError {
	return NewError(ErrorTypeClientInit, message, err)
}

// DocumentOpenError wraps ErrDocumentOpen so callers can match it with errors.Is.
func DocumentOpenError(path string, err error) *DomainError {
	return NewError(ErrorTypeDocumentOpen, fmt.Sprintf("open %s", path), errors.Join(ErrDocumentOpen, err))
}

// EmptyDocumentError wraps ErrEmptyDocument.
func EmptyDocumentError(message string) *DomainError {
	return NewError(ErrorTypeEmptyDocument, message, ErrEmptyDocument)
}

// DocumentExtractionError wraps ErrDocumentExtraction.
func DocumentExtractionError(message string, err error) *DomainError {
	if err == nil {
		return NewError(ErrorTypeDocumentExtraction, message, ErrDocumentExtraction)
	}
	return NewError(ErrorTypeDocumentExtraction, message, errors.Join(ErrDocumentExtraction, err))
}

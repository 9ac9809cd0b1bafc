package session

import (
	"errors"
	"fmt"

	"github.com/yorozuya-cybersecurity/artiscan/internal/artifact"
)

var (
	// ErrInvalidArtifactType is returned by Select for extensions outside the allow-list.
	ErrInvalidArtifactType = artifact.ErrInvalidType
	// ErrNoArtifactSelected is returned by Submit when nothing has been selected.
	ErrNoArtifactSelected = errors.New("no artifact selected")
	// ErrScanInProgress is returned by any mutation attempted while a submission is in flight.
	ErrScanInProgress = errors.New("scan in progress")
)

// GenericServiceMessage is used when a failed response carries no error text.
const GenericServiceMessage = "Scan failed"

// ServiceError is a logical failure reported by the scan service.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("scan service error (status %d): %s", e.Status, e.Message)
}

// TransportError is a failure to complete the exchange with the scan service.
type TransportError struct {
	RootCause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s", e.RootCause.Error())
}

func (e *TransportError) Unwrap() error {
	return e.RootCause
}

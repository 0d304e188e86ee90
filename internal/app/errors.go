package app

import (
	"errors"
	"fmt"
	"net/http"

	"govhub/api/internal/proposal"
	"govhub/api/internal/repo"
	"govhub/api/internal/tenant"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, tenant.ErrUnsupportedTenant):
		return http.StatusNotFound, "TENANT_NOT_FOUND", "Unsupported tenant", nil
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Proposal not found", nil
	case errors.Is(err, repo.ErrUnsupportedOperation):
		return http.StatusMethodNotAllowed, "READ_ONLY", "Repository is read-only", nil
	case errors.Is(err, repo.ErrDataSource):
		return http.StatusBadGateway, "UPSTREAM_ERROR", "Backing data source failed", nil
	case errors.Is(err, proposal.ErrRegistryNotReady):
		return http.StatusServiceUnavailable, "NOT_READY", "Proposal registry not ready", nil
	case errors.Is(err, proposal.ErrUnknownVariant), errors.Is(err, proposal.ErrInvalidData):
		return http.StatusUnprocessableEntity, "INVALID_PROPOSAL", "Proposal data cannot be interpreted", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

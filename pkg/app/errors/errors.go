// Package errors classifies pipeline failures so callers can decide whether to
// retry, reject a record or surface an HTTP status.
package errors

import (
	"errors"
	"net/http"
)

// Category classifies a ServiceError.
type Category int

const (
	CategoryNoError Category = iota
	// CategoryDataError covers malformed input: a cast whose mention arrays
	// disagree, an unknown job type, a bad request parameter.
	CategoryDataError
	CategoryResourceNotFound
	// CategoryDependencyFailure is an error reported by S3, the queue or another database.
	CategoryDependencyFailure
	CategoryGeneralError
	// CategoryRecovering is a transient store failure such as a deadlock.
	CategoryRecovering
	CategoryConnectionTimeout
)

var categoryNames = map[Category]string{
	CategoryNoError:           "CategoryNoError",
	CategoryDataError:         "CategoryDataError",
	CategoryResourceNotFound:  "CategoryResourceNotFound",
	CategoryDependencyFailure: "CategoryDependencyFailure",
	CategoryRecovering:        "CategoryRecovering",
	CategoryConnectionTimeout: "CategoryConnectionTimeout",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "CategoryGeneralError"
}

// ServiceError carries a Category alongside the wrapped cause.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

// Error joins the message and the cause.
func (err *ServiceError) Error() string {
	if err.Err != nil {
		if err.Message != "" {
			return err.Message + ": " + err.Err.Error()
		}
		return err.Err.Error()
	}
	return err.Message
}

func (err *ServiceError) Unwrap() error {
	return err.Err
}

// Retryable reports whether repeating the failed operation may succeed.
func (err *ServiceError) Retryable() bool {
	return err.Category == CategoryRecovering || err.Category == CategoryConnectionTimeout
}

// Is reports whether err wraps a ServiceError of category cat.
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// CategoryOf returns the category of the first ServiceError in err's chain,
// CategoryGeneralError for any other non-nil error.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNoError
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Category
	}
	return CategoryGeneralError
}

// IsRetryable checks whether any error in err's chain declares itself retryable.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

// IsInternalError reports whether err is anything other than a data or
// not-found error.
func IsInternalError(err error) bool {
	switch CategoryOf(err) {
	case CategoryDataError, CategoryResourceNotFound:
		return false
	}
	return true
}

// GeneralError wraps err as an unexpected failure.
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Err:      err,
	}
}

// BadRequestError wraps a malformed-input failure.
func BadRequestError(err error, message string) error {
	if err == nil {
		err = errors.New("bad request")
	}
	return &ServiceError{
		Category: CategoryDataError,
		Message:  message,
		Err:      err,
	}
}

func ResourceNotFoundError(err error, message string) error {
	if err == nil {
		err = errors.New("resource not found")
	}
	return &ServiceError{
		Category: CategoryResourceNotFound,
		Message:  message,
		Err:      err,
	}
}

// RecoveringError wraps a transient failure that is expected to clear on retry.
func RecoveringError(err error, message string) error {
	return &ServiceError{
		Category: CategoryRecovering,
		Message:  message,
		Err:      err,
	}
}

// DependencyError wraps a failure reported by an external service.
func DependencyError(err error, message string) error {
	return &ServiceError{
		Category: CategoryDependencyFailure,
		Message:  message,
		Err:      err,
	}
}

// TimeoutError wraps a dependency call that ran out of time.
func TimeoutError(err error, message string) error {
	return &ServiceError{
		Category: CategoryConnectionTimeout,
		Message:  message,
		Err:      err,
	}
}

// StatusCode maps the category to an HTTP status.
func (err *ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryDependencyFailure:
		return http.StatusBadGateway
	case CategoryRecovering:
		return http.StatusServiceUnavailable
	case CategoryConnectionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

package payment

import "net/http"

// Error categories. Everything except CategoryStorage is a business-rule
// violation recovered at the operation boundary; CategoryStorage is the only
// class fatal to the request.
const (
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryConflict   = "conflict"
	CategoryExpired    = "link_expired"
	CategoryProcessed  = "already_processed"
	CategoryStorage    = "storage"
)

// WorkflowError is the typed result every failed operation returns. The
// public message is safe to show a client; the internal one goes to logs.
type WorkflowError struct {
	Category      string
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WorkflowError) Error() string {
	return e.InternalError
}

func (e *WorkflowError) Unwrap() error {
	return e.OriginalErr
}

func validationErr(public string) *WorkflowError {
	return &WorkflowError{
		Category:      CategoryValidation,
		StatusCode:    http.StatusUnprocessableEntity,
		PublicError:   public,
		InternalError: public,
	}
}

func notFoundErr(public string, err error) *WorkflowError {
	return &WorkflowError{
		Category:      CategoryNotFound,
		StatusCode:    http.StatusNotFound,
		PublicError:   public,
		InternalError: public,
		OriginalErr:   err,
	}
}

func conflictErr(public string) *WorkflowError {
	return &WorkflowError{
		Category:      CategoryConflict,
		StatusCode:    http.StatusConflict,
		PublicError:   public,
		InternalError: public,
	}
}

// expiredLinkErr is deliberately distinct from notFoundErr so the client UI
// can offer "request a new link" instead of "order missing".
func expiredLinkErr() *WorkflowError {
	return &WorkflowError{
		Category:      CategoryExpired,
		StatusCode:    http.StatusGone,
		PublicError:   "payment link is expired or inactive, request a new link",
		InternalError: "payment link is expired or inactive",
	}
}

func alreadyProcessedErr() *WorkflowError {
	return &WorkflowError{
		Category:      CategoryProcessed,
		StatusCode:    http.StatusBadRequest,
		PublicError:   "payment proof has already been processed",
		InternalError: "payment proof has already been processed",
	}
}

func storageErr(internal string, err error) *WorkflowError {
	return &WorkflowError{
		Category:      CategoryStorage,
		StatusCode:    http.StatusInternalServerError,
		PublicError:   "internal error, please retry",
		InternalError: internal,
		OriginalErr:   err,
	}
}

package shared

// DomainError is a business rule violation identified by a stable code.
// The HTTP layer maps codes to status codes.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code, so a repository can return
// a more specific message and still satisfy errors.Is(err, ErrNotFound).
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// ErrNotFound is returned by repositories when no row matches
var ErrNotFound = NewDomainError("NOT_FOUND", "Resource not found")

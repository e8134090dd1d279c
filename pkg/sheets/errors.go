package sheets

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotConfigured means no endpoint URL is set; callers fall back to
	// local-only operation.
	ErrNotConfigured = errors.New("sheet endpoint not configured")
	// ErrInvalidURL is returned by ValidateEndpointURL.
	ErrInvalidURL = errors.New("invalid sheet endpoint url")
	// ErrNetwork covers transport failures and timeouts.
	ErrNetwork = errors.New("sheet endpoint unreachable")
	// ErrHTTPStatus is matched by every *StatusError.
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrRemote is matched by every *RemoteError.
	ErrRemote = errors.New("sheet endpoint reported an error")
	// ErrHTMLResponse means the endpoint answered with a web page instead of
	// JSON, which happens when the script is not deployed as a web app.
	ErrHTMLResponse = errors.New("sheet endpoint returned html")
	// ErrMalformed means the body is neither html nor the expected json.
	ErrMalformed = errors.New("malformed sheet response")
	// ErrPermissionDenied means the script is deployed but not accessible
	// anonymously.
	ErrPermissionDenied = errors.New("sheet endpoint denied access")
)

// StatusError is a non-2xx answer from the endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status: %d", e.Code)
}

func (e *StatusError) Is(target error) bool { return target == ErrHTTPStatus }

// RemoteError is a JSON payload with success=false or an error field.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return ErrRemote.Error()
	}
	return "sheet endpoint reported an error: " + e.Message
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

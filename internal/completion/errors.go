package completion

import (
	"fmt"
	"net/http"
)

// ServiceError is a non-success response from the completion service.
type ServiceError struct {
	Status int
	// Body is the raw error envelope as returned by the service.
	Body string
	// Message is error.message from the envelope, when present.
	Message string
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("completion service: status %d: %s", e.Status, msg)
}

// MalformedResponseError is a success response that cannot be interpreted as
// an assistant message.
type MalformedResponseError struct {
	Reason string
	Body   string
}

func (e *MalformedResponseError) Error() string {
	return "completion: malformed response: " + e.Reason
}

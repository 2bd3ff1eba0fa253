package api

import (
	"fmt"
	"time"
)

// APIError is a non-2xx answer from the taskbridge server.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Field     string
	Message   string
	// RetryAfter is set from the Retry-After header on 429 answers.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message == "" && e.Status > 0:
		return fmt.Sprintf("api error: %d", e.Status)
	case e.Message == "":
		return "api error"
	case e.Code != "" && e.Field != "":
		return fmt.Sprintf("%s: %s (field %s)", e.Code, e.Message, e.Field)
	case e.Code != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	default:
		return e.Message
	}
}

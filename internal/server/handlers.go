package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"taskbridge/internal/api"
	"taskbridge/internal/jira"
)

const defaultJSONMaxBody = 1 << 20 // 1 MiB

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	fields := []any{"status", status, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		if id := requestIDFromContext(r.Context()); id != "" {
			fields = append(fields, "request_id", id)
		}
	}

	// Upstream failures carry a fixed public message and nothing else.
	var upstream upstreamError
	if errors.As(err, &upstream) {
		fields = append(fields, upstreamLogFields(upstream.err)...)
		s.log().Error("upstream request failed", fields...)
		s.writeJSON(w, status, api.ErrorResponse{Error: upstream.message})
		return
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()
	fields = append(fields, "code", code, "error_code", numericCode)

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{
		Error:     message,
		Code:      code,
		ErrorCode: numericCode,
		Field:     errorField(err),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

// writeRaw passes an upstream JSON document through unchanged.
func (s *Server) writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(raw); err != nil {
		s.log().Error("write raw response", "status", status, "error", err)
	}
}

type apiError struct {
	status  int
	code    string
	errCode int
	field   string
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

// upstreamError is a failed Jira call. Only message reaches the client.
type upstreamError struct {
	status  int
	message string
	err     error
}

func (e upstreamError) Error() string {
	if e.err == nil {
		return e.message
	}
	return e.message + ": " + e.err.Error()
}

func (e upstreamError) Unwrap() error {
	return e.err
}

func upstreamFailed(message string, err error) error {
	status := http.StatusInternalServerError
	if jira.IsTimeout(err) {
		status = http.StatusGatewayTimeout
	}
	return upstreamError{status: status, message: message, err: err}
}

func upstreamLogFields(err error) []any {
	failure, ok := jira.AsFailure(err)
	if !ok {
		return nil
	}
	fields := []any{"upstream_kind", failure.Kind, "upstream_url", failure.URL}
	if failure.StatusCode > 0 {
		fields = append(fields, "upstream_status", failure.StatusCode, "upstream_body", failure.Body)
	}
	return fields
}

func badRequest(err error) error {
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func fieldError(field string, code int, format string, args ...any) error {
	return apiError{
		status:  http.StatusBadRequest,
		code:    "invalid_argument",
		errCode: code,
		field:   field,
		err:     fmt.Errorf(format, args...),
	}
}

func accountNotLinked() error {
	return makeAPIError(http.StatusPreconditionFailed, "account_not_linked", ErrCodeAccountNotLinked, errAccountNotLinked)
}

func unauthorized(err error) error {
	return makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized, err)
}

func forbidden(err error) error {
	return makeAPIError(http.StatusForbidden, "forbidden", ErrCodeForbidden, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeStoreFailure, err)
}

func httpStatusFromError(err error) int {
	var upstream upstreamError
	if errors.As(err, &upstream) && upstream.status != 0 {
		return upstream.status
	}
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.status != 0 {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusPreconditionFailed:
		return "account_not_linked"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusInternalServerError:
		return "internal"
	case http.StatusGatewayTimeout:
		return "upstream_timeout"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func errorField(err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.field
	}
	return ""
}

func shouldWarnClientError(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return badRequestCode(err, ErrCodeInvalidJSON)
	}

	var unmarshalErr *json.UnmarshalTypeError
	if errors.As(err, &unmarshalErr) {
		field := unmarshalErr.Field
		if field == "" {
			return badRequestCode(fmt.Errorf("request body must be a JSON object"), ErrCodeInvalidJSON)
		}
		root, _, _ := strings.Cut(field, ".")
		return fieldError(root, ErrCodeInvalidArgument, "%s must be of type %s", field, jsonTypeName(unmarshalErr.Type.Kind().String()))
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

func jsonTypeName(kind string) string {
	switch kind {
	case "string":
		return "string"
	case "slice", "array":
		return "array"
	case "struct", "map":
		return "object"
	case "bool":
		return "boolean"
	default:
		return "number"
	}
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorReq(w, r, httpStatusFromError(err), err)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(err))
}

func (s *Server) withLimiter(w http.ResponseWriter, r *http.Request, limiter chan struct{}, name string, fn func()) {
	if !s.acquireLimiter(limiter, w, r, name) {
		return
	}
	defer s.releaseLimiter(limiter)
	fn()
}

func queryRequiredInt(r *http.Request, key string) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return 0, fieldError(key, ErrCodeMissingRequired, "%s is required", key)
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fieldError(key, ErrCodeInvalidQuery, "%s must be an integer", key)
	}
	if parsed <= 0 {
		return 0, fieldError(key, ErrCodeInvalidQuery, "%s must be > 0", key)
	}
	return parsed, nil
}

package json

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgellow/oauth-front/internal/log"
)

// ErrorResponse represents a standard JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is the {ok: bool} body returned by the session endpoints.
type StatusResponse struct {
	OK bool `json:"ok"`
}

// WriteResponse writes a JSON response with the given status code
func WriteResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.LogError("Failed to encode JSON response: %v", err)
		return err
	}
	return nil
}

// Write writes a JSON response with 200 OK status
func Write(w http.ResponseWriter, data any) error {
	return WriteResponse(w, http.StatusOK, data)
}

// WriteStatus writes {"ok": ok} with the given status code.
func WriteStatus(w http.ResponseWriter, statusCode int, ok bool) {
	_ = WriteResponse(w, statusCode, StatusResponse{OK: ok})
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, statusCode int, error string, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}

	if err := WriteResponse(w, statusCode, response); err != nil {
		// Fallback to plain text error if JSON encoding fails
		http.Error(w, error+": "+message, statusCode)
	}
}

// Common error responses
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

// WriteUnauthorizedBearer writes a 401 with a Bearer challenge naming the realm.
// The challenge carries no error detail so callers cannot probe why a
// credential was refused.
func WriteUnauthorizedBearer(w http.ResponseWriter, realm string) {
	challenge := "Bearer"
	if realm != "" {
		challenge = fmt.Sprintf(`Bearer realm="%s"`, escapeQuotedString(realm))
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteUnauthorized(w, "Unauthorized")
}

// escapeQuotedString escapes a string for use in an RFC 9110 quoted-string
func escapeQuotedString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

func WriteInternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_server_error", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "too_many_requests", message)
}

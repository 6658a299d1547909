package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Status comes from core.StatusCode, the message from core.MapError
//  4. Technical error is logged with the request ID for correlation
//  5. The user message is returned as JSON

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/monoidalcat-ux/Impulse-overlay/internal/core"
	"github.com/monoidalcat-ux/Impulse-overlay/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Error carries the technical detail; Message and Action are for people.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its mapped JSON response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := core.StatusCode(err)
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", args...)
	} else {
		log.Warn("request rejected", args...)
	}

	detail := err.Error()
	if !core.IsUserFacing(err) {
		detail = userMsg.Message
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Error:   detail,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/controller"
	"github.com/mrlokans/patron/internal/profiles"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondError sends an error response with the given status code.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondFailure maps a store or controller error to a status code and error code.
// Unclassified errors are reported as internal errors.
func respondFailure(c *gin.Context, err error, context string) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		respondInternalError(c, err, context)
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, profiles.ErrNonexistentProfile):
		return http.StatusNotFound, "nonexistent_profile"
	case errors.Is(err, accounts.ErrNonexistentAccount), errors.Is(err, accounts.ErrNonexistentProvider):
		return http.StatusNotFound, "nonexistent_account"
	case errors.Is(err, profiles.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, profiles.ErrDisplayNameUsed):
		return http.StatusConflict, "display_name_used"
	case errors.Is(err, profiles.ErrAnonymousEnabled), errors.Is(err, profiles.ErrAnonymousDisabled):
		return http.StatusConflict, "profile_mode"
	case errors.Is(err, profiles.ErrProfileIsCurrent):
		return http.StatusConflict, "profile_is_current"
	case errors.Is(err, profiles.ErrNoCurrentProfile):
		return http.StatusConflict, "no_current_profile"
	case errors.Is(err, accounts.ErrDuplicateProvider):
		return http.StatusConflict, "duplicate_provider"
	case errors.Is(err, accounts.ErrLastAccount):
		return http.StatusConflict, "last_account"
	}

	var f *controller.Failure
	if !errors.As(err, &f) {
		return http.StatusInternalServerError, ""
	}
	switch f.Kind {
	case controller.FailureCredentialsIncorrect:
		return http.StatusUnauthorized, "credentials_incorrect"
	case controller.FailureNetwork, controller.FailureServer, controller.FailureParse:
		return http.StatusBadGateway, f.Kind.String()
	case controller.FailureLocalPrecondition, controller.FailureProfileConfiguration:
		return http.StatusConflict, f.Kind.String()
	}
	return http.StatusInternalServerError, ""
}

// --- Success Response Helpers ---

// respondSuccess sends a 200 OK response with a message.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// respondCreated sends a 201 Created response with data.
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// respondAccepted sends a 202 Accepted response (for async operations).
func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates a non-negative integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (int, bool) {
	id, err := strconv.Atoi(c.Param(paramName))
	if err != nil || id < 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return id, true
}

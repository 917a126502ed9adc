package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Details []string               `json:"details,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// statusOf maps an operation error onto an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, util.ErrValidationFailed),
		errors.Is(err, util.ErrUnresolvedDeviceKind):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrLinkAllocationExhausted),
		errors.Is(err, util.ErrConflict):
		return http.StatusConflict
	}
	if code := gns3.StatusCode(err); code >= 500 {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// toAPIError wraps an operation error for the response.
func toAPIError(err error) *APIError {
	ae := &APIError{Code: statusOf(err), Message: err.Error()}
	var ve *util.ValidationError
	if errors.As(err, &ve) {
		ae.Message = "validation failed"
		ae.Details = ve.Errors
	}
	return ae
}

// HTTPErrorHandler renders every error as an APIError.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var ae *APIError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ae):
	case errors.As(err, &he):
		ae = &APIError{Code: he.Code, Message: fmt.Sprintf("%v", he.Message)}
	default:
		ae = toAPIError(err)
	}

	if ae.Code >= http.StatusInternalServerError {
		util.WithField("path", c.Path()).WithError(err).Error("request failed")
	}
	if err := c.JSON(ae.Code, ae); err != nil {
		util.Logger.WithError(err).Warn("failed to write error response")
	}
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/retrostate/internal/store"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error sends a JSON error response.
func Error(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// errorJSON is an alias for Error (used by middleware).
var errorJSON = Error

// successJSON sends a JSON success response with a data envelope.
func successJSON(c echo.Context, status int, data any) error {
	return c.JSON(status, map[string]any{"data": data})
}

// storeStatus maps store sentinels to HTTP statuses. code is used when the
// error carries no *store.Error.
var storeStatus = []struct {
	err    error
	status int
	code   string
}{
	{store.ErrMalformedRecord, http.StatusBadRequest, "MALFORMED_RECORD"},
	{store.ErrInvalidAccessLevel, http.StatusBadRequest, "INVALID_ACCESS_LEVEL"},
	{store.ErrChannelNotFound, http.StatusNotFound, "CHANNEL_NOT_FOUND"},
	{store.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{store.ErrNotAMember, http.StatusForbidden, "NOT_A_MEMBER"},
	{store.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{store.ErrConflict, http.StatusConflict, "CONFLICT"},
	{store.ErrSessionClosed, http.StatusServiceUnavailable, "SESSION_CLOSED"},
}

// mapStoreError writes the error envelope for an error returned by the
// session stores. Unknown errors are logged and reported as 500.
func mapStoreError(c echo.Context, err error) error {
	for _, m := range storeStatus {
		if !errors.Is(err, m.err) {
			continue
		}
		var serr *store.Error
		if errors.As(err, &serr) {
			return Error(c, m.status, serr.Code, serr.Message)
		}
		return Error(c, m.status, m.code, err.Error())
	}
	slog.Error("unhandled store error", "path", c.Path(), "error", err)
	return Error(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
}

// pathID parses a snowflake path parameter.
func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

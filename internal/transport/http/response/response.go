package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vecbridge/internal/errs"
)

const (
	CodeOK              = 0
	CodeBadRequest      = 40000
	CodeUnauthorized    = 40100
	CodeNotFound        = 40400
	CodeContentTooLarge = 41300
	CodeOverloaded      = 50300
	CodeUpstreamDown    = 50301
	CodeUpstreamTimeout = 50400
	CodeInternalServer  = 50000
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// FromError translates a service error into the envelope. Internal error
// kinds collapse to a generic 500 so storage and provider details never
// reach callers.
func FromError(c *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.KindInvalidRequest:
		Error(c, http.StatusBadRequest, CodeBadRequest, errs.PublicMessage(err))
	case errs.KindUnauthorized:
		Error(c, http.StatusUnauthorized, CodeUnauthorized, errs.PublicMessage(err))
	case errs.KindNotFound:
		Error(c, http.StatusNotFound, CodeNotFound, errs.PublicMessage(err))
	case errs.KindContentTooLarge:
		Error(c, http.StatusRequestEntityTooLarge, CodeContentTooLarge, errs.PublicMessage(err))
	case errs.KindOverloaded:
		Error(c, http.StatusServiceUnavailable, CodeOverloaded, "server is at capacity, retry shortly")
	case errs.KindUnavailable:
		Error(c, http.StatusServiceUnavailable, CodeUpstreamDown, "a dependency is unavailable, retry shortly")
	case errs.KindTimeout:
		Error(c, http.StatusGatewayTimeout, CodeUpstreamTimeout, "a dependency timed out")
	default:
		Error(c, http.StatusInternalServerError, CodeInternalServer, "internal error")
	}
}

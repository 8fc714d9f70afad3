package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
)

type errorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// errorStatus maps an error to its HTTP status and response body.
func errorStatus(err error) (int, errorResponse) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		msg, ok := origErr.Message.(string)
		if !ok {
			msg = http.StatusText(origErr.Code)
		}
		return origErr.Code, errorResponse{Message: msg}
	case *core.ValidationError:
		res := errorResponse{Message: origErr.Error()}
		if len(origErr.Fields) > 0 {
			res.Fields = make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				res.Fields[fErr.Field] = fErr.Error
			}
			if origErr.Err == nil {
				res.Message = "invalid input"
			}
		}
		return http.StatusBadRequest, res
	case *core.NotFoundError:
		return http.StatusNotFound, errorResponse{Message: origErr.Error()}
	case *core.TransportError:
		return http.StatusBadGateway, errorResponse{Message: origErr.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Message: http.StatusText(http.StatusInternalServerError)}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, res := errorStatus(err)

		if code == http.StatusInternalServerError {
			msg := http.StatusText(http.StatusInternalServerError)
			logger.Error(msg, errors.Wrap(err, msg), map[string]interface{}{
				"method": ctx.Request().Method,
				"path":   ctx.Request().URL.Path,
			})
			if ctx.Echo().Debug {
				res.Message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/assessgen-backend/internal/assessment"
	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/http/response"
	"github.com/yungbote/assessgen-backend/internal/platform/apierr"
	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
	"github.com/yungbote/assessgen-backend/internal/temporalx/extractjob"
)

const statusClientClosedRequest = 499

// toAPIError maps domain failures to an HTTP status and stable code.
func toAPIError(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	if xe, ok := extraction.AsError(err); ok {
		code := string(xe.Kind)
		if xe.Reason != "" {
			code = string(xe.Reason)
		}
		switch xe.Class() {
		case extraction.ClassTimeout:
			return apierr.New(http.StatusGatewayTimeout, code, err)
		case extraction.ClassInvalidInput:
			if xe.Kind == extraction.KindInvalidInput {
				return apierr.BadRequest(code, err)
			}
			return apierr.New(http.StatusUnprocessableEntity, code, err)
		default:
			return apierr.New(http.StatusBadGateway, code, err)
		}
	}
	switch {
	case errors.Is(err, assessment.ErrInvalidOptions):
		return apierr.BadRequest("invalid_options", err)
	case errors.Is(err, assessment.ErrGeneration):
		return apierr.New(http.StatusBadGateway, "generation_failed", err)
	case errors.Is(err, assessment.ErrMalformedOutput):
		return apierr.New(http.StatusBadGateway, "malformed_generation", err)
	case errors.Is(err, assessment.ErrNotFound), errors.Is(err, extractjob.ErrJobNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, context.Canceled):
		return apierr.New(statusClientClosedRequest, "client_closed_request", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.New(http.StatusGatewayTimeout, "timeout", err)
	}
	return apierr.New(http.StatusInternalServerError, "internal_error", err)
}

func respondErr(c *gin.Context, log *logger.Logger, op string, err error) {
	ae := toAPIError(err)
	fields := append([]interface{}{"op", op, "status", ae.Status, "code", ae.Code, "error", err}, ctxutil.LogFields(c.Request.Context())...)
	if ae.Status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Warn("request rejected", fields...)
	}
	response.RespondAPIError(c, ae)
}

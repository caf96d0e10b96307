package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/response"
	"github.com/stemsi/exproctor-backend/internal/service"
)

// dashboardPath is where the student client returns after a rejected attempt.
const dashboardPath = "/student/dashboard"

type attemptFailure struct {
	target error
	status int
	code   response.ErrCode
}

var attemptFailures = []attemptFailure{
	{service.ErrExamNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrNotEligible, http.StatusForbidden, response.ErrNotEligible},
	{service.ErrAlreadyAttempted, http.StatusConflict, response.ErrAlreadyAttempted},
	{service.ErrExamUpcoming, http.StatusForbidden, response.ErrExamUpcoming},
	{service.ErrExamExpired, http.StatusForbidden, response.ErrExamExpired},
	{service.ErrInvalidTimeLimit, http.StatusUnprocessableEntity, response.ErrInvalidTimeLimit},
	{service.ErrEmptyExam, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{service.ErrAttemptTimeExceeded, http.StatusForbidden, response.ErrAttemptTimeExceeded},
	{service.ErrNoActiveAttempt, http.StatusConflict, response.ErrNoActiveAttempt},
	{service.ErrNotVideoQuestion, http.StatusBadRequest, response.ErrNotVideoQuestion},
	{service.ErrSubmissionFailed, http.StatusServiceUnavailable, response.ErrSubmissionFailed},
}

// failAttempt maps attempt engine errors to a response that sends the
// student back to the dashboard with a message.
func failAttempt(c *gin.Context, log zerolog.Logger, err error) {
	details := map[string]string{"redirect": dashboardPath}

	var upcoming *service.UpcomingError
	if errors.As(err, &upcoming) {
		details["starts_at"] = upcoming.StartsAt.UTC().Format(time.RFC3339)
	}
	if errors.Is(err, service.ErrSubmissionFailed) {
		details["retry"] = "true"
	}

	for _, f := range attemptFailures {
		if errors.Is(err, f.target) {
			response.FailWithDetails(c, f.status, f.code, details)
			return
		}
	}

	log.Error().Err(err).Msg("Attempt request failed")
	response.FailWithDetails(c, http.StatusInternalServerError, response.ErrInternal, details)
}

// failMedia maps media service errors.
func failMedia(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedFileType):
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
	case errors.Is(err, service.ErrFileTooLarge):
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
	default:
		log.Error().Err(err).Msg("Media upload failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

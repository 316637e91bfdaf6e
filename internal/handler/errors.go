package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/inkpost/inkpost/internal/handler/dto"
	"github.com/inkpost/inkpost/internal/middleware"
	"github.com/inkpost/inkpost/internal/service"
)

// handleServiceError maps service errors to HTTP responses. Anything outside
// the service taxonomy is logged and answered with a bare 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:  "The given data was invalid.",
			Code:   "VALIDATION_ERROR",
			Errors: verr.Fields,
		})
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Invalid or expired registration token.", "INVALID_TOKEN")
	case errors.Is(err, service.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, "Invalid credentials.", "INVALID_CREDENTIALS")
	case errors.Is(err, service.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="inkpost"`)
		writeError(w, http.StatusUnauthorized, "Unauthenticated.", "UNAUTHENTICATED")
	case errors.Is(err, service.ErrPermission):
		writeError(w, http.StatusForbidden, "This action is unauthorized.", "FORBIDDEN")
	case errors.Is(err, service.ErrArticleNotFound):
		writeError(w, http.StatusNotFound, "Article not found.", "ARTICLE_NOT_FOUND")
	case errors.Is(err, service.ErrCommentNotFound):
		writeError(w, http.StatusNotFound, "Comment not found.", "COMMENT_NOT_FOUND")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "Resource not found.", "NOT_FOUND")
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "The email has already been registered.", "EMAIL_TAKEN")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, "The request conflicts with existing data.", "CONFLICT")
	default:
		logger.Error("service error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error.", "INTERNAL_ERROR")
	}
}

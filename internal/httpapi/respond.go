package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carbon-registry/registry-backend/pkg/apperrors"
)

// RespondError maps the business error taxonomy onto HTTP statuses and
// writes a JSON error body. Unclassified errors become a generic 500
// without leaking internal detail.
func RespondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := statusForKind(kind)
	body := gin.H{"error": http.StatusText(status)}
	if kind != "" {
		body = gin.H{"error": err.Error(), "code": string(kind)}
	}
	c.JSON(status, body)
}

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindUnauthorized:
		return http.StatusForbidden
	case apperrors.KindInvalidQuantity, apperrors.KindMissingReason:
		return http.StatusUnprocessableEntity
	case apperrors.KindInvalidState, apperrors.KindAlreadyIssued,
		apperrors.KindInsufficientValidators, apperrors.KindNoDeadline:
		return http.StatusConflict
	case apperrors.KindDeadlineExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

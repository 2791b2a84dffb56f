package handler

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/wms-approval/internal/core/domain"
)

const (
	headerUserID    = "X-User-ID"
	headerUserRoles = "X-User-Roles"
)

func httpStatus(err error) int {
	switch kind := domain.KindOf(err); {
	case errors.Is(kind, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(kind, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, domain.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(kind, domain.ErrInvariant):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(err error) codes.Code {
	if errors.Is(err, domain.ErrDuplicateRequest) {
		return codes.AlreadyExists
	}
	switch kind := domain.KindOf(err); {
	case errors.Is(kind, domain.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(kind, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(kind, domain.ErrConflict):
		return codes.FailedPrecondition
	case errors.Is(kind, domain.ErrAuthorization):
		return codes.PermissionDenied
	case errors.Is(kind, domain.ErrInvariant):
		return codes.Aborted
	default:
		return codes.Internal
	}
}

// parseUser builds the acting user from an id and a comma separated role list.
func parseUser(id, roles string) (domain.User, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, false
	}
	user := domain.User{ID: id}
	for _, role := range strings.Split(roles, ",") {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role != "" {
			user.Roles = append(user.Roles, domain.Role(role))
		}
	}
	return user, true
}

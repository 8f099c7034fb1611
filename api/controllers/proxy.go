package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/accesshub/accesshub-backend/api/responses"
	"github.com/accesshub/accesshub-backend/internal/proxy"
	"github.com/accesshub/accesshub-backend/pkg/db/models"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
	"github.com/accesshub/accesshub-backend/pkg/logger"
)

// UsernameSource resolves the proxy login name for an authenticated user.
type UsernameSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ProxyAuthorize redirects the caller to the proxy appliance with a signed
// login ticket scoped to their valid grants.
func ProxyAuthorize(svc proxy.Service, users UsernameSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || users == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "proxy service unavailable"))
			return
		}
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		target := strings.TrimSpace(r.URL.Query().Get("url"))
		if target == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "url query parameter is required"))
			return
		}

		user, err := users.FindByID(ctx, actor.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "unknown user"))
			return
		}

		redirect, err := svc.Authorize(ctx, actor.UserID, user.Username, target)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		http.Redirect(w, r, redirect, http.StatusFound)
	}
}

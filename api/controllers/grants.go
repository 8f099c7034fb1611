package controllers

import (
	"net/http"

	"github.com/accesshub/accesshub-backend/api/responses"
	"github.com/accesshub/accesshub-backend/internal/grants"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
	"github.com/accesshub/accesshub-backend/pkg/logger"
)

// GrantListMine returns the caller's grants, newest first.
func GrantListMine(svc grants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "grant service unavailable"))
			return
		}
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.ListForUser(ctx, actor.UserID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

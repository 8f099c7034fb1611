package requests

import (
	"github.com/accesshub/accesshub-backend/pkg/enums"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
)

// allowedTransitions is the request lifecycle. invalid is a sink reachable
// from every status because upstream data deletion can void a request at any
// point.
var allowedTransitions = map[enums.RequestStatus][]enums.RequestStatus{
	enums.RequestStatusPending: {
		enums.RequestStatusQuestion,
		enums.RequestStatusApproved,
		enums.RequestStatusNotApproved,
		enums.RequestStatusInvalid,
	},
	enums.RequestStatusQuestion: {
		enums.RequestStatusPending,
		enums.RequestStatusApproved,
		enums.RequestStatusNotApproved,
		enums.RequestStatusInvalid,
	},
	enums.RequestStatusApproved: {
		enums.RequestStatusSent,
		enums.RequestStatusNotApproved,
		enums.RequestStatusInvalid,
	},
	enums.RequestStatusNotApproved: {
		enums.RequestStatusInvalid,
	},
	enums.RequestStatusSent: {
		enums.RequestStatusInvalid,
	},
	enums.RequestStatusInvalid: {},
}

// checkTransition validates from → to against the lifecycle. Leaving invalid
// gets its own error so callers can distinguish it from an ordinary illegal
// move.
func checkTransition(from, to enums.RequestStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if from == enums.RequestStatusInvalid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "request was invalidated and cannot change status")
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}

package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/accesshub/accesshub-backend/internal/capacity"
	"github.com/accesshub/accesshub-backend/internal/grants"
	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
	"github.com/accesshub/accesshub-backend/pkg/outbox"
	"github.com/accesshub/accesshub-backend/pkg/outbox/payloads"
	"github.com/accesshub/accesshub-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the admission controller for access requests.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error)
	Get(ctx context.Context, id uuid.UUID, actor Actor) (*RequestDTO, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters, actor Actor) (*RequestListDTO, error)
	SetStatus(ctx context.Context, input SetStatusInput) (*RequestDTO, error)
	BatchSetStatus(ctx context.Context, input BatchSetStatusInput) ([]BatchResult, error)
	Renew(ctx context.Context, input RenewInput) (*RequestDTO, error)
	DispatchPartner(ctx context.Context, partnerID uuid.UUID, actor Actor) ([]BatchResult, error)
}

type service struct {
	db         *gorm.DB
	tx         txRunner
	outbox     outboxEmitter
	accountant *capacity.Accountant
	engine     *grants.Engine
}

// ServiceParams bundles the dependencies for the request service.
type ServiceParams struct {
	DB     *gorm.DB
	Tx     txRunner
	Outbox outboxEmitter
}

// NewService builds the request admission service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database connection required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		db:         params.DB,
		tx:         params.Tx,
		outbox:     params.Outbox,
		accountant: capacity.NewAccountant(),
		engine:     grants.NewEngine(),
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error) {
	if input.RequesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.PartnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id required")
	}

	var dto *RequestDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		partner, err := loadPartner(ctx, tx, input.PartnerID)
		if err != nil {
			return err
		}
		if partner.Status == enums.PartnerStatusNotAvailable {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "partner is not accepting requests")
		}

		if _, err := resolveCollection(ctx, tx, partner, input.CollectionID); err != nil {
			return err
		}

		if input.DurationMonths != nil {
			if !partner.RequestedDuration {
				return pkgerrors.New(pkgerrors.CodeValidation, "partner does not offer a choice of duration")
			}
			if !input.DurationMonths.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid requested duration")
			}
		}

		request := &models.Request{
			RequesterID:    input.RequesterID,
			PartnerID:      partner.ID,
			CollectionID:   input.CollectionID,
			Status:         enums.RequestStatusPending,
			Rationale:      input.Rationale,
			AccountEmail:   input.AccountEmail,
			DurationMonths: input.DurationMonths,
		}
		if err := NewRepository(tx).Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
		}

		// Waitlisted scopes still accept submissions, the requester is
		// just told to expect a wait.
		if partner.Status == enums.PartnerStatusWaitlist {
			if err := s.emitWaitlisted(ctx, tx, request, nil); err != nil {
				return err
			}
		}

		mapped := FromModel(*request)
		dto = &mapped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*RequestDTO, error) {
	request, err := NewRepository(s.db).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	if request.RequesterID != actor.UserID && !actor.Role.CanReviewRequests() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another user")
	}
	mapped := FromModel(*request)
	return &mapped, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters, actor Actor) (*RequestListDTO, error) {
	if !actor.Role.CanReviewRequests() {
		// Non-reviewers only ever see their own requests.
		id := actor.UserID
		filters.RequesterID = &id
		filters.IncludeHidden = false
	}

	items, nextCursor, err := NewRepository(s.db).List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}

	dtos := make([]RequestDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, FromModel(item))
	}
	return &RequestListDTO{Items: dtos, NextCursor: nextCursor}, nil
}

func (s *service) SetStatus(ctx context.Context, input SetStatusInput) (*RequestDTO, error) {
	if err := requireReviewer(input.Actor); err != nil {
		return nil, err
	}
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}

	var dto *RequestDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, err := loadRequest(ctx, tx, input.RequestID)
		if err != nil {
			return err
		}
		// The same lock scope the batch path uses, so capacity reads and
		// grant writes for one partner never interleave.
		if input.Status == enums.RequestStatusApproved || input.Status == enums.RequestStatusSent {
			if err := lockPartner(ctx, tx, request.PartnerID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock partner")
			}
		}
		if err := checkTransition(request.Status, input.Status); err != nil {
			return err
		}

		updated, err := s.applyTransition(ctx, tx, request, input.Status, input.Comments, input.Actor, true)
		if err != nil {
			return err
		}
		mapped := FromModel(*updated)
		dto = &mapped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) BatchSetStatus(ctx context.Context, input BatchSetStatusInput) ([]BatchResult, error) {
	if err := requireReviewer(input.Actor); err != nil {
		return nil, err
	}
	if len(input.RequestIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request ids required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	results := make(map[uuid.UUID]BatchResult, len(input.RequestIDs))

	// Partition capacity-relevant approvals (proxied scopes) so each
	// (partner, collection) scope's sub-batch is decided as one unit.
	type scopeKey struct {
		partnerID    uuid.UUID
		collectionID uuid.UUID // uuid.Nil for partner-wide requests
	}
	scopeGroups := map[scopeKey][]uuid.UUID{}
	var ordinary []uuid.UUID

	if input.Status == enums.RequestStatusApproved {
		var rows []models.Request
		if err := s.db.WithContext(ctx).
			Where("id IN ?", input.RequestIDs).
			Find(&rows).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requests")
		}
		byID := make(map[uuid.UUID]models.Request, len(rows))
		partnerIDs := make([]uuid.UUID, 0, len(rows))
		collectionIDs := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
			partnerIDs = append(partnerIDs, row.PartnerID)
			if row.CollectionID != nil {
				collectionIDs = append(collectionIDs, *row.CollectionID)
			}
		}

		var partners []models.Partner
		if err := s.db.WithContext(ctx).
			Where("id IN ?", partnerIDs).
			Find(&partners).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partners")
		}
		partnerByID := make(map[uuid.UUID]models.Partner, len(partners))
		for _, partner := range partners {
			partnerByID[partner.ID] = partner
		}

		collectionByID := map[uuid.UUID]models.Collection{}
		if len(collectionIDs) > 0 {
			var collections []models.Collection
			if err := s.db.WithContext(ctx).
				Where("id IN ?", collectionIDs).
				Find(&collections).Error; err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collections")
			}
			for _, collection := range collections {
				collectionByID[collection.ID] = collection
			}
		}

		for _, id := range input.RequestIDs {
			row, ok := byID[id]
			if !ok {
				results[id] = failedResult(id, pkgerrors.New(pkgerrors.CodeNotFound, "request not found"))
				continue
			}
			partner, ok := partnerByID[row.PartnerID]
			if !ok {
				ordinary = append(ordinary, id)
				continue
			}
			method := partner.AuthMethod
			key := scopeKey{partnerID: partner.ID}
			if row.CollectionID != nil {
				key.collectionID = *row.CollectionID
				if collection, ok := collectionByID[*row.CollectionID]; ok {
					method = collection.AuthMethod
				}
			}
			if method == enums.AuthMethodProxy {
				scopeGroups[key] = append(scopeGroups[key], id)
				continue
			}
			ordinary = append(ordinary, id)
		}
	} else {
		ordinary = input.RequestIDs
	}

	for key, ids := range scopeGroups {
		var collectionID *uuid.UUID
		if key.collectionID != uuid.Nil {
			scoped := key.collectionID
			collectionID = &scoped
		}
		s.decideScopeBatch(ctx, key.partnerID, collectionID, ids, input.Actor, results)
	}

	for _, id := range ordinary {
		if _, done := results[id]; done {
			continue
		}
		_, err := s.SetStatus(ctx, SetStatusInput{
			RequestID: id,
			Status:    input.Status,
			Actor:     input.Actor,
		})
		if err != nil {
			results[id] = failedResult(id, err)
			continue
		}
		results[id] = BatchResult{RequestID: id, Succeeded: true}
	}

	ordered := make([]BatchResult, 0, len(input.RequestIDs))
	for _, id := range input.RequestIDs {
		if result, ok := results[id]; ok {
			ordered = append(ordered, result)
		}
	}
	return ordered, nil
}

// decideScopeBatch admits or refuses one (partner, collection) scope's proxy
// approvals as a single unit: either every request in the sub-batch fits the
// scope's remaining capacity or none is applied.
func (s *service) decideScopeBatch(ctx context.Context, partnerID uuid.UUID, collectionID *uuid.UUID, ids []uuid.UUID, actor Actor, results map[uuid.UUID]BatchResult) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := lockPartner(ctx, tx, partnerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock partner")
		}
		partner, err := loadPartner(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		if partner.Status == enums.PartnerStatusWaitlist {
			return pkgerrors.New(pkgerrors.CodeAlreadyWaitlisted, "partner is waitlisted")
		}
		collection, err := resolveCollection(ctx, tx, partner, collectionID)
		if err != nil {
			return err
		}

		remaining, err := s.accountant.Remaining(ctx, tx, partner, collection, time.Now().UTC())
		if err != nil {
			return err
		}
		if !remaining.Unlimited && remaining.Count < len(ids) {
			details := map[string]any{
				"partner_id": partnerID.String(),
				"requested":  len(ids),
				"remaining":  remaining.Count,
			}
			if collectionID != nil {
				details["collection_id"] = collectionID.String()
			}
			return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "no accounts available").
				WithDetails(details)
		}
		exhausts := !remaining.Unlimited && remaining.Count == len(ids)

		for _, id := range ids {
			request, err := loadRequest(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := checkTransition(request.Status, enums.RequestStatusApproved); err != nil {
				return err
			}
			if _, err := s.approve(ctx, tx, request, partner, collection, actor, false); err != nil {
				return err
			}
		}

		if exhausts {
			return s.emitCapacityExhausted(ctx, tx, partner, collectionID, actor)
		}
		return nil
	})

	for _, id := range ids {
		if err != nil {
			results[id] = failedResult(id, err)
			continue
		}
		results[id] = BatchResult{RequestID: id, Succeeded: true}
	}
}

func (s *service) Renew(ctx context.Context, input RenewInput) (*RequestDTO, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OriginID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "origin request id required")
	}

	var dto *RequestDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		origin, err := loadRequest(ctx, tx, input.OriginID)
		if err != nil {
			return err
		}
		if origin.RequesterID != input.Actor.UserID && !input.Actor.Role.CanReviewRequests() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another user")
		}
		if origin.Status != enums.RequestStatusApproved && origin.Status != enums.RequestStatusSent {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only approved or sent requests can be renewed")
		}

		partner, err := loadPartner(ctx, tx, origin.PartnerID)
		if err != nil {
			return err
		}
		if !partner.RenewalsAvailable {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "partner does not offer renewals")
		}
		if partner.Status == enums.PartnerStatusNotAvailable {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "partner is no longer available")
		}

		repo := NewRepository(tx)
		open, err := repo.CountOpenChildren(ctx, origin.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count renewals")
		}
		if open > 0 {
			return pkgerrors.New(pkgerrors.CodeRenewalPending, "a renewal is already in flight")
		}

		child := &models.Request{
			RequesterID:    origin.RequesterID,
			PartnerID:      origin.PartnerID,
			CollectionID:   origin.CollectionID,
			Status:         enums.RequestStatusPending,
			Rationale:      coalesce(input.Rationale, origin.Rationale),
			AccountEmail:   coalesce(input.AccountEmail, origin.AccountEmail),
			DurationMonths: coalesceDuration(input.DurationMonths, origin.DurationMonths),
			ParentID:       &origin.ID,
		}
		if err := repo.Create(ctx, child); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create renewal request")
		}

		// Renewing against a waitlisted partner is allowed but warned.
		if partner.Status == enums.PartnerStatusWaitlist {
			if err := s.emitWaitlisted(ctx, tx, child, &input.Actor); err != nil {
				return err
			}
		}

		mapped := FromModel(*child)
		dto = &mapped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) DispatchPartner(ctx context.Context, partnerID uuid.UUID, actor Actor) ([]BatchResult, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id required")
	}

	var results []BatchResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := lockPartner(ctx, tx, partnerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock partner")
		}
		partner, err := loadPartner(ctx, tx, partnerID)
		if err != nil {
			return err
		}

		pending, err := NewRepository(tx).FindApprovedForPartner(ctx, partnerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load approved requests")
		}

		for i := range pending {
			request := &pending[i]
			if err := s.dispatchOne(ctx, tx, request, partner, actor); err != nil {
				return err
			}
			results = append(results, BatchResult{RequestID: request.ID, Succeeded: true})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// applyTransition routes a checked transition to the right handler.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, request *models.Request, target enums.RequestStatus, comments *string, actor Actor, checkCapacity bool) (*models.Request, error) {
	switch target {
	case enums.RequestStatusApproved:
		partner, err := loadPartner(ctx, tx, request.PartnerID)
		if err != nil {
			return nil, err
		}
		collection, err := resolveCollection(ctx, tx, partner, request.CollectionID)
		if err != nil {
			return nil, err
		}
		return s.approve(ctx, tx, request, partner, collection, actor, checkCapacity)
	case enums.RequestStatusSent:
		partner, err := loadPartner(ctx, tx, request.PartnerID)
		if err != nil {
			return nil, err
		}
		if err := s.dispatchOne(ctx, tx, request, partner, actor); err != nil {
			return nil, err
		}
		return request, nil
	case enums.RequestStatusNotApproved:
		return s.reject(ctx, tx, request, comments, actor)
	default:
		return s.plainTransition(ctx, tx, request, target, comments)
	}
}

// approve admits one request: capacity check, grant issuance, status
// stamping, and the associated events. Capacity is skipped when the batch
// path already decided the whole sub-batch, and always for bundle access.
func (s *service) approve(ctx context.Context, tx *gorm.DB, request *models.Request, partner *models.Partner, collection *models.Collection, actor Actor, checkCapacity bool) (*models.Request, error) {
	method := effectiveMethod(partner, collection)
	now := time.Now().UTC()

	if method.IsProxied() && partner.Status == enums.PartnerStatusWaitlist {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyWaitlisted, "partner is waitlisted")
	}

	exhausts := false
	if checkCapacity && method != enums.AuthMethodBundle {
		remaining, err := s.accountant.Remaining(ctx, tx, partner, collection, now)
		if err != nil {
			return nil, err
		}
		if !remaining.CanAdmit() {
			return nil, pkgerrors.New(pkgerrors.CodeCapacityExceeded, "no accounts available").
				WithDetails(map[string]any{"partner_id": partner.ID.String()})
		}
		exhausts = remaining.IsFinalSlot()
	}

	grant, err := s.engine.IssueOrUpdate(ctx, tx, grants.IssueInput{
		UserID:          request.RequesterID,
		AuthorizerID:    actor.UserID,
		Partner:         partner,
		Collection:      collection,
		RequestedMonths: request.DurationMonths,
		Renewal:         request.ParentID != nil,
	})
	if err != nil {
		return nil, err
	}

	finalStatus := enums.RequestStatusApproved
	if method.FinalizesInstantly() {
		finalStatus = enums.RequestStatusSent
	}

	updates := closeUpdates(request, now)
	updates["status"] = finalStatus
	updates["sent_by_id"] = actor.UserID
	repo := NewRepository(tx)
	if err := repo.Update(ctx, request.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request")
	}
	applyUpdates(request, finalStatus, now)
	stampDispatcher(request, actor)

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRequestApproved,
		AggregateType: enums.AggregateRequest,
		AggregateID:   request.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data: payloads.RequestApprovedEvent{
			RequestID:    request.ID,
			RequesterID:  request.RequesterID,
			PartnerID:    partner.ID,
			CollectionID: request.CollectionID,
			GrantID:      grant.ID,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit approved event")
	}

	partnerIDs := make([]uuid.UUID, 0, len(grant.Partners))
	for _, p := range grant.Partners {
		partnerIDs = append(partnerIDs, p.ID)
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGrantIssued,
		AggregateType: enums.AggregateGrant,
		AggregateID:   grant.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data: payloads.GrantIssuedEvent{
			GrantID:     grant.ID,
			UserID:      request.RequesterID,
			PartnerIDs:  partnerIDs,
			DateExpires: grant.DateExpires,
			Renewal:     request.ParentID != nil,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit grant event")
	}

	if finalStatus == enums.RequestStatusSent {
		if err := s.emitSent(ctx, tx, request, method, nil, actor); err != nil {
			return nil, err
		}
	}

	if exhausts {
		if err := s.emitCapacityExhausted(ctx, tx, partner, request.CollectionID, actor); err != nil {
			return nil, err
		}
	}
	return request, nil
}

func (s *service) reject(ctx context.Context, tx *gorm.DB, request *models.Request, comments *string, actor Actor) (*models.Request, error) {
	now := time.Now().UTC()
	updates := closeUpdates(request, now)
	updates["status"] = enums.RequestStatusNotApproved
	if comments != nil {
		updates["comments"] = comments
	}
	// A rejected renewal must not block future renewals of its origin.
	updates["parent_id"] = nil

	if err := NewRepository(tx).Update(ctx, request.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request")
	}
	applyUpdates(request, enums.RequestStatusNotApproved, now)
	request.ParentID = nil
	if comments != nil {
		request.Comments = comments
	}

	reason := ""
	if comments != nil {
		reason = *comments
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRequestRejected,
		AggregateType: enums.AggregateRequest,
		AggregateID:   request.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data: payloads.RequestRejectedEvent{
			RequestID:   request.ID,
			RequesterID: request.RequesterID,
			PartnerID:   request.PartnerID,
			Reason:      reason,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit rejected event")
	}
	return request, nil
}

func (s *service) plainTransition(ctx context.Context, tx *gorm.DB, request *models.Request, target enums.RequestStatus, comments *string) (*models.Request, error) {
	now := time.Now().UTC()
	updates := map[string]any{"status": target}
	if target.IsFinal() {
		for k, v := range closeUpdates(request, now) {
			updates[k] = v
		}
	}
	if comments != nil {
		updates["comments"] = comments
	}
	if err := NewRepository(tx).Update(ctx, request.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request")
	}

	request.Status = target
	if comments != nil {
		request.Comments = comments
	}
	if target.IsFinal() && request.DateClosed == nil {
		request.DateClosed = &now
		days := int(now.Sub(request.DateCreated).Hours() / 24)
		request.DaysOpen = &days
	}
	return request, nil
}

// dispatchOne marks an approved email/codes request sent. Codes delivery
// binds exactly one unused access code to the requester's grant.
func (s *service) dispatchOne(ctx context.Context, tx *gorm.DB, request *models.Request, partner *models.Partner, actor Actor) error {
	if request.Status != enums.RequestStatusApproved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only approved requests can be dispatched")
	}
	collection, err := resolveCollection(ctx, tx, partner, request.CollectionID)
	if err != nil {
		return err
	}
	method := effectiveMethod(partner, collection)
	if method.FinalizesInstantly() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "proxied requests finalize on approval")
	}

	var accessCodeID *uuid.UUID
	if method == enums.AuthMethodCodes {
		grant, err := grants.NewRepository(tx).FindForScope(ctx, request.RequesterID, partner.ID, request.CollectionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "no grant on file for this request")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load grant")
		}

		var code models.AccessCode
		if err := tx.WithContext(ctx).
			Where("partner_id = ? AND grant_id IS NULL", partner.ID).
			Order("created_at ASC").
			First(&code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "no unused access codes for partner")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load access code")
		}
		if err := tx.WithContext(ctx).
			Model(&models.AccessCode{}).
			Where("id = ?", code.ID).
			UpdateColumn("grant_id", grant.ID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind access code")
		}
		id := code.ID
		accessCodeID = &id
	}

	now := time.Now().UTC()
	updates := closeUpdates(request, now)
	updates["status"] = enums.RequestStatusSent
	updates["sent_by_id"] = actor.UserID
	if err := NewRepository(tx).Update(ctx, request.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request")
	}
	applyUpdates(request, enums.RequestStatusSent, now)
	stampDispatcher(request, actor)

	return s.emitSent(ctx, tx, request, method, accessCodeID, actor)
}

func (s *service) emitSent(ctx context.Context, tx *gorm.DB, request *models.Request, method enums.AuthMethod, accessCodeID *uuid.UUID, actor Actor) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRequestSent,
		AggregateType: enums.AggregateRequest,
		AggregateID:   request.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data: payloads.RequestSentEvent{
			RequestID:    request.ID,
			RequesterID:  request.RequesterID,
			PartnerID:    request.PartnerID,
			AuthMethod:   method,
			AccessCodeID: accessCodeID,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit sent event")
	}
	return nil
}

func (s *service) emitWaitlisted(ctx context.Context, tx *gorm.DB, request *models.Request, actor *Actor) error {
	var ref *outbox.ActorRef
	if actor != nil {
		ref = actorRef(*actor)
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRequestWaitlisted,
		AggregateType: enums.AggregateRequest,
		AggregateID:   request.ID,
		Version:       1,
		Actor:         ref,
		Data: payloads.RequestWaitlistedEvent{
			RequestID:   request.ID,
			RequesterID: request.RequesterID,
			PartnerID:   request.PartnerID,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit waitlisted event")
	}
	return nil
}

func (s *service) emitCapacityExhausted(ctx context.Context, tx *gorm.DB, partner *models.Partner, collectionID *uuid.UUID, actor Actor) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCapacityExhausted,
		AggregateType: enums.AggregatePartner,
		AggregateID:   partner.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data: payloads.CapacityExhaustedEvent{
			PartnerID:    partner.ID,
			CollectionID: collectionID,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit capacity event")
	}
	return nil
}

func requireReviewer(actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !actor.Role.CanReviewRequests() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "reviewer role required")
	}
	return nil
}

func loadPartner(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	if err := tx.WithContext(ctx).First(&partner, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner")
	}
	return &partner, nil
}

func loadRequest(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Request, error) {
	request, err := NewRepository(tx).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	return request, nil
}

// resolveCollection validates the optional collection scope against the
// partner's configuration.
func resolveCollection(ctx context.Context, tx *gorm.DB, partner *models.Partner, collectionID *uuid.UUID) (*models.Collection, error) {
	if collectionID == nil {
		if partner.SpecificCollection {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner requires choosing a collection")
		}
		return nil, nil
	}

	var collection models.Collection
	if err := tx.WithContext(ctx).First(&collection, "id = ?", *collectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
	}
	if collection.PartnerID != partner.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collection does not belong to partner")
	}
	return &collection, nil
}

func effectiveMethod(partner *models.Partner, collection *models.Collection) enums.AuthMethod {
	if collection != nil {
		return collection.AuthMethod
	}
	return partner.AuthMethod
}

func applyUpdates(request *models.Request, status enums.RequestStatus, now time.Time) {
	request.Status = status
	if status.IsFinal() && request.DateClosed == nil {
		request.DateClosed = &now
		days := int(now.Sub(request.DateCreated).Hours() / 24)
		request.DaysOpen = &days
	}
}

func stampDispatcher(request *models.Request, actor Actor) {
	actorID := actor.UserID
	request.SentByID = &actorID
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID: actor.UserID,
		Role:   actor.Role.String(),
	}
}

func failedResult(id uuid.UUID, err error) BatchResult {
	result := BatchResult{RequestID: id, Error: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		result.ErrorCode = string(typed.Code())
	}
	return result
}

func coalesce(override, fallback *string) *string {
	if override != nil {
		return override
	}
	return fallback
}

func coalesceDuration(override, fallback *enums.AccessDuration) *enums.AccessDuration {
	if override != nil {
		return override
	}
	return fallback
}

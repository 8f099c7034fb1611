package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/accesshub/accesshub-backend/api/middleware"
	"github.com/accesshub/accesshub-backend/internal/requests"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"github.com/accesshub/accesshub-backend/pkg/pagination"
)

type testRequestService struct {
	submitFn    func(ctx context.Context, input requests.SubmitInput) (*requests.RequestDTO, error)
	setStatusFn func(ctx context.Context, input requests.SetStatusInput) (*requests.RequestDTO, error)
	renewFn     func(ctx context.Context, input requests.RenewInput) (*requests.RequestDTO, error)
	dispatchFn  func(ctx context.Context, partnerID uuid.UUID, actor requests.Actor) ([]requests.BatchResult, error)
}

func (s *testRequestService) Submit(ctx context.Context, input requests.SubmitInput) (*requests.RequestDTO, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, input)
	}
	return &requests.RequestDTO{}, nil
}

func (s *testRequestService) Get(ctx context.Context, id uuid.UUID, actor requests.Actor) (*requests.RequestDTO, error) {
	return &requests.RequestDTO{}, nil
}

func (s *testRequestService) List(ctx context.Context, params pagination.Params, filters requests.ListFilters, actor requests.Actor) (*requests.RequestListDTO, error) {
	return &requests.RequestListDTO{}, nil
}

func (s *testRequestService) SetStatus(ctx context.Context, input requests.SetStatusInput) (*requests.RequestDTO, error) {
	if s.setStatusFn != nil {
		return s.setStatusFn(ctx, input)
	}
	return &requests.RequestDTO{}, nil
}

func (s *testRequestService) BatchSetStatus(ctx context.Context, input requests.BatchSetStatusInput) ([]requests.BatchResult, error) {
	return nil, nil
}

func (s *testRequestService) Renew(ctx context.Context, input requests.RenewInput) (*requests.RequestDTO, error) {
	if s.renewFn != nil {
		return s.renewFn(ctx, input)
	}
	return &requests.RequestDTO{}, nil
}

func (s *testRequestService) DispatchPartner(ctx context.Context, partnerID uuid.UUID, actor requests.Actor) ([]requests.BatchResult, error) {
	if s.dispatchFn != nil {
		return s.dispatchFn(ctx, partnerID, actor)
	}
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authedRequest(req *http.Request, userID uuid.UUID, role enums.Role) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func withURLParams(req *http.Request, pairs ...string) *http.Request {
	routeCtx := chi.NewRouteContext()
	for i := 0; i+1 < len(pairs); i += 2 {
		routeCtx.URLParams.Add(pairs[i], pairs[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestRequestSubmitPassesActorAndDuration(t *testing.T) {
	userID := uuid.New()
	partnerID := uuid.New()
	called := false
	svc := &testRequestService{
		submitFn: func(ctx context.Context, input requests.SubmitInput) (*requests.RequestDTO, error) {
			called = true
			if input.RequesterID != userID {
				t.Fatalf("unexpected requester %s", input.RequesterID)
			}
			if input.PartnerID != partnerID {
				t.Fatalf("unexpected partner %s", input.PartnerID)
			}
			if input.DurationMonths == nil || *input.DurationMonths != enums.AccessDuration(6) {
				t.Fatalf("unexpected duration %v", input.DurationMonths)
			}
			return &requests.RequestDTO{}, nil
		},
	}

	body := `{"partner_id":"` + partnerID.String() + `","duration_months":6}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, userID, enums.RoleEditor)

	resp := httptest.NewRecorder()
	RequestSubmit(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestRequestSubmitRejectsUnknownDuration(t *testing.T) {
	svc := &testRequestService{
		submitFn: func(ctx context.Context, input requests.SubmitInput) (*requests.RequestDTO, error) {
			t.Fatal("service must not be called for an invalid duration")
			return nil, nil
		},
	}

	body := `{"partner_id":"` + uuid.NewString() + `","duration_months":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.RoleEditor)

	resp := httptest.NewRecorder()
	RequestSubmit(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRequestSubmitRequiresAuthContext(t *testing.T) {
	body := `{"partner_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	RequestSubmit(&testRequestService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequestSetStatusRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/requests/x/status", strings.NewReader(`{"status":"granted"}`))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.RoleCoordinator)
	req = withURLParams(req, "id", uuid.NewString())

	resp := httptest.NewRecorder()
	RequestSetStatus(&testRequestService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected code %q", envelope.Error.Code)
	}
}

func TestRequestSetStatusForwardsComments(t *testing.T) {
	requestID := uuid.New()
	actorID := uuid.New()
	svc := &testRequestService{
		setStatusFn: func(ctx context.Context, input requests.SetStatusInput) (*requests.RequestDTO, error) {
			if input.RequestID != requestID {
				t.Fatalf("unexpected request %s", input.RequestID)
			}
			if input.Status != enums.RequestStatusQuestion {
				t.Fatalf("unexpected status %s", input.Status)
			}
			if input.Comments == nil || *input.Comments != "which campus?" {
				t.Fatalf("unexpected comments %v", input.Comments)
			}
			if input.Actor.UserID != actorID {
				t.Fatalf("unexpected actor %s", input.Actor.UserID)
			}
			return &requests.RequestDTO{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/requests/x/status", strings.NewReader(`{"status":"question","comments":"which campus?"}`))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, actorID, enums.RoleCoordinator)
	req = withURLParams(req, "id", requestID.String())

	resp := httptest.NewRecorder()
	RequestSetStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRequestRenewUsesOriginFromPath(t *testing.T) {
	originID := uuid.New()
	svc := &testRequestService{
		renewFn: func(ctx context.Context, input requests.RenewInput) (*requests.RequestDTO, error) {
			if input.OriginID != originID {
				t.Fatalf("unexpected origin %s", input.OriginID)
			}
			return &requests.RequestDTO{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/x/renew", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.New(), enums.RoleEditor)
	req = withURLParams(req, "id", originID.String())

	resp := httptest.NewRecorder()
	RequestRenew(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

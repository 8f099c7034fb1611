package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/accesshub/accesshub-backend/internal/partners"
	"github.com/accesshub/accesshub-backend/internal/requests"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/pagination"
)

type testPartnerService struct {
	uploadFn   func(ctx context.Context, partnerID uuid.UUID, codes []string) (*partners.UploadCodesResult, error)
	deleteFn   func(ctx context.Context, partnerID, collectionID uuid.UUID) error
	backfillFn func(ctx context.Context, partnerID uuid.UUID) (int, error)
}

func (s *testPartnerService) Create(ctx context.Context, input partners.CreatePartnerInput) (*partners.PartnerDTO, error) {
	return &partners.PartnerDTO{}, nil
}

func (s *testPartnerService) Update(ctx context.Context, id uuid.UUID, input partners.UpdatePartnerInput) (*partners.PartnerDTO, error) {
	return &partners.PartnerDTO{}, nil
}

func (s *testPartnerService) Get(ctx context.Context, id uuid.UUID) (*partners.PartnerDTO, error) {
	return &partners.PartnerDTO{}, nil
}

func (s *testPartnerService) List(ctx context.Context, params pagination.Params) (*partners.PartnerListDTO, error) {
	return &partners.PartnerListDTO{}, nil
}

func (s *testPartnerService) AddCollection(ctx context.Context, partnerID uuid.UUID, input partners.CreateCollectionInput) (*partners.CollectionDTO, error) {
	return &partners.CollectionDTO{}, nil
}

func (s *testPartnerService) DeleteCollection(ctx context.Context, partnerID, collectionID uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, partnerID, collectionID)
	}
	return nil
}

func (s *testPartnerService) UploadAccessCodes(ctx context.Context, partnerID uuid.UUID, codes []string) (*partners.UploadCodesResult, error) {
	if s.uploadFn != nil {
		return s.uploadFn(ctx, partnerID, codes)
	}
	return &partners.UploadCodesResult{}, nil
}

func (s *testPartnerService) BackfillExpiry(ctx context.Context, partnerID uuid.UUID) (int, error) {
	if s.backfillFn != nil {
		return s.backfillFn(ctx, partnerID)
	}
	return 0, nil
}

func TestPartnerUploadAccessCodesForwardsPayload(t *testing.T) {
	partnerID := uuid.New()
	svc := &testPartnerService{
		uploadFn: func(ctx context.Context, id uuid.UUID, codes []string) (*partners.UploadCodesResult, error) {
			if id != partnerID {
				t.Fatalf("unexpected partner %s", id)
			}
			if len(codes) != 2 || codes[0] != "ALPHA" || codes[1] != "BETA" {
				t.Fatalf("unexpected codes %v", codes)
			}
			return &partners.UploadCodesResult{Added: 2}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/partners/x/access-codes", strings.NewReader(`{"codes":["ALPHA","BETA"]}`))
	req.Header.Set("Content-Type", "application/json")
	req = withURLParams(req, "id", partnerID.String())

	resp := httptest.NewRecorder()
	PartnerUploadAccessCodes(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data partners.UploadCodesResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.Added != 2 {
		t.Fatalf("unexpected added count %d", envelope.Data.Added)
	}
}

func TestPartnerUploadAccessCodesRejectsEmptyList(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/partners/x/access-codes", strings.NewReader(`{"codes":[]}`))
	req.Header.Set("Content-Type", "application/json")
	req = withURLParams(req, "id", uuid.NewString())

	resp := httptest.NewRecorder()
	PartnerUploadAccessCodes(&testPartnerService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPartnerDeleteCollectionPassesBothIDs(t *testing.T) {
	partnerID := uuid.New()
	collectionID := uuid.New()
	svc := &testPartnerService{
		deleteFn: func(ctx context.Context, pid, cid uuid.UUID) error {
			if pid != partnerID || cid != collectionID {
				t.Fatalf("unexpected ids %s %s", pid, cid)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/partners/x/collections/y", nil)
	req = withURLParams(req, "id", partnerID.String(), "collectionId", collectionID.String())

	resp := httptest.NewRecorder()
	PartnerDeleteCollection(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPartnerBackfillExpiryReportsCount(t *testing.T) {
	partnerID := uuid.New()
	svc := &testPartnerService{
		backfillFn: func(ctx context.Context, id uuid.UUID) (int, error) {
			if id != partnerID {
				t.Fatalf("unexpected partner %s", id)
			}
			return 7, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/partners/x/backfill-expiry", nil)
	req = withURLParams(req, "id", partnerID.String())

	resp := httptest.NewRecorder()
	PartnerBackfillExpiry(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data map[string]int `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data["updated"] != 7 {
		t.Fatalf("unexpected updated count %d", envelope.Data["updated"])
	}
}

func TestPartnerDispatchForwardsActor(t *testing.T) {
	partnerID := uuid.New()
	actorID := uuid.New()
	svc := &testRequestService{
		dispatchFn: func(ctx context.Context, id uuid.UUID, actor requests.Actor) ([]requests.BatchResult, error) {
			if id != partnerID {
				t.Fatalf("unexpected partner %s", id)
			}
			if actor.UserID != actorID || actor.Role != enums.RoleCoordinator {
				t.Fatalf("unexpected actor %+v", actor)
			}
			return []requests.BatchResult{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/partners/x/dispatch", nil)
	req = authedRequest(req, actorID, enums.RoleCoordinator)
	req = withURLParams(req, "id", partnerID.String())

	resp := httptest.NewRecorder()
	PartnerDispatch(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

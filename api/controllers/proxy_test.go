package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
)

type testProxyService struct {
	authorizeFn func(ctx context.Context, userID uuid.UUID, username, targetURL string) (string, error)
}

func (s *testProxyService) Authorize(ctx context.Context, userID uuid.UUID, username, targetURL string) (string, error) {
	if s.authorizeFn != nil {
		return s.authorizeFn(ctx, userID, username, targetURL)
	}
	return "https://ezproxy.example.org/login", nil
}

type testUserSource struct {
	user *models.User
}

func (s *testUserSource) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.user, nil
}

func TestProxyAuthorizeRedirectsWithResolvedUsername(t *testing.T) {
	userID := uuid.New()
	svc := &testProxyService{
		authorizeFn: func(ctx context.Context, uid uuid.UUID, username, targetURL string) (string, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			if username != "jreader" {
				t.Fatalf("unexpected username %q", username)
			}
			if targetURL != "https://journals.example.com/article" {
				t.Fatalf("unexpected target %q", targetURL)
			}
			return "https://ezproxy.example.org/login?user=jreader", nil
		},
	}
	users := &testUserSource{user: &models.User{Username: "jreader"}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proxy/authorize?url=https%3A%2F%2Fjournals.example.com%2Farticle", nil)
	req = authedRequest(req, userID, enums.RoleEditor)

	resp := httptest.NewRecorder()
	ProxyAuthorize(svc, users, testLogger())(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302 got %d: %s", resp.Code, resp.Body.String())
	}
	if loc := resp.Header().Get("Location"); loc != "https://ezproxy.example.org/login?user=jreader" {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestProxyAuthorizeRequiresTargetURL(t *testing.T) {
	users := &testUserSource{user: &models.User{Username: "jreader"}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proxy/authorize", nil)
	req = authedRequest(req, uuid.New(), enums.RoleEditor)

	resp := httptest.NewRecorder()
	ProxyAuthorize(&testProxyService{}, users, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

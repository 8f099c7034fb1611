package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/accesshub/accesshub-backend/internal/grants"
	"github.com/accesshub/accesshub-backend/pkg/config"
	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultGroup = "Default"
	bundleGroup  = "BUNDLE"
)

// Service signs users into the proxy appliance based on their valid grants.
type Service interface {
	Authorize(ctx context.Context, userID uuid.UUID, username, targetURL string) (string, error)
}

type grantSource interface {
	FindValidForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Grant, error)
}

type service struct {
	db     *gorm.DB
	grants grantSource
	cfg    config.ProxyConfig
	now    func() time.Time
}

// ServiceParams bundles the dependencies for the proxy service.
type ServiceParams struct {
	DB     *gorm.DB
	Config config.ProxyConfig
}

// NewService builds the proxy ticket service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database connection required")
	}
	if params.Config.BaseURL == "" || params.Config.Secret == "" {
		return nil, fmt.Errorf("proxy base URL and secret required")
	}
	return &service{
		db:     params.DB,
		grants: grants.NewRepository(params.DB),
		cfg:    params.Config,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Authorize issues a signed proxy login redirect, or refuses when the user
// holds no proxy-reachable grant.
func (s *service) Authorize(ctx context.Context, userID uuid.UUID, username, targetURL string) (string, error) {
	if username == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "username required")
	}
	target, err := url.Parse(targetURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "target url must be absolute")
	}

	groups, err := s.groupsFor(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(groups) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "no proxied access for user")
	}
	groups = append(groups, defaultGroup)

	encoded := ticket(s.cfg.Secret, username, groups, s.now())
	return loginURL(s.cfg.BaseURL, username, encoded, targetURL), nil
}

// groupsFor derives proxy group names from the user's valid grants. Partner
// scopes map to P<id>, collection scopes to S<id>, and any valid bundle grant
// adds the shared BUNDLE group.
func (s *service) groupsFor(ctx context.Context, userID uuid.UUID) ([]string, error) {
	valid, err := s.grants.FindValidForUser(ctx, userID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load valid grants")
	}

	seen := map[string]bool{}
	collections := map[uuid.UUID]*models.Collection{}
	for _, grant := range valid {
		if grant.CollectionID != nil {
			collection, err := s.loadCollection(ctx, collections, *grant.CollectionID)
			if err != nil {
				return nil, err
			}
			if collection != nil && collection.AuthMethod == enums.AuthMethodProxy {
				seen["S"+collection.ID.String()] = true
			}
			continue
		}
		for _, partner := range grant.Partners {
			switch partner.AuthMethod {
			case enums.AuthMethodProxy:
				seen["P"+partner.ID.String()] = true
			case enums.AuthMethodBundle:
				seen[bundleGroup] = true
			}
		}
	}

	groups := make([]string, 0, len(seen))
	for group := range seen {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups, nil
}

func (s *service) loadCollection(ctx context.Context, cache map[uuid.UUID]*models.Collection, id uuid.UUID) (*models.Collection, error) {
	if cached, ok := cache[id]; ok {
		return cached, nil
	}
	var collection models.Collection
	if err := s.db.WithContext(ctx).First(&collection, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cache[id] = nil
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
	}
	cache[id] = &collection
	return &collection, nil
}

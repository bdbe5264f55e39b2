package listing

import (
	"context"

	"github.com/flatfinder/flatfinder/internal/app"
	"github.com/flatfinder/flatfinder/internal/db"
	svcErr "github.com/flatfinder/flatfinder/internal/errors"
	"github.com/flatfinder/flatfinder/internal/repository"
)

const defaultSearchLimit = 30

// Service implements property listing and search.
type Service struct {
	appCtx       *app.AppContext
	propertyRepo *repository.PropertyRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:       appCtx,
		propertyRepo: repository.NewPropertyRepository(appCtx.DB),
	}
}

// CreateProperty stores a new listing owned by ownerUID.
func (s *Service) CreateProperty(ctx context.Context, ownerUID string, p *db.Property) (string, error) {
	if p.Title == "" {
		return "", svcErr.InvalidArgument("title is required")
	}
	if p.Rent < 0 {
		return "", svcErr.InvalidArgument("rent must not be negative")
	}
	p.ID = ""
	p.OwnerUID = ownerUID

	if err := s.propertyRepo.Create(ctx, p); err != nil {
		s.appCtx.Logger.Error("property create failed", "owner", ownerUID, "err", err)
		return "", svcErr.Map(err)
	}
	return p.ID, nil
}

// Search returns listings matching the criteria, rent ascending when a rent
// ceiling is given, otherwise newest first.
func (s *Service) Search(ctx context.Context, q repository.PropertyQuery) ([]db.Property, error) {
	if q.Limit <= 0 {
		q.Limit = defaultSearchLimit
	}

	props, err := s.propertyRepo.Search(ctx, q)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return props, nil
}

// Mine returns the caller's own listings.
func (s *Service) Mine(ctx context.Context, ownerUID string) ([]db.Property, error) {
	props, err := s.propertyRepo.ListByOwner(ctx, ownerUID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return props, nil
}

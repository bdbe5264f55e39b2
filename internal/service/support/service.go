package support

import (
	"context"

	"github.com/flatfinder/flatfinder/internal/app"
	"github.com/flatfinder/flatfinder/internal/db"
	svcErr "github.com/flatfinder/flatfinder/internal/errors"
	"github.com/flatfinder/flatfinder/internal/repository"
)

// Service covers support tickets and the device push-token registry.
type Service struct {
	appCtx      *app.AppContext
	supportRepo *repository.SupportRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		supportRepo: repository.NewSupportRepository(appCtx.DB),
	}
}

func (s *Service) CreateTicket(ctx context.Context, uid, subject, body string) (string, error) {
	if subject == "" {
		return "", svcErr.InvalidArgument("subject is required")
	}

	t := db.SupportTicket{UID: uid, Subject: subject, Body: body}
	if err := s.supportRepo.CreateTicket(ctx, &t); err != nil {
		s.appCtx.Logger.Error("ticket create failed", "uid", uid, "err", err)
		return "", svcErr.Map(err)
	}
	return t.ID, nil
}

func (s *Service) ListTickets(ctx context.Context, uid string) ([]db.SupportTicket, error) {
	tickets, err := s.supportRepo.ListTickets(ctx, uid)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return tickets, nil
}

// RegisterToken points a device push token at uid. Delivery is handled by the
// external messaging provider; this only maintains the registry it reads.
func (s *Service) RegisterToken(ctx context.Context, uid, token string) error {
	if token == "" {
		return svcErr.InvalidArgument("token is required")
	}
	if err := s.supportRepo.RegisterToken(ctx, token, uid); err != nil {
		return svcErr.Map(err)
	}
	return nil
}

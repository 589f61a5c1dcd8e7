package user

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/querybuilder"
)

type Service struct {
	users     UserRepository
	addresses AddressRepository
}

func NewService(users UserRepository, addresses AddressRepository) *Service {
	return &Service{users: users, addresses: addresses}
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	addrs, err := s.addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Addresses = addrs
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}
	if u.Name == "" {
		return nil, ErrValidation
	}
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error) {
	return s.addresses.ListByUser(ctx, userID)
}

func (s *Service) AddAddress(ctx context.Context, userID int64, req AddressRequest) (*domain.Address, error) {
	a := &domain.Address{
		UserID:     userID,
		Label:      strings.TrimSpace(req.Label),
		Street:     strings.TrimSpace(req.Street),
		City:       strings.TrimSpace(req.City),
		State:      strings.TrimSpace(req.State),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
		IsPrimary:  req.IsPrimary,
	}
	if a.Street == "" || a.City == "" || a.Country == "" {
		return nil, ErrValidation
	}
	if err := s.addresses.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) SetPrimaryAddress(ctx context.Context, userID, addressID int64) error {
	return mapNotFound(s.addresses.SetPrimary(ctx, userID, addressID))
}

func (s *Service) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	return mapNotFound(s.addresses.Delete(ctx, userID, addressID))
}

func (s *Service) ListUsers(ctx context.Context, params querybuilder.QueryRequest) (*querybuilder.PagedResult[domain.User], error) {
	return s.users.List(ctx, params)
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

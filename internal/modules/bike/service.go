package bike

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/cache"
	"bikerental/internal/pkg/querybuilder"
	"bikerental/internal/repository"
)

const (
	MaxImageSize = 10 * 1024 * 1024
	// busyHorizon bounds the cached busy-slot view of a bike.
	busyHorizon = 365 * 24 * time.Hour
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Service struct {
	bikes    BikeRepository
	slots    SlotReader
	cache    cache.Cache
	cacheTTL time.Duration
	storage  ObjectStorage
	log      *logrus.Logger
	now      func() time.Time
}

func NewService(
	bikes BikeRepository,
	slots SlotReader,
	c cache.Cache,
	cacheTTL time.Duration,
	storage ObjectStorage,
	log *logrus.Logger,
) *Service {
	return &Service{
		bikes:    bikes,
		slots:    slots,
		cache:    c,
		cacheTTL: cacheTTL,
		storage:  storage,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context, params querybuilder.QueryRequest) (*querybuilder.PagedResult[domain.Bike], error) {
	return s.bikes.List(ctx, params, nil)
}

// ListOwned lists the caller's own fleet.
func (s *Service) ListOwned(ctx context.Context, ownerID int64, params querybuilder.QueryRequest) (*querybuilder.PagedResult[domain.Bike], error) {
	return s.bikes.List(ctx, params, []querybuilder.Condition{{SQL: "bikes.owner_id = ?", Args: []any{ownerID}}})
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Bike, error) {
	b, err := s.bikes.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return b, nil
}

// BusySlots returns the confirmed or active intervals of a bike that
// intersect [from, to). Upcoming windows are served from the cache.
func (s *Service) BusySlots(ctx context.Context, bikeID int64, from, to time.Time) ([]repository.BusySlot, error) {
	if !from.Before(to) {
		return nil, ErrValidation
	}
	if _, err := s.Get(ctx, bikeID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if s.cache == nil || from.Before(now) || to.After(now.Add(busyHorizon)) {
		return s.slots.BusySlots(ctx, bikeID, from, to)
	}

	key := cache.BusySlotsKey(bikeID)
	var upcoming []repository.BusySlot
	found, err := s.cache.Get(ctx, key, &upcoming)
	if err != nil {
		s.log.WithError(err).WithField("bike_id", bikeID).Warn("busy slot cache read failed")
	}
	if !found {
		upcoming, err = s.slots.BusySlots(ctx, bikeID, now, now.Add(busyHorizon))
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, upcoming, s.cacheTTL); err != nil {
			s.log.WithError(err).WithField("bike_id", bikeID).Warn("busy slot cache write failed")
		}
	}

	out := make([]repository.BusySlot, 0, len(upcoming))
	for _, slot := range upcoming {
		if slot.Overlaps(from, to) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, actor Actor, req CreateBikeRequest) (*domain.Bike, error) {
	ownerID := actor.UserID
	if actor.isAdmin() && req.OwnerID > 0 {
		ownerID = req.OwnerID
	}

	b := &domain.Bike{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(req.Name),
		Brand:       strings.TrimSpace(req.Brand),
		Model:       strings.TrimSpace(req.Model),
		Type:        domain.BikeType(req.Type),
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		PricePerDay: req.PricePerDay,
		Status:      domain.BikeAvailable,
	}
	if b.Name == "" || b.PricePerDay < 0 {
		return nil, ErrValidation
	}
	if err := s.bikes.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Update(ctx context.Context, actor Actor, id int64, req UpdateBikeRequest) (*domain.Bike, error) {
	b, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		b.Name = strings.TrimSpace(*req.Name)
	}
	if req.Brand != nil {
		b.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Model != nil {
		b.Model = strings.TrimSpace(*req.Model)
	}
	if req.Type != nil {
		b.Type = domain.BikeType(*req.Type)
	}
	if req.Description != nil {
		b.Description = strings.TrimSpace(*req.Description)
	}
	if req.Location != nil {
		b.Location = strings.TrimSpace(*req.Location)
	}
	if req.PricePerDay != nil {
		b.PricePerDay = *req.PricePerDay
	}
	if req.Status != nil {
		b.Status = domain.BikeStatus(*req.Status)
	}
	if b.Name == "" || b.PricePerDay < 0 {
		return nil, ErrValidation
	}

	if err := s.bikes.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Delete(ctx context.Context, actor Actor, id int64) error {
	b, err := s.authorize(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.bikes.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	if b.ImageURL != "" && s.storage != nil {
		if err := s.storage.Delete(ctx, b.ImageURL); err != nil {
			s.log.WithError(err).WithField("bike_id", id).Warn("failed to delete bike image")
		}
	}
	s.invalidate(ctx, id)
	return nil
}

// UploadImage stores a new picture for the bike and replaces the previous one.
func (s *Service) UploadImage(ctx context.Context, actor Actor, id int64, filename string, r io.Reader) (string, error) {
	b, err := s.authorize(ctx, actor, id)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 || len(data) > MaxImageSize {
		return "", ErrInvalidImage
	}

	contentType := strings.Split(http.DetectContentType(data), ";")[0]
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", ErrInvalidImage
	}
	if e := strings.ToLower(filepath.Ext(filename)); e == ".jpeg" || e == ext {
		ext = e
	}

	key := fmt.Sprintf("bikes/%d/%s%s", id, uuid.NewString(), ext)
	url, err := s.storage.Put(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return "", err
	}
	if err := s.bikes.SetImageURL(ctx, id, url); err != nil {
		_ = s.storage.Delete(ctx, url)
		return "", err
	}

	if b.ImageURL != "" {
		if err := s.storage.Delete(ctx, b.ImageURL); err != nil {
			s.log.WithError(err).WithField("bike_id", id).Warn("failed to delete previous bike image")
		}
	}
	return url, nil
}

// InvalidateBusySlots drops the cached busy-slot view of a bike.
func (s *Service) InvalidateBusySlots(ctx context.Context, bikeID int64) {
	s.invalidate(ctx, bikeID)
}

func (s *Service) invalidate(ctx context.Context, bikeID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.BusySlotsKey(bikeID)); err != nil {
		s.log.WithError(err).WithField("bike_id", bikeID).Warn("busy slot cache invalidation failed")
	}
}

func (s *Service) authorize(ctx context.Context, actor Actor, id int64) (*domain.Bike, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.isAdmin() && b.OwnerID != actor.UserID {
		return nil, ErrForbidden
	}
	return b, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

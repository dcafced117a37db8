package events

import (
	"context"
	"errors"

	"stagepass/internal/shared/apperr"
	"stagepass/internal/shared/constants"
	"stagepass/pkg/cache"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service interface defines the contract for event lookups
type Service interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
}

type service struct {
	repo  Repository
	cache cache.Service
}

// NewService creates the event catalog service. A nil cache disables the
// read-through layer.
func NewService(repo Repository, cacheSvc cache.Service) Service {
	return &service{repo: repo, cache: cacheSvc}
}

func (s *service) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	if s.cache != nil {
		var cached Event
		key := constants.BuildEventDetailKey(id.String())
		err := s.cache.GetOrSet(ctx, key, constants.TTL_EVENT_DETAIL, func() (interface{}, error) {
			return s.loadEvent(ctx, id)
		}, &cached)
		if err == nil {
			return &cached, nil
		}
		// fall through to the database on any cache failure
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, err
		}
	}

	return s.loadEvent(ctx, id)
}

func (s *service) loadEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("event %s not found", id)
		}
		return nil, apperr.Persistence(err, "failed to load event %s", id)
	}
	return event, nil
}

func (s *service) ListEvents(ctx context.Context) ([]Event, error) {
	if s.cache != nil {
		var cached []Event
		err := s.cache.GetOrSet(ctx, constants.CACHE_KEY_EVENTS_LIST, constants.TTL_EVENT_LIST, func() (interface{}, error) {
			return s.loadEvents(ctx)
		}, &cached)
		if err == nil {
			return cached, nil
		}
	}

	return s.loadEvents(ctx)
}

func (s *service) loadEvents(ctx context.Context) ([]Event, error) {
	events, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list events")
	}
	return events, nil
}

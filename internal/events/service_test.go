package events

import (
	"context"
	"testing"

	"stagepass/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	events map[uuid.UUID]*Event
	calls  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: make(map[uuid.UUID]*Event)}
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	f.calls++
	event, ok := f.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return event, nil
}

func (f *fakeRepo) List(ctx context.Context) ([]Event, error) {
	f.calls++
	var list []Event
	for _, event := range f.events {
		if event.Status != "DRAFT" {
			list = append(list, *event)
		}
	}
	return list, nil
}

func TestGetEvent(t *testing.T) {
	repo := newFakeRepo()
	event := &Event{ID: uuid.New(), Name: "Midnight Static Tour", Status: "ON_SALE"}
	repo.events[event.ID] = event

	// nil cache disables the read-through layer
	svc := NewService(repo, nil)

	got, err := svc.GetEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.Name, got.Name)
}

func TestGetEventNotFound(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.GetEvent(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestListEvents(t *testing.T) {
	repo := newFakeRepo()
	onSale := &Event{ID: uuid.New(), Name: "Standup Night Live", Status: "ON_SALE"}
	draft := &Event{ID: uuid.New(), Name: "Winter Arena Festival", Status: "DRAFT"}
	repo.events[onSale.ID] = onSale
	repo.events[draft.ID] = draft

	svc := NewService(repo, nil)

	list, err := svc.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, onSale.Name, list[0].Name)
}

func TestIsOnSale(t *testing.T) {
	assert.True(t, (&Event{Status: "ON_SALE"}).IsOnSale())
	assert.False(t, (&Event{Status: "DRAFT"}).IsOnSale())
	assert.False(t, (&Event{Status: "CLOSED"}).IsOnSale())
}

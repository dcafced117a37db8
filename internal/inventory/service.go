package inventory

import (
	"context"
	"time"

	"stagepass/internal/shared/apperr"
	"stagepass/pkg/logger"

	"github.com/google/uuid"
)

// Service interface defines the contract for seat inventory operations
type Service interface {
	// Seat map and lookups
	GetSeatMap(ctx context.Context, eventID uuid.UUID) (*SeatMapResponse, error)
	GetSeatsByIDs(ctx context.Context, seatIDs []uuid.UUID) ([]Seat, error)

	// Lifecycle transitions driven by checkout and refunds
	ReserveSeats(ctx context.Context, orderID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error)
	AllocateZone(ctx context.Context, orderID, eventID, zoneID uuid.UUID, quantity int) (*Zone, []Seat, error)
	ConfirmSold(ctx context.Context, orderID uuid.UUID) error
	ReleaseReserved(ctx context.Context, orderID uuid.UUID) error
	ReleaseSold(ctx context.Context, orderID uuid.UUID, seatIDs []uuid.UUID) error

	// Advisory pre-checkout holds
	HoldSeats(ctx context.Context, req *SeatHoldRequest) (*SeatHoldResponse, error)
	ReleaseHold(ctx context.Context, holdID string) error
}

type service struct {
	repo    Repository
	holds   *HoldStore
	holdTTL time.Duration
	logger  *logger.Logger
}

func NewService(repo Repository, holds *HoldStore, holdTTL time.Duration) Service {
	return &service{
		repo:    repo,
		holds:   holds,
		holdTTL: holdTTL,
		logger:  logger.GetDefault(),
	}
}

// GetSeatMap returns all zones and seats for an event, with advisory redis
// holds folded in as HELD so the storefront can grey them out.
func (s *service) GetSeatMap(ctx context.Context, eventID uuid.UUID) (*SeatMapResponse, error) {
	zones, err := s.repo.GetZonesByEventID(ctx, eventID)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to load seat map for event %s", eventID)
	}
	if len(zones) == 0 {
		return nil, apperr.NotFound("no zones found for event %s", eventID)
	}

	var allSeatIDs []uuid.UUID
	for _, z := range zones {
		for _, seat := range z.Seats {
			allSeatIDs = append(allSeatIDs, seat.ID)
		}
	}

	heldSeats := map[uuid.UUID]bool{}
	if s.holds != nil {
		// Holds are advisory; a redis outage degrades the map, not the sale
		if held, err := s.holds.HeldSeatIDs(ctx, allSeatIDs); err == nil {
			heldSeats = held
		} else {
			s.logger.Warn("seat hold overlay unavailable", "error", err)
		}
	}

	resp := &SeatMapResponse{EventID: eventID.String()}
	for _, z := range zones {
		zr := ZoneResponse{
			ID:        z.ID.String(),
			Name:      z.Name,
			Category:  z.Category,
			BasePrice: z.BasePrice,
			Capacity:  z.Capacity,
		}
		for _, seat := range z.Seats {
			zr.Seats = append(zr.Seats, seat.ToResponse(heldSeats[seat.ID]))
		}
		resp.Zones = append(resp.Zones, zr)
	}
	return resp, nil
}

func (s *service) GetSeatsByIDs(ctx context.Context, seatIDs []uuid.UUID) ([]Seat, error) {
	seats, err := s.repo.GetSeatsByIDs(ctx, seatIDs)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to load seats")
	}
	return seats, nil
}

// ReserveSeats moves the whole set AVAILABLE -> RESERVED for the order, or
// fails without touching any seat.
func (s *service) ReserveSeats(ctx context.Context, orderID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	if len(seatIDs) == 0 {
		return nil, apperr.Validation("no seats requested")
	}
	if hasDuplicates(seatIDs) {
		return nil, apperr.Validation("duplicate seat ids in request")
	}

	seats, err := s.repo.ReserveSeats(ctx, orderID, seatIDs)
	if err != nil {
		return nil, err
	}

	for _, seat := range seats {
		s.logger.LogSeatStatusChange(ctx, seat.ID.String(), SeatAvailable, SeatReserved, orderID.String())
	}
	return seats, nil
}

// AllocateZone reserves a number of open spots in a GENERAL or VIP zone for
// the order. The buyer gets capacity, not specific seats.
func (s *service) AllocateZone(ctx context.Context, orderID, eventID, zoneID uuid.UUID, quantity int) (*Zone, []Seat, error) {
	if quantity < 1 {
		return nil, nil, apperr.Validation("quantity must be at least 1")
	}

	zone, seats, err := s.repo.ReserveZoneSeats(ctx, orderID, eventID, zoneID, quantity)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("zone spots allocated",
		"order_id", orderID.String(),
		"zone_id", zoneID.String(),
		"count", len(seats))
	return zone, seats, nil
}

// ConfirmSold promotes the order's RESERVED seats to SOLD after payment.
// Seats already SOLD are skipped, so webhook replays are harmless.
func (s *service) ConfirmSold(ctx context.Context, orderID uuid.UUID) error {
	seatIDs, err := s.repo.SeatIDsReservedByOrder(ctx, orderID)
	if err != nil {
		return apperr.Persistence(err, "failed to find reserved seats for order %s", orderID)
	}
	if len(seatIDs) == 0 {
		return nil
	}

	moved, err := s.repo.TransitionSeats(ctx, &orderID, seatIDs, []string{SeatReserved}, SeatSold)
	if err != nil {
		return err
	}
	s.logger.Info("seats confirmed sold", "order_id", orderID.String(), "count", moved)
	return nil
}

// ReleaseReserved returns the order's RESERVED seats to AVAILABLE. Used when
// payment fails, the order is cancelled, or checkout compensation runs.
func (s *service) ReleaseReserved(ctx context.Context, orderID uuid.UUID) error {
	seatIDs, err := s.repo.SeatIDsReservedByOrder(ctx, orderID)
	if err != nil {
		return apperr.Persistence(err, "failed to find reserved seats for order %s", orderID)
	}
	if len(seatIDs) == 0 {
		return nil
	}

	moved, err := s.repo.TransitionSeats(ctx, &orderID, seatIDs, []string{SeatReserved}, SeatAvailable)
	if err != nil {
		return err
	}
	s.logger.Info("reserved seats released", "order_id", orderID.String(), "count", moved)
	return nil
}

// ReleaseSold returns SOLD seats to AVAILABLE for a full refund.
func (s *service) ReleaseSold(ctx context.Context, orderID uuid.UUID, seatIDs []uuid.UUID) error {
	if len(seatIDs) == 0 {
		var err error
		seatIDs, err = s.repo.SeatIDsHeldByOrder(ctx, orderID)
		if err != nil {
			return apperr.Persistence(err, "failed to find sold seats for order %s", orderID)
		}
	}
	if len(seatIDs) == 0 {
		return nil
	}

	moved, err := s.repo.TransitionSeats(ctx, &orderID, seatIDs, []string{SeatSold}, SeatAvailable)
	if err != nil {
		return err
	}
	s.logger.Info("sold seats released after refund", "order_id", orderID.String(), "count", moved)
	return nil
}

// HoldSeats places a short advisory hold on the seats for one browsing
// session. Holds don't guarantee the sale; they only reduce checkout
// collisions.
func (s *service) HoldSeats(ctx context.Context, req *SeatHoldRequest) (*SeatHoldResponse, error) {
	if s.holds == nil {
		return nil, apperr.Provider(nil, "seat holding is not available")
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, apperr.Validation("invalid event id")
	}

	seatIDs := make([]uuid.UUID, 0, len(req.SeatIDs))
	for _, raw := range req.SeatIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("invalid seat id: %s", raw)
		}
		seatIDs = append(seatIDs, id)
	}
	if hasDuplicates(seatIDs) {
		return nil, apperr.Validation("duplicate seat ids in request")
	}

	seats, err := s.repo.GetSeatsByIDs(ctx, seatIDs)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to load seats")
	}
	if len(seats) != len(seatIDs) {
		return nil, apperr.NotFound("one or more seats do not exist")
	}
	for _, seat := range seats {
		if seat.Zone != nil && seat.Zone.EventID != eventID {
			return nil, apperr.Validation("seat %s does not belong to event %s", seat.ID, eventID)
		}
		if !seat.IsAvailable() {
			return nil, apperr.Conflict("seat %s is not available", seat.Label(""))
		}
	}

	holdID := uuid.New().String()
	if err := s.holds.HoldSeats(ctx, seatIDs, req.SessionID, holdID, req.EventID, s.holdTTL); err != nil {
		return nil, apperr.Conflict("could not hold seats: %v", err)
	}

	return &SeatHoldResponse{
		HoldID:    holdID,
		EventID:   req.EventID,
		SeatIDs:   req.SeatIDs,
		ExpiresAt: time.Now().Add(s.holdTTL),
		TTL:       int(s.holdTTL.Seconds()),
	}, nil
}

func (s *service) ReleaseHold(ctx context.Context, holdID string) error {
	if s.holds == nil {
		return nil
	}
	released, err := s.holds.ReleaseHold(ctx, holdID)
	if err != nil {
		return apperr.NotFound("hold %s not found", holdID)
	}
	s.logger.Info("seat hold released", "hold_id", holdID, "seats", released)
	return nil
}

func hasDuplicates(ids []uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

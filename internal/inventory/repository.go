package inventory

import (
	"context"
	"time"

	"stagepass/internal/shared/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Seat lookups
	GetSeatByID(ctx context.Context, id uuid.UUID) (*Seat, error)
	GetSeatsByIDs(ctx context.Context, seatIDs []uuid.UUID) ([]Seat, error)
	GetZonesByEventID(ctx context.Context, eventID uuid.UUID) ([]Zone, error)

	// Guarded transitions. All of these run as a single conditional UPDATE
	// inside one transaction; a read-then-write in application code is
	// exactly the race this layer exists to prevent.
	ReserveSeats(ctx context.Context, orderID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error)
	ReserveZoneSeats(ctx context.Context, orderID, eventID, zoneID uuid.UUID, quantity int) (*Zone, []Seat, error)
	TransitionSeats(ctx context.Context, orderID *uuid.UUID, seatIDs []uuid.UUID, from []string, to string) (int64, error)

	// Current ownership, read off the seat rows
	SeatIDsReservedByOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
	SeatIDsHeldByOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetSeatByID(ctx context.Context, id uuid.UUID) (*Seat, error) {
	var seat Seat
	err := r.db.WithContext(ctx).Preload("Zone").First(&seat, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

func (r *repository) GetSeatsByIDs(ctx context.Context, seatIDs []uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Preload("Zone").
		Where("id IN ?", seatIDs).
		Find(&seats).Error
	return seats, err
}

func (r *repository) GetZonesByEventID(ctx context.Context, eventID uuid.UUID) ([]Zone, error) {
	var zones []Zone
	err := r.db.WithContext(ctx).
		Preload("Seats", func(db *gorm.DB) *gorm.DB {
			return db.Order("row ASC, number ASC")
		}).
		Where("event_id = ?", eventID).
		Order("name ASC").
		Find(&zones).Error
	return zones, err
}

// ReserveSeats atomically flips AVAILABLE -> RESERVED for the whole set.
// The conditional UPDATE plus the RowsAffected check is the compare-and-swap:
// when two callers race for an overlapping set, the database serializes the
// updates and exactly one caller sees a full row count. The loser's
// transaction rolls back, leaving no partial reservation behind.
func (r *repository) ReserveSeats(ctx context.Context, orderID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	var reserved []Seat

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seats []Seat
		if err := tx.Preload("Zone").Where("id IN ?", seatIDs).Find(&seats).Error; err != nil {
			return apperr.Persistence(err, "failed to load seats")
		}

		// A missing id aborts the whole reservation
		if len(seats) != len(seatIDs) {
			found := make(map[uuid.UUID]bool, len(seats))
			for _, s := range seats {
				found[s.ID] = true
			}
			for _, id := range seatIDs {
				if !found[id] {
					return apperr.NotFound("seat %s does not exist", id)
				}
			}
		}

		oid := orderID
		res := tx.Model(&Seat{}).
			Where("id IN ? AND status = ?", seatIDs, SeatAvailable).
			Updates(map[string]interface{}{"status": SeatReserved, "order_id": oid, "updated_at": time.Now()})
		if res.Error != nil {
			return apperr.Persistence(res.Error, "failed to reserve seats")
		}
		if res.RowsAffected != int64(len(seatIDs)) {
			for _, s := range seats {
				if s.Status != SeatAvailable {
					return apperr.Conflict("seat %s is no longer available", s.Label(""))
				}
			}
			return apperr.Conflict("one or more seats are no longer available")
		}

		logs := make([]SeatStatusLog, 0, len(seats))
		for i := range seats {
			logs = append(logs, SeatStatusLog{
				SeatID:     seats[i].ID,
				FromStatus: SeatAvailable,
				ToStatus:   SeatReserved,
				OrderID:    &oid,
			})
			seats[i].Status = SeatReserved
			seats[i].OrderID = &oid
		}
		if err := tx.Create(&logs).Error; err != nil {
			return apperr.Persistence(err, "failed to write seat audit log")
		}

		reserved = seats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// ReserveZoneSeats picks the requested number of open spots in a zone and
// reserves them for the order. Used for GENERAL and VIP quantity lines, where
// the buyer asks for capacity rather than specific seats. SKIP LOCKED keeps
// two concurrent buyers from picking the same rows.
func (r *repository) ReserveZoneSeats(ctx context.Context, orderID, eventID, zoneID uuid.UUID, quantity int) (*Zone, []Seat, error) {
	var zone Zone
	var picked []Seat

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&zone, "id = ?", zoneID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("zone %s does not exist", zoneID)
			}
			return apperr.Persistence(err, "failed to load zone")
		}
		if zone.EventID != eventID {
			return apperr.Validation("zone %s does not belong to this event", zoneID)
		}
		if zone.Category == "SEATED" {
			return apperr.Validation("zone %s is seated, pick seats instead", zone.Name)
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("zone_id = ? AND status = ?", zoneID, SeatAvailable).
			Order("row ASC, number ASC").
			Limit(quantity).
			Find(&picked).Error; err != nil {
			return apperr.Persistence(err, "failed to find open spots in zone")
		}
		if len(picked) < quantity {
			return apperr.Conflict("only %d spots left in %s", len(picked), zone.Name)
		}

		oid := orderID
		ids := make([]uuid.UUID, 0, len(picked))
		logs := make([]SeatStatusLog, 0, len(picked))
		for i := range picked {
			ids = append(ids, picked[i].ID)
			logs = append(logs, SeatStatusLog{
				SeatID:     picked[i].ID,
				FromStatus: SeatAvailable,
				ToStatus:   SeatReserved,
				OrderID:    &oid,
			})
			picked[i].Status = SeatReserved
			picked[i].OrderID = &oid
		}

		res := tx.Model(&Seat{}).
			Where("id IN ? AND status = ?", ids, SeatAvailable).
			Updates(map[string]interface{}{"status": SeatReserved, "order_id": oid, "updated_at": time.Now()})
		if res.Error != nil {
			return apperr.Persistence(res.Error, "failed to reserve zone spots")
		}
		if res.RowsAffected != int64(len(ids)) {
			return apperr.Conflict("spots in %s were taken mid-checkout", zone.Name)
		}

		if err := tx.Create(&logs).Error; err != nil {
			return apperr.Persistence(err, "failed to write seat audit log")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &zone, picked, nil
}

// TransitionSeats conditionally moves seats from any of the given statuses to
// the target status and records the audit rows for the seats that moved.
// Seats already in the target status are skipped, which makes the callers
// (confirm-sold, release) idempotent. When an order drives the transition,
// only seats that order owns can move; releasing back to AVAILABLE clears the
// owner so the seat re-enters the pool clean.
func (r *repository) TransitionSeats(ctx context.Context, orderID *uuid.UUID, seatIDs []uuid.UUID, from []string, to string) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}

	var moved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Select("id, status").Where("id IN ? AND status IN ?", seatIDs, from)
		if orderID != nil {
			query = query.Where("order_id = ?", *orderID)
		}
		var seats []Seat
		if err := query.Find(&seats).Error; err != nil {
			return apperr.Persistence(err, "failed to load seats for transition")
		}
		if len(seats) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(seats))
		logs := make([]SeatStatusLog, 0, len(seats))
		for _, s := range seats {
			ids = append(ids, s.ID)
			logs = append(logs, SeatStatusLog{
				SeatID:     s.ID,
				FromStatus: s.Status,
				ToStatus:   to,
				OrderID:    orderID,
			})
		}

		updates := map[string]interface{}{"status": to, "updated_at": time.Now()}
		if to == SeatAvailable {
			updates["order_id"] = nil
		}
		update := tx.Model(&Seat{}).Where("id IN ? AND status IN ?", ids, from)
		if orderID != nil {
			update = update.Where("order_id = ?", *orderID)
		}
		res := update.Updates(updates)
		if res.Error != nil {
			return apperr.Persistence(res.Error, "failed to transition seats")
		}
		moved = res.RowsAffected

		if err := tx.Create(&logs).Error; err != nil {
			return apperr.Persistence(err, "failed to write seat audit log")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// SeatIDsReservedByOrder returns the seats the order currently holds in
// RESERVED.
func (r *repository) SeatIDsReservedByOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	return r.seatIDsByOrderAndStatus(ctx, orderID, []string{SeatReserved})
}

// SeatIDsHeldByOrder returns the seats the order holds in RESERVED or SOLD.
func (r *repository) SeatIDsHeldByOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	return r.seatIDsByOrderAndStatus(ctx, orderID, []string{SeatReserved, SeatSold})
}

func (r *repository) seatIDsByOrderAndStatus(ctx context.Context, orderID uuid.UUID, statuses []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&Seat{}).
		Select("id").
		Where("order_id = ? AND status IN ?", orderID, statuses).
		Find(&ids).Error
	return ids, err
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/parakeetlabs/voice-bridge/internal/domain"
	"gorm.io/gorm"
)

// ErrSlotTaken is returned when an insert collides with an existing
// booking for the same time. It is a normal domain outcome, not a
// transport failure.
var ErrSlotTaken = errors.New("booking time slot already taken")

// BookingRepository defines the operations the booking tools need.
type BookingRepository interface {
	// Create inserts a booking, assigning its ID. Returns ErrSlotTaken
	// when the time slot is already booked.
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	ExistsByTime(ctx context.Context, bookingTime string) (bool, error)
	List(ctx context.Context) ([]*domain.Booking, error)
}

// GormBookingRepository implements BookingRepository using GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new booking repository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// Create inserts a new booking. The unique index on booking_time is
// the authoritative guard against double booking: even when two
// sessions pass the availability pre-check for the same slot, only
// one insert succeeds.
func (r *GormBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if booking.Status == "" {
		booking.Status = domain.BookingStatusConfirmed
	}
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID returns a booking by its identifier, or nil when absent.
func (r *GormBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var booking domain.Booking
	err := r.db.WithContext(ctx).First(&booking, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %d: %w", id, err)
	}
	return &booking, nil
}

// ExistsByTime reports whether a booking already occupies the slot.
func (r *GormBookingRepository) ExistsByTime(ctx context.Context, bookingTime string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("booking_time = ?", bookingTime).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check slot %s: %w", bookingTime, err)
	}
	return count > 0, nil
}

// List returns all bookings ordered by creation.
func (r *GormBookingRepository) List(ctx context.Context) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	if err := r.db.WithContext(ctx).Order("id").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

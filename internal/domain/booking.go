package domain

// BookingTimeLayout is the accepted wire format for booking times.
// Slots are keyed on the exact string, so normalization happens at
// validation time, before anything reaches the store.
const BookingTimeLayout = "2006-01-02 15:04"

// BookingStatusConfirmed is the status assigned to new bookings.
const BookingStatusConfirmed = "confirmed"

// Booking represents one appointment slot. BookingTime carries a
// unique index: the database constraint, not the advisory
// availability pre-check, is what guarantees a slot is booked at most
// once under concurrent requests.
type Booking struct {
	ID           int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CustomerName string `json:"customer_name" gorm:"column:customer_name;not null"`
	BookingTime  string `json:"booking_time" gorm:"column:booking_time;not null;uniqueIndex"`
	Status       string `json:"status" gorm:"column:status;default:confirmed"`
}

func (Booking) TableName() string {
	return "bookings"
}

package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parakeetlabs/voice-bridge/internal/domain"
	"github.com/parakeetlabs/voice-bridge/internal/repository"
)

const invalidTimeMessage = "Invalid time format. Please use YYYY-MM-DD HH:MM"

// bookingTimeSchema is shared by both booking tools.
var bookingTimeSchema = map[string]interface{}{
	"type":        "string",
	"description": "The slot to check or book, formatted as YYYY-MM-DD HH:MM, e.g. 2025-12-25 10:00",
}

// RegisterBookingTools registers check_availability and book_meeting
// against the given store.
func RegisterBookingTools(r *Registry, repo repository.BookingRepository) {
	r.Register(&ToolDefinition{
		Name:        "check_availability",
		Description: "Check whether an appointment slot is still available.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"time": bookingTimeSchema,
			},
			"required": []string{"time"},
		},
		Executor: checkAvailabilityExecutor(repo),
	})

	r.Register(&ToolDefinition{
		Name:        "book_meeting",
		Description: "Book an appointment slot for a customer. Fails if the slot is already taken.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"customer_name": map[string]interface{}{
					"type":        "string",
					"description": "Full name of the customer booking the slot",
				},
				"time": bookingTimeSchema,
			},
			"required": []string{"customer_name", "time"},
		},
		Executor: bookMeetingExecutor(repo),
	})
}

func checkAvailabilityExecutor(repo repository.BookingRepository) ExecutorFunc {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		bookingTime, ok := stringArg(args, "time")
		if !ok || !validBookingTime(bookingTime) {
			// Format errors short-circuit before any store access.
			return map[string]interface{}{"error": invalidTimeMessage}, nil
		}

		taken, err := repo.ExistsByTime(ctx, bookingTime)
		if err != nil {
			return nil, fmt.Errorf("availability check failed: %w", err)
		}

		if taken {
			return map[string]interface{}{
				"available": false,
				"message":   fmt.Sprintf("Slot %s is not available.", bookingTime),
			}, nil
		}
		return map[string]interface{}{
			"available": true,
			"message":   fmt.Sprintf("Slot %s is available.", bookingTime),
		}, nil
	}
}

func bookMeetingExecutor(repo repository.BookingRepository) ExecutorFunc {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		customerName, ok := stringArg(args, "customer_name")
		if !ok || customerName == "" {
			return map[string]interface{}{"error": "missing required argument: customer_name"}, nil
		}
		bookingTime, ok := stringArg(args, "time")
		if !ok || !validBookingTime(bookingTime) {
			return map[string]interface{}{"error": invalidTimeMessage}, nil
		}

		// Advisory fast path only; the unique constraint on
		// booking_time decides races at insert time.
		taken, err := repo.ExistsByTime(ctx, bookingTime)
		if err != nil {
			return nil, fmt.Errorf("availability check failed: %w", err)
		}
		if taken {
			return slotTakenResult(), nil
		}

		booking := &domain.Booking{
			CustomerName: customerName,
			BookingTime:  bookingTime,
		}
		if err := repo.Create(ctx, booking); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return slotTakenResult(), nil
			}
			return map[string]interface{}{
				"success": false,
				"message": err.Error(),
			}, nil
		}

		return map[string]interface{}{
			"success":    true,
			"booking_id": booking.ID,
			"message":    "Booking confirmed.",
		}, nil
	}
}

func slotTakenResult() map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"message": "Slot already booked.",
	}
}

func validBookingTime(value string) bool {
	_, err := time.Parse(domain.BookingTimeLayout, value)
	return err == nil
}

func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

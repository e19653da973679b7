package service

import (
	"fmt"
	"strings"

	"github.com/honeynil/RentalOrderService/internal/models"
)

const dateLayout = "2006-01-02"

func withReason(body, reason string) string {
	if strings.TrimSpace(reason) == "" {
		return body
	}
	return body + "\n\nReason: " + reason
}

func appointmentCancelledMessage(appt *models.SaleAppointment, actor models.Role, reason string) (string, string) {
	subject := fmt.Sprintf("Appointment #%d cancelled", appt.ID)
	body := fmt.Sprintf("The %s cancelled the viewing of vehicle #%d scheduled for %s %s at %s.",
		actor, appt.VehicleID, appt.Date.Format(dateLayout), appt.Time, appt.Location)
	return subject, withReason(body, reason)
}

func appointmentConfirmedMessage(appt *models.SaleAppointment, actor models.Role) (string, string) {
	subject := fmt.Sprintf("Appointment #%d confirmed", appt.ID)
	body := fmt.Sprintf("The %s confirmed the viewing of vehicle #%d on %s %s at %s.",
		actor, appt.VehicleID, appt.Date.Format(dateLayout), appt.Time, appt.Location)
	return subject, body
}

func rentalActivatedMessage(rental *models.Rental) (string, string) {
	subject := fmt.Sprintf("Rental #%d confirmed", rental.ID)
	body := fmt.Sprintf("We received your payment of %s. Pick up vehicle #%d at %s on %s.",
		rental.TotalAmount.StringFixed(2), rental.VehicleID, rental.PickupLocation, rental.PickupAt.Format("2006-01-02 15:04"))
	return subject, body
}

func rentalCancelledMessage(rental *models.Rental, reason string) (string, string) {
	subject := fmt.Sprintf("Rental #%d cancelled", rental.ID)
	body := fmt.Sprintf("Your rental of vehicle #%d from %s has been cancelled.",
		rental.VehicleID, rental.PickupAt.Format("2006-01-02 15:04"))
	return subject, withReason(body, reason)
}

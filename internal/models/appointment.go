package models

import "time"

type SaleAppointment struct {
	ID          int32             `json:"id"`
	BuyerID     int32             `json:"buyer_id"`
	SellerID    int32             `json:"seller_id"`
	VehicleID   int32             `json:"vehicle_id"`
	Date        time.Time         `json:"date"`
	Time        string            `json:"time"`
	Location    string            `json:"location"`
	Description string            `json:"description"`
	Status      AppointmentStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentCompleted || s == AppointmentCancelled
}

// CanTransitionTo encodes pending -> confirmed|cancelled and confirmed -> completed.
// A pending appointment cannot be completed without being confirmed first.
func (s AppointmentStatus) CanTransitionTo(target AppointmentStatus) bool {
	switch s {
	case AppointmentPending:
		return target == AppointmentConfirmed || target == AppointmentCancelled
	case AppointmentConfirmed:
		return target == AppointmentCompleted
	}
	return false
}

// Role identifies which party of an appointment performs an action.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// Counterparty returns the id of the party that did not act.
func (a *SaleAppointment) Counterparty(actor Role) int32 {
	if actor == RoleBuyer {
		return a.SellerID
	}
	return a.BuyerID
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Rental struct {
	ID              int32           `json:"id"`
	RenterID        int32           `json:"renter_id"`
	VehicleID       int32           `json:"vehicle_id"`
	PickupLocation  string          `json:"pickup_location"`
	ReturnLocation  string          `json:"return_location"`
	PickupAt        time.Time       `json:"pickup_at"`
	ReturnAt        time.Time       `json:"return_at"`
	RentalType      RentalType      `json:"rental_type"`
	DriveOption     DriveOption     `json:"drive_option"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	RentalDuration  int32           `json:"rental_duration"`
	LicenseImageRef string          `json:"license_image_ref,omitempty"`
	Status          RentalStatus    `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type RentalType string

const (
	RentalHourly  RentalType = "hour"
	RentalDaily   RentalType = "day"
	RentalWeekly  RentalType = "week"
	RentalMonthly RentalType = "month"
)

func (t RentalType) Valid() bool {
	switch t {
	case RentalHourly, RentalDaily, RentalWeekly, RentalMonthly:
		return true
	}
	return false
}

type DriveOption string

const (
	SelfDrive  DriveOption = "self-drive"
	HireDriver DriveOption = "hire-driver"
)

func (d DriveOption) Valid() bool {
	return d == SelfDrive || d == HireDriver
}

type PaymentMethod string

const (
	PayLater  PaymentMethod = "pay-later"
	PayOnline PaymentMethod = "online"
)

func (p PaymentMethod) Valid() bool {
	return p == PayLater || p == PayOnline
}

type RentalStatus string

const (
	RentalPending       RentalStatus = "pending"
	RentalActive        RentalStatus = "active"
	RentalCompleted     RentalStatus = "completed"
	RentalCompletedLate RentalStatus = "completed-late"
	RentalCancelled     RentalStatus = "cancelled"
)

var rentalTransitions = map[RentalStatus][]RentalStatus{
	RentalPending: {RentalActive, RentalCancelled},
	RentalActive:  {RentalCompleted, RentalCompletedLate, RentalCancelled},
}

func (s RentalStatus) Valid() bool {
	switch s {
	case RentalPending, RentalActive, RentalCompleted, RentalCompletedLate, RentalCancelled:
		return true
	}
	return false
}

func (s RentalStatus) IsTerminal() bool {
	return len(rentalTransitions[s]) == 0
}

func (s RentalStatus) CanTransitionTo(target RentalStatus) bool {
	for _, next := range rentalTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// RentalDetails is a rental together with its payment record, if any.
type RentalDetails struct {
	Rental      *Rental      `json:"rental"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

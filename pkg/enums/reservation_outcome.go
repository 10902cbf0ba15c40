package enums

import "fmt"

// ReservationOutcome records the terminal effect of an inventory reservation.
type ReservationOutcome string

const (
	ReservationOutcomeReserved  ReservationOutcome = "reserved"
	ReservationOutcomeConfirmed ReservationOutcome = "confirmed"
	ReservationOutcomeReleased  ReservationOutcome = "released"
)

var validReservationOutcomes = []ReservationOutcome{
	ReservationOutcomeReserved,
	ReservationOutcomeConfirmed,
	ReservationOutcomeReleased,
}

// String implements fmt.Stringer.
func (o ReservationOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known ReservationOutcome.
func (o ReservationOutcome) IsValid() bool {
	for _, candidate := range validReservationOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseReservationOutcome converts raw input into a ReservationOutcome.
func ParseReservationOutcome(value string) (ReservationOutcome, error) {
	for _, candidate := range validReservationOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation outcome %q", value)
}

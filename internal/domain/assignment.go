package domain

import (
	"fmt"
	"time"
)

// DateLayout is the day-granularity format used for assignment dates.
const DateLayout = "2006-01-02"

// Shift is one of the two daily delivery windows.
type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftEvening Shift = "evening"
)

// Shifts lists the shifts in delivery order.
var Shifts = []Shift{ShiftMorning, ShiftEvening}

// ParseShift validates a shift name.
func ParseShift(s string) (Shift, error) {
	switch Shift(s) {
	case ShiftMorning, ShiftEvening:
		return Shift(s), nil
	}
	return "", fmt.Errorf("%w: unknown shift %q", ErrValidation, s)
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return d, nil
}

// Assignment is a quantity of milk a delivery agent owes a customer in one shift.
type Assignment struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"ownerId"`
	CustomerID      string     `json:"customerId"`
	DeliveryAgentID string     `json:"deliveryAgentId"`
	Date            string     `json:"date"`
	Shift           Shift      `json:"shift"`
	Liters          float64    `json:"liters"`
	Delivered       bool       `json:"delivered"`
	AssignedAt      time.Time  `json:"assignedAt"`
	UnassignedAt    *time.Time `json:"unassignedAt,omitempty"`
}

// NewAssignment carries the fields a client supplies on insert.
type NewAssignment struct {
	OwnerID         string
	CustomerID      string
	DeliveryAgentID string
	Date            string
	Shift           Shift
	Liters          float64
	Delivered       bool
}

// AssignmentPatch updates liters and/or the delivered flag. Nil fields are left untouched.
type AssignmentPatch struct {
	Liters    *float64
	Delivered *bool
}

// AssignmentFilter narrows assignment reads.
type AssignmentFilter struct {
	OwnerID string
	From    string
	To      string
	AgentID string
}

package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregateReservation    OutboxAggregateType = "inventory_reservation"
	AggregateCollection     OutboxAggregateType = "collection"
	AggregateBlindBox       OutboxAggregateType = "blind_box"
	AggregateHeldCollection OutboxAggregateType = "held_collection"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateReservation,
	AggregateCollection,
	AggregateBlindBox,
	AggregateHeldCollection,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventChainOperationRequested     OutboxEventType = "chain_operation_requested"
	EventReservationReleaseRequested OutboxEventType = "reservation_release_requested"
	EventOrderPaid                   OutboxEventType = "order_paid"
	EventOrderCancelled              OutboxEventType = "order_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventChainOperationRequested,
	EventReservationReleaseRequested,
	EventOrderPaid,
	EventOrderCancelled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

package enums

import "fmt"

// HeldCollectionState tracks a buyer-held collectible across mint, transfer
// and destroy settlement. Activation only from init; destruction completes
// only from destroying.
type HeldCollectionState string

const (
	HeldCollectionStateInit       HeldCollectionState = "init"
	HeldCollectionStateActive     HeldCollectionState = "active"
	HeldCollectionStateDestroying HeldCollectionState = "destroying"
	HeldCollectionStateDestroyed  HeldCollectionState = "destroyed"
)

var validHeldCollectionStates = []HeldCollectionState{
	HeldCollectionStateInit,
	HeldCollectionStateActive,
	HeldCollectionStateDestroying,
	HeldCollectionStateDestroyed,
}

// String implements fmt.Stringer.
func (s HeldCollectionState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known HeldCollectionState.
func (s HeldCollectionState) IsValid() bool {
	for _, candidate := range validHeldCollectionStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseHeldCollectionState converts raw input into a HeldCollectionState.
func ParseHeldCollectionState(value string) (HeldCollectionState, error) {
	for _, candidate := range validHeldCollectionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid held collection state %q", value)
}

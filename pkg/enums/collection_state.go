package enums

import "fmt"

// CollectionState tracks issuance of a collection against the chain.
// pending→succeed only; succeed is terminal.
type CollectionState string

const (
	CollectionStatePending CollectionState = "pending"
	CollectionStateSucceed CollectionState = "succeed"
)

var validCollectionStates = []CollectionState{
	CollectionStatePending,
	CollectionStateSucceed,
}

// String implements fmt.Stringer.
func (s CollectionState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CollectionState.
func (s CollectionState) IsValid() bool {
	for _, candidate := range validCollectionStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCollectionState converts raw input into a CollectionState.
func ParseCollectionState(value string) (CollectionState, error) {
	for _, candidate := range validCollectionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collection state %q", value)
}

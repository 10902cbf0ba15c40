package enums

import "fmt"

// BlindBoxState mirrors CollectionState for blind-box issuance.
type BlindBoxState string

const (
	BlindBoxStatePending BlindBoxState = "pending"
	BlindBoxStateSucceed BlindBoxState = "succeed"
)

var validBlindBoxStates = []BlindBoxState{
	BlindBoxStatePending,
	BlindBoxStateSucceed,
}

// String implements fmt.Stringer.
func (s BlindBoxState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BlindBoxState.
func (s BlindBoxState) IsValid() bool {
	for _, candidate := range validBlindBoxStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBlindBoxState converts raw input into a BlindBoxState.
func ParseBlindBoxState(value string) (BlindBoxState, error) {
	for _, candidate := range validBlindBoxStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid blind box state %q", value)
}

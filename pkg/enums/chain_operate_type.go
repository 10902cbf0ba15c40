package enums

import "fmt"

// ChainOperateType identifies an asynchronous ledger operation.
type ChainOperateType string

const (
	ChainOperateCollectionChain    ChainOperateType = "collection_chain"
	ChainOperateBlindBoxChain      ChainOperateType = "blind_box_chain"
	ChainOperateCollectionMint     ChainOperateType = "collection_mint"
	ChainOperateCollectionTransfer ChainOperateType = "collection_transfer"
	ChainOperateCollectionDestroy  ChainOperateType = "collection_destroy"
)

var validChainOperateTypes = []ChainOperateType{
	ChainOperateCollectionChain,
	ChainOperateBlindBoxChain,
	ChainOperateCollectionMint,
	ChainOperateCollectionTransfer,
	ChainOperateCollectionDestroy,
}

// String implements fmt.Stringer.
func (t ChainOperateType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known ChainOperateType.
func (t ChainOperateType) IsValid() bool {
	for _, candidate := range validChainOperateTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseChainOperateType converts raw input into a ChainOperateType.
func ParseChainOperateType(value string) (ChainOperateType, error) {
	for _, candidate := range validChainOperateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid chain operate type %q", value)
}

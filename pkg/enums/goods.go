package enums

import "fmt"

// GoodsType distinguishes ordinary goods from digital-collectible goods.
type GoodsType string

const (
	GoodsTypeOrdinary   GoodsType = "ordinary"
	GoodsTypeCollection GoodsType = "collection"
	GoodsTypeBlindBox   GoodsType = "blind_box"
)

var validGoodsTypes = []GoodsType{
	GoodsTypeOrdinary,
	GoodsTypeCollection,
	GoodsTypeBlindBox,
}

// String implements fmt.Stringer.
func (g GoodsType) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GoodsType.
func (g GoodsType) IsValid() bool {
	for _, candidate := range validGoodsTypes {
		if candidate == g {
			return true
		}
	}
	return false
}

// IsCollectible reports whether order confirmation must settle on the chain.
func (g GoodsType) IsCollectible() bool {
	return g == GoodsTypeCollection || g == GoodsTypeBlindBox
}

// ParseGoodsType converts raw input into a GoodsType.
func ParseGoodsType(value string) (GoodsType, error) {
	for _, candidate := range validGoodsTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid goods type %q", value)
}

// GoodsStatus tracks whether goods may be sold.
type GoodsStatus string

const (
	GoodsStatusDraft   GoodsStatus = "draft"
	GoodsStatusOnSale  GoodsStatus = "on_sale"
	GoodsStatusOffSale GoodsStatus = "off_sale"
	GoodsStatusSoldOut GoodsStatus = "sold_out"
)

var validGoodsStatuses = []GoodsStatus{
	GoodsStatusDraft,
	GoodsStatusOnSale,
	GoodsStatusOffSale,
	GoodsStatusSoldOut,
}

// String implements fmt.Stringer.
func (g GoodsStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GoodsStatus.
func (g GoodsStatus) IsValid() bool {
	for _, candidate := range validGoodsStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGoodsStatus converts raw input into a GoodsStatus.
func ParseGoodsStatus(value string) (GoodsStatus, error) {
	for _, candidate := range validGoodsStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid goods status %q", value)
}

package game

import (
	"fmt"
	"strings"
	"time"
)

// BusinessKind is the catalog index of a business. The index is persisted.
type BusinessKind uint8

const (
	KindKiosk BusinessKind = iota
	KindParlor
	KindGarage
	KindBistro
	KindLounge
	KindFoundation

	kindCount
)

type kindSpec struct {
	Name        string
	DisplayName string
	BaseCost    uint64
	BaseRateBps uint16
}

var kindCatalog = [kindCount]kindSpec{
	KindKiosk:      {Name: "kiosk", DisplayName: "Street Kiosk", BaseCost: UnitsPerCoin / 10, BaseRateBps: 200},
	KindParlor:     {Name: "parlor", DisplayName: "Card Parlor", BaseCost: UnitsPerCoin / 2, BaseRateBps: 180},
	KindGarage:     {Name: "garage", DisplayName: "Chop Garage", BaseCost: 2 * UnitsPerCoin, BaseRateBps: 160},
	KindBistro:     {Name: "bistro", DisplayName: "Corner Bistro", BaseCost: UnitsPerCoin / 10, BaseRateBps: 220},
	KindLounge:     {Name: "lounge", DisplayName: "Velvet Lounge", BaseCost: UnitsPerCoin / 2, BaseRateBps: 190},
	KindFoundation: {Name: "foundation", DisplayName: "Charity Foundation", BaseCost: 2 * UnitsPerCoin, BaseRateBps: 170},
}

// upgradeCostPercent is the cost of reaching level i+1, as a percent of base invested.
var upgradeCostPercent = [MaxUpgradeLevel]uint64{50, 100, 200}

func (k BusinessKind) Valid() bool {
	return k < kindCount
}

func (k BusinessKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindCatalog[k].Name
}

func (k BusinessKind) DisplayName() string {
	if !k.Valid() {
		return k.String()
	}
	return kindCatalog[k].DisplayName
}

// BaseCost is the purchase price in base units. Zero for unknown kinds.
func (k BusinessKind) BaseCost() uint64 {
	if !k.Valid() {
		return 0
	}
	return kindCatalog[k].BaseCost
}

func (k BusinessKind) BaseRateBps() uint16 {
	if !k.Valid() {
		return 0
	}
	return kindCatalog[k].BaseRateBps
}

func Kinds() []BusinessKind {
	out := make([]BusinessKind, 0, kindCount)
	for k := BusinessKind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

func KindByName(name string) (BusinessKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k := BusinessKind(0); k < kindCount; k++ {
		if kindCatalog[k].Name == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// UpgradeSchedule returns the cost of each upgrade level for a business bought at base.
func UpgradeSchedule(base uint64) ([MaxUpgradeLevel]uint64, error) {
	var out [MaxUpgradeLevel]uint64
	for i, pct := range upgradeCostPercent {
		v, ok := mulDiv(base, pct, 100)
		if !ok {
			return out, ErrOverflow
		}
		out[i] = v
	}
	return out, nil
}

// CompactTime is a unix timestamp narrowed to 32 bits. Zero means unset.
type CompactTime uint32

func CompactFromUnix(unix int64) CompactTime {
	if unix <= 0 {
		return 1
	}
	if unix > int64(^uint32(0)) {
		return CompactTime(^uint32(0))
	}
	return CompactTime(unix)
}

func (c CompactTime) IsSet() bool {
	return c != 0
}

func (c CompactTime) Unix() int64 {
	return int64(c)
}

func (c CompactTime) Time() time.Time {
	if !c.IsSet() {
		return time.Time{}
	}
	return time.Unix(int64(c), 0).UTC()
}

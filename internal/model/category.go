package model

import (
	"fmt"
	"strings"
)

// Category is the functional area an event belongs to.
type Category string

const (
	CategoryConnectivity  Category = "connectivity"
	CategoryPower         Category = "power"
	CategoryAudio         Category = "audio"
	CategoryVideo         Category = "video"
	CategoryControl       Category = "control"
	CategoryAuth          Category = "auth"
	CategoryPerformance   Category = "performance"
	CategoryConfig        Category = "config"
	CategoryHardware      Category = "hardware"
	CategoryUserAction    Category = "user_action"
	CategoryVendorService Category = "vendor_service"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryConnectivity, CategoryPower, CategoryAudio, CategoryVideo,
	CategoryControl, CategoryAuth, CategoryPerformance, CategoryConfig,
	CategoryHardware, CategoryUserAction, CategoryVendorService,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ParseCategory converts a case-insensitive name to a Category.
func ParseCategory(s string) (Category, error) {
	v := Category(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return v, nil
}

// UnmarshalText rejects values outside the enumeration.
func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// CauseCategory is the coarse area a root cause is attributed to.
type CauseCategory string

const (
	CauseNone          CauseCategory = ""
	CauseNetwork       CauseCategory = "network"
	CauseHardware      CauseCategory = "hardware"
	CauseSoftware      CauseCategory = "software"
	CauseConfiguration CauseCategory = "configuration"
	CausePower         CauseCategory = "power"
)

// CauseCategory maps an event category onto the cause category used by the
// rule blocks and recommendation tables.
func (c Category) CauseCategory() CauseCategory {
	switch c {
	case CategoryConnectivity:
		return CauseNetwork
	case CategoryAudio, CategoryVideo, CategoryControl, CategoryHardware:
		return CauseHardware
	case CategoryAuth, CategoryVendorService, CategoryPerformance:
		return CauseSoftware
	case CategoryConfig:
		return CauseConfiguration
	case CategoryPower:
		return CausePower
	default:
		return CauseNone
	}
}

package v1

import (
	"fmt"
	"strings"
)

// LocalizedText maps a language code ("en", "ru", ...) to a display string.
type LocalizedText map[string]string

// Airport is a reference entity. It is created in bulk and never updated.
type Airport struct {
	// Code is the short unique airport identifier (e.g. "SVO").
	Code string `json:"airport_code"`

	Name LocalizedText `json:"airport_name"`
	City LocalizedText `json:"city"`

	// Latitude and Longitude are nil when the source data has no coordinates.
	// Both are set or both are nil.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Timezone string `json:"timezone"`
}

// HasCoordinates reports whether both coordinates are present.
func (a *Airport) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// Validate checks the airport's required fields and coordinate ranges.
func (a *Airport) Validate() error {
	if strings.TrimSpace(a.Code) == "" {
		return fmt.Errorf("airport_code is required")
	}
	if (a.Latitude == nil) != (a.Longitude == nil) {
		return fmt.Errorf("airport %s: latitude and longitude must be set together", a.Code)
	}
	if a.Latitude != nil && (*a.Latitude < -90 || *a.Latitude > 90) {
		return fmt.Errorf("airport %s: latitude %v out of range [-90, 90]", a.Code, *a.Latitude)
	}
	if a.Longitude != nil && (*a.Longitude < -180 || *a.Longitude > 180) {
		return fmt.Errorf("airport %s: longitude %v out of range [-180, 180]", a.Code, *a.Longitude)
	}
	return nil
}

// DisplayName returns the name in the given language, falling back to
// English and then to the airport code.
func (a *Airport) DisplayName(lang string) string {
	if name, ok := a.Name[lang]; ok && name != "" {
		return name
	}
	if name, ok := a.Name["en"]; ok && name != "" {
		return name
	}
	return a.Code
}

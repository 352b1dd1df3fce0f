package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Year bounds accepted for a search.
const (
	MinYear = 1920
	MaxYear = 2025
)

// Fuel is the car.info fuel filter code.
type Fuel string

const (
	FuelPetrol   Fuel = "1"
	FuelDiesel   Fuel = "2"
	FuelElectric Fuel = "3"
	FuelHybrid   Fuel = "9999"
)

// Gearbox is the car.info transmission filter code.
type Gearbox string

const (
	GearboxAutomatic Gearbox = "1000"
	GearboxManual    Gearbox = "5"
)

var (
	ErrUnknownFuel    = errors.New("unknown fuel")
	ErrUnknownGearbox = errors.New("unknown gearbox")
)

// ParseFuel accepts the menu choice (1-4), an English or Swedish name, or
// a raw site code.
func ParseFuel(s string) (Fuel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "petrol", "bensin":
		return FuelPetrol, nil
	case "2", "diesel":
		return FuelDiesel, nil
	case "3", "electric", "el":
		return FuelElectric, nil
	case "4", "9999", "hybrid":
		return FuelHybrid, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFuel, s)
}

// ParseGearbox accepts the menu choice (1-2), a name, or a raw site code.
func ParseGearbox(s string) (Gearbox, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1000", "automatic", "automat":
		return GearboxAutomatic, nil
	case "2", "5", "manual", "manuell":
		return GearboxManual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGearbox, s)
}

// Query selects one classifieds listing page: private sellers only.
type Query struct {
	Make      string  `json:"make"`
	Model     string  `json:"model"`
	StartYear int     `json:"start_year"`
	EndYear   int     `json:"end_year"`
	Fuel      Fuel    `json:"fuel"`
	Gearbox   Gearbox `json:"gearbox"`
}

// Validate checks the query the same way the interactive prompts do.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Make) == "" {
		return errors.New("query: make is required")
	}
	if strings.TrimSpace(q.Model) == "" {
		return errors.New("query: model is required")
	}
	if err := checkYear(q.StartYear, MinYear); err != nil {
		return fmt.Errorf("query: start year: %w", err)
	}
	if err := checkYear(q.EndYear, q.StartYear); err != nil {
		return fmt.Errorf("query: end year: %w", err)
	}
	if f, err := ParseFuel(string(q.Fuel)); err != nil || f != q.Fuel {
		return fmt.Errorf("query: %w: %q is not a site code", ErrUnknownFuel, q.Fuel)
	}
	if g, err := ParseGearbox(string(q.Gearbox)); err != nil || g != q.Gearbox {
		return fmt.Errorf("query: %w: %q is not a site code", ErrUnknownGearbox, q.Gearbox)
	}
	return nil
}

func checkYear(y, lo int) error {
	if y < lo || y > MaxYear {
		return fmt.Errorf("%d is outside %d..%d", y, lo, MaxYear)
	}
	return nil
}

// URL renders the classifieds page address under base, e.g.
// https://www.car.info/sv-se/volvo/v70/classifieds?fuel=2&seller=st_private&trans=5&year_max=2010&year_min=2005
func (q Query) URL(base string) string {
	v := url.Values{}
	v.Set("fuel", string(q.Fuel))
	v.Set("trans", string(q.Gearbox))
	v.Set("year_min", strconv.Itoa(q.StartYear))
	v.Set("year_max", strconv.Itoa(q.EndYear))
	v.Set("seller", "st_private")

	return fmt.Sprintf("%s/sv-se/%s/%s/classifieds?%s",
		strings.TrimRight(base, "/"),
		url.PathEscape(strings.TrimSpace(q.Make)),
		url.PathEscape(strings.TrimSpace(q.Model)),
		v.Encode())
}

func (q Query) String() string {
	return fmt.Sprintf("%s %s %d-%d", q.Make, q.Model, q.StartYear, q.EndYear)
}

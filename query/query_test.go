package query

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"testing"
)

func validQuery() Query {
	return Query{Make: "volvo", Model: "v70", StartYear: 2005, EndYear: 2010, Fuel: FuelDiesel, Gearbox: GearboxManual}
}

func TestQueryURL(t *testing.T) {
	got := validQuery().URL("https://www.car.info/")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse %q: %v", got, err)
	}
	if u.Host != "www.car.info" || u.Path != "/sv-se/volvo/v70/classifieds" {
		t.Errorf("url: got %s", got)
	}
	want := map[string]string{
		"fuel": "2", "trans": "5", "year_min": "2005", "year_max": "2010", "seller": "st_private",
	}
	for k, v := range want {
		if u.Query().Get(k) != v {
			t.Errorf("param %s: got %q, want %q", k, u.Query().Get(k), v)
		}
	}
}

func TestQueryURLEscapesPath(t *testing.T) {
	q := validQuery()
	q.Make, q.Model = "alfa romeo", "159/sw"
	got := q.URL("https://www.car.info")
	if !strings.Contains(got, "/sv-se/alfa%20romeo/159%2Fsw/classifieds?") {
		t.Errorf("url not escaped: %s", got)
	}
}

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Query)
		ok     bool
	}{
		{"valid", func(*Query) {}, true},
		{"missing make", func(q *Query) { q.Make = " " }, false},
		{"missing model", func(q *Query) { q.Model = "" }, false},
		{"start before 1920", func(q *Query) { q.StartYear = 1919 }, false},
		{"end after max", func(q *Query) { q.EndYear = MaxYear + 1 }, false},
		{"end before start", func(q *Query) { q.EndYear = 2004 }, false},
		{"same year", func(q *Query) { q.EndYear = q.StartYear }, true},
		{"menu digit fuel", func(q *Query) { q.Fuel = "4" }, false},
		{"hybrid", func(q *Query) { q.Fuel = FuelHybrid }, true},
		{"bad gearbox", func(q *Query) { q.Gearbox = "cvt" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuery()
			tt.mutate(&q)
			err := q.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v; want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestParseFuelAndGearbox(t *testing.T) {
	fuels := map[string]Fuel{"1": FuelPetrol, "2": FuelDiesel, "3": FuelElectric, "4": FuelHybrid, "Bensin": FuelPetrol, "hybrid": FuelHybrid}
	for in, want := range fuels {
		if got, err := ParseFuel(in); err != nil || got != want {
			t.Errorf("ParseFuel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFuel("5"); !errors.Is(err, ErrUnknownFuel) {
		t.Errorf("ParseFuel(5): expected ErrUnknownFuel, got %v", err)
	}

	gears := map[string]Gearbox{"1": GearboxAutomatic, "2": GearboxManual, "manuell": GearboxManual}
	for in, want := range gears {
		if got, err := ParseGearbox(in); err != nil || got != want {
			t.Errorf("ParseGearbox(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseGearbox("3"); !errors.Is(err, ErrUnknownGearbox) {
		t.Errorf("ParseGearbox(3): expected ErrUnknownGearbox, got %v", err)
	}
}

func TestPrompterCollectRetriesInvalidInput(t *testing.T) {
	input := strings.Join([]string{
		"", "Volvo",
		"V70",
		"nittonhundra", "1900", "2005",
		"2001", "2010",
		"7", "diesel", "2",
		"9", "5", "1000", "2",
	}, "\n") + "\n"
	var out bytes.Buffer

	q, err := NewPrompter(strings.NewReader(input), &out).Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := Query{Make: "Volvo", Model: "V70", StartYear: 2005, EndYear: 2010, Fuel: FuelDiesel, Gearbox: GearboxManual}
	if q != want {
		t.Errorf("query: got %+v, want %+v", q, want)
	}

	transcript := out.String()
	for _, msg := range []string{
		"Vänligen ange ett giltigt bilmärke.",
		"Vänligen ange ett giltigt årtal.",
		"Ange ett år mellan 1920 och 2025.",
		"Ange ett år mellan 2005 och 2025.",
		"Vänligen ange ett giltigt drivmedel.",
		"Vänligen ange en giltig växellåda.",
	} {
		if !strings.Contains(transcript, msg) {
			t.Errorf("transcript missing %q", msg)
		}
	}
	if err := q.Validate(); err != nil {
		t.Errorf("collected query invalid: %v", err)
	}
}

func TestPrompterRejectsSiteCodes(t *testing.T) {
	input := "Saab\n9-5\n2000\n2009\n9999\n4\n5\n1\n"
	var out bytes.Buffer

	q, err := NewPrompter(strings.NewReader(input), &out).Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if q.Fuel != FuelHybrid || q.Gearbox != GearboxAutomatic {
		t.Errorf("codes: got %q/%q, want %q/%q", q.Fuel, q.Gearbox, FuelHybrid, GearboxAutomatic)
	}
	if n := strings.Count(out.String(), "Vänligen ange ett giltigt drivmedel."); n != 1 {
		t.Errorf("fuel retries: got %d, want 1", n)
	}
	if n := strings.Count(out.String(), "Vänligen ange en giltig växellåda."); n != 1 {
		t.Errorf("gearbox retries: got %d, want 1", n)
	}
}

func TestPrompterInputClosed(t *testing.T) {
	_, err := NewPrompter(strings.NewReader("Volvo\n"), &bytes.Buffer{}).Collect()
	if !errors.Is(err, ErrInputClosed) {
		t.Errorf("expected ErrInputClosed, got %v", err)
	}
}

package query

import (
	"errors"
	"strings"
	"testing"
)

func TestReadBatch(t *testing.T) {
	in := `make,model,start_year,end_year,fuel,gearbox
# weekend hunt
volvo,v70,2005,2010,diesel,manual
saab, 9-5, 2000, 2009, 1, automat
`
	queries, err := ReadBatch(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("queries: got %d, want 2", len(queries))
	}
	want := Query{Make: "saab", Model: "9-5", StartYear: 2000, EndYear: 2009, Fuel: FuelPetrol, Gearbox: GearboxAutomatic}
	if queries[1] != want {
		t.Errorf("second query: got %+v, want %+v", queries[1], want)
	}
	if queries[0].Fuel != FuelDiesel || queries[0].Gearbox != GearboxManual {
		t.Errorf("first query codes: got %q/%q", queries[0].Fuel, queries[0].Gearbox)
	}
}

func TestReadBatchRejectsBadLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"wrong field count", "volvo,v70,2005\n"},
		{"bad year", "volvo,v70,abc,2010,1,1\n"},
		{"end before start", "volvo,v70,2010,2005,1,1\n"},
		{"unknown fuel", "volvo,v70,2005,2010,coal,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadBatch(strings.NewReader(tt.in)); err == nil {
				t.Error("expected an error")
			}
		})
	}

	_, err := ReadBatch(strings.NewReader("volvo,v70,2005,2010,coal,1\n"))
	if !errors.Is(err, ErrUnknownFuel) {
		t.Errorf("expected ErrUnknownFuel in chain, got %v", err)
	}
}

package query

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadBatch parses queries from CSV lines of the form
//
//	make,model,start_year,end_year,fuel,gearbox
//
// Fuel and gearbox accept anything ParseFuel and ParseGearbox accept. A
// leading header row and lines starting with '#' are ignored. Every query
// is validated; the first bad line fails the whole batch.
func ReadBatch(r io.Reader) ([]Query, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 6
	cr.TrimLeadingSpace = true

	var queries []Query
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query: batch: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(queries) == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "make") {
			continue
		}

		q, err := parseRecord(rec)
		if err == nil {
			err = q.Validate()
		}
		if err != nil {
			return nil, fmt.Errorf("query: batch line %d: %w", line, err)
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func parseRecord(rec []string) (Query, error) {
	q := Query{Make: strings.TrimSpace(rec[0]), Model: strings.TrimSpace(rec[1])}

	var err error
	if q.StartYear, err = strconv.Atoi(strings.TrimSpace(rec[2])); err != nil {
		return q, fmt.Errorf("start year %q is not a number", rec[2])
	}
	if q.EndYear, err = strconv.Atoi(strings.TrimSpace(rec[3])); err != nil {
		return q, fmt.Errorf("end year %q is not a number", rec[3])
	}
	if q.Fuel, err = ParseFuel(rec[4]); err != nil {
		return q, err
	}
	if q.Gearbox, err = ParseGearbox(rec[5]); err != nil {
		return q, err
	}
	return q, nil
}

package query

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrInputClosed is returned when the input ends before a query is complete.
var ErrInputClosed = errors.New("query: input closed")

// Prompter collects a Query interactively, asking again after every invalid
// answer. Prompts are in Swedish to match the site.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter reads answers from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Collect asks for make, model, year range, fuel and gearbox in that order.
func (p *Prompter) Collect() (Query, error) {
	var q Query
	var err error

	if q.Make, err = p.askText("Ange bilmärke: ", "Vänligen ange ett giltigt bilmärke."); err != nil {
		return q, err
	}
	if q.Model, err = p.askText("Ange modell: ", "Vänligen ange en giltig modell"); err != nil {
		return q, err
	}
	if q.StartYear, err = p.askYear("Ange startår: ", MinYear); err != nil {
		return q, err
	}
	if q.EndYear, err = p.askYear(fmt.Sprintf("Ange slutår (minst %d): ", q.StartYear), q.StartYear); err != nil {
		return q, err
	}

	fuel, err := p.askChoice("Drivmedel (1: Bensin, 2: Diesel, 3: El, 4: Hybrid): ",
		"Vänligen ange ett giltigt drivmedel.", fuelMenu)
	if err != nil {
		return q, err
	}
	q.Fuel = Fuel(fuel)

	gearbox, err := p.askChoice("Växellåda (1: Automat, 2: Manuell): ",
		"Vänligen ange en giltig växellåda.", gearboxMenu)
	if err != nil {
		return q, err
	}
	q.Gearbox = Gearbox(gearbox)

	return q, nil
}

func (p *Prompter) readLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("query: read input: %w", err)
		}
		return "", ErrInputClosed
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *Prompter) askText(prompt, retry string) (string, error) {
	for {
		s, err := p.readLine(prompt)
		if err != nil {
			return "", err
		}
		if s != "" {
			return s, nil
		}
		fmt.Fprintln(p.out, retry)
	}
}

func (p *Prompter) askYear(prompt string, lo int) (int, error) {
	for {
		s, err := p.readLine(prompt)
		if err != nil {
			return 0, err
		}
		y, convErr := strconv.Atoi(s)
		if convErr != nil {
			fmt.Fprintln(p.out, "Vänligen ange ett giltigt årtal.")
			continue
		}
		if checkYear(y, lo) == nil {
			return y, nil
		}
		fmt.Fprintf(p.out, "Ange ett år mellan %d och %d.\n", lo, MaxYear)
	}
}

// Menu digits as offered by the prompts. Site codes are not accepted here.
var (
	fuelMenu = map[string]string{
		"1": string(FuelPetrol),
		"2": string(FuelDiesel),
		"3": string(FuelElectric),
		"4": string(FuelHybrid),
	}
	gearboxMenu = map[string]string{
		"1": string(GearboxAutomatic),
		"2": string(GearboxManual),
	}
)

func (p *Prompter) askChoice(prompt, retry string, menu map[string]string) (string, error) {
	for {
		s, err := p.readLine(prompt)
		if err != nil {
			return "", err
		}
		if v, ok := menu[s]; ok {
			return v, nil
		}
		fmt.Fprintln(p.out, retry)
	}
}

// Package gates holds the static gate catalog and the admit policy over it.
// The catalog is built once at startup and injected; nothing mutates it at
// runtime.
package gates

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/openfield/gatepass/internal/domain"
)

type Catalog struct {
	gates map[string]domain.Gate
	loc   *time.Location
}

// New validates the gate set and freezes it. A gate must either list the
// passes it accepts or carry the explicit AcceptAll flag; an empty allowed
// set without the flag is ambiguous and refused.
func New(gateList []domain.Gate, loc *time.Location) (*Catalog, error) {
	if loc == nil {
		loc = time.UTC
	}
	byNumber := make(map[string]domain.Gate, len(gateList))
	for _, g := range gateList {
		if g.Number == "" {
			return nil, fmt.Errorf("gate with empty number")
		}
		if !g.AcceptAll && len(g.AllowedPasses) == 0 {
			return nil, fmt.Errorf("gate %q: empty allowed-pass set without accept_all flag", g.Number)
		}
		if _, dup := byNumber[g.Number]; dup {
			return nil, fmt.Errorf("duplicate gate %q", g.Number)
		}
		byNumber[g.Number] = g
	}
	return &Catalog{gates: byNumber, loc: loc}, nil
}

// Load reads a gate list from a JSON file, for overriding the built-in set.
func Load(path string, loc *time.Location) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gates file: %w", err)
	}
	var gateList []domain.Gate
	if err := json.Unmarshal(data, &gateList); err != nil {
		return nil, fmt.Errorf("parse gates file: %w", err)
	}
	return New(gateList, loc)
}

// Default is the event's configured gate set.
func Default(loc *time.Location) *Catalog {
	c, err := New([]domain.Gate{
		{
			Number:        "Gate 1",
			Name:          "Gate 1 - Exhibition Day 1",
			Location:      "Exhibition Hall",
			Date:          "2025-11-25",
			TimeStart:     "1100",
			TimeEnd:       "1730",
			AllowedPasses: []domain.PassType{domain.PassExhibitionDay1, domain.PassExhibitor},
			SessionType:   domain.PassExhibitionDay1,
		},
		{
			Number:        "Gate 2",
			Name:          "Gate 2 - Exhibition Day 2",
			Location:      "Exhibition Hall",
			Date:          "2025-11-26",
			TimeStart:     "1000",
			TimeEnd:       "1730",
			AllowedPasses: []domain.PassType{domain.PassExhibitionDay2, domain.PassExhibitor},
			SessionType:   domain.PassExhibitionDay2,
		},
		{
			Number:        "Gate 3",
			Name:          "Gate 3 - Interactive Sessions",
			Location:      "Zorawar Hall",
			Date:          "2025-11-26",
			TimeStart:     "1030",
			TimeEnd:       "1330",
			AllowedPasses: []domain.PassType{domain.PassInteractiveSessions},
			SessionType:   domain.PassInteractiveSessions,
		},
		{
			Number:        "Gate 4",
			Name:          "Gate 4 - Plenary Session",
			Location:      "Zorawar Hall",
			Date:          "2025-11-26",
			TimeStart:     "1625",
			TimeEnd:       "1755",
			AllowedPasses: []domain.PassType{domain.PassPlenary},
			SessionType:   domain.PassPlenary,
		},
		{
			Number:    "Main Entrance",
			Name:      "Main Entrance",
			Location:  "Manekshaw Centre",
			AcceptAll: true,
		},
	}, loc)
	if err != nil {
		// The built-in set is validated by tests; this is unreachable.
		panic(err)
	}
	return c
}

// Gate looks up a gate definition by number.
func (c *Catalog) Gate(number string) (domain.Gate, bool) {
	g, ok := c.gates[number]
	return g, ok
}

// Numbers returns the configured gate identifiers.
func (c *Catalog) Numbers() []string {
	nums := make([]string, 0, len(c.gates))
	for n := range c.gates {
		nums = append(nums, n)
	}
	return nums
}

// IsAcceptedAt decides whether a pass type is admitted at a gate right now.
// Returns the empty reason on admit.
func (c *Catalog) IsAcceptedAt(gateNumber string, pt domain.PassType, now time.Time) (bool, domain.DenyReason) {
	g, ok := c.gates[gateNumber]
	if !ok {
		return false, domain.DenyUnknownGate
	}

	if !g.Accepts(pt) {
		return false, domain.DenyWrongGate
	}

	local := now.In(c.loc)
	if g.Date != "" && local.Format("2006-01-02") != g.Date {
		return false, domain.DenyOutsideWindow
	}
	if g.TimeStart != "" && g.TimeEnd != "" {
		hhmm := local.Format("1504")
		if hhmm < g.TimeStart || hhmm > g.TimeEnd {
			return false, domain.DenyOutsideWindow
		}
	}

	return true, ""
}

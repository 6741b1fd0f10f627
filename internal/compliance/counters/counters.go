// Package counters tracks how many distinct investors hold a positive balance
// in each regulatory category.
//
// An investor is counted under the classification recorded when their aggregate
// balance became positive. Leaving uses that stored classification, so a
// registry change between join and leave can never make a counter drift.
package counters

import (
	"fmt"
	"sort"
	"strings"

	"secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

// Category names a counted population.
type Category string

const (
	Total         Category = "total"
	US            Category = "us"
	USAccredited  Category = "us_accredited"
	JP            Category = "jp"
	Accredited    Category = "accredited"
	NonAccredited Category = "non_accredited"

	euRetailPrefix = "eu_retail:"
)

// EURetail is the per-country EU retail category.
func EURetail(country string) Category {
	return Category(euRetailPrefix + models.NormalizeCountry(country))
}

// ParseCategory validates a category name from external input.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	switch c {
	case Total, US, USAccredited, JP, Accredited, NonAccredited:
		return c, nil
	}
	if country, ok := strings.CutPrefix(string(c), euRetailPrefix); ok && len(country) == 2 {
		return EURetail(country), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown investor category %q", s))
}

// Of lists every category an investor with the classification belongs to.
func Of(c models.Classification) []Category {
	cats := []Category{Total}
	if c.Accredited {
		cats = append(cats, Accredited)
	} else {
		cats = append(cats, NonAccredited)
	}
	switch c.Region {
	case models.RegionUS:
		cats = append(cats, US)
		if c.Accredited {
			cats = append(cats, USAccredited)
		}
	case models.RegionJP:
		cats = append(cats, JP)
	case models.RegionEU:
		if !c.Qualified {
			cats = append(cats, EURetail(c.Country))
		}
	}
	return cats
}

// LimitFor returns the configured cap for a category; zero means unlimited.
func LimitFor(l models.Limits, c Category) int {
	switch c {
	case Total:
		return l.Total
	case US:
		return l.US
	case USAccredited:
		return l.USAccredited
	case JP:
		return l.JP
	case Accredited:
		return l.Accredited
	case NonAccredited:
		return l.NonAccredited
	}
	if strings.HasPrefix(string(c), euRetailPrefix) {
		return l.EURetail
	}
	return 0
}

// Deltas is a signed change per category.
type Deltas map[Category]int

// Add accumulates sign copies of each category in cats.
func (d Deltas) Add(cats []Category, sign int) {
	for _, c := range cats {
		d[c] += sign
	}
}

// Counters holds the current count per category.
type Counters struct {
	Counts map[Category]int `json:"counts"`
}

// New returns empty counters.
func New() Counters {
	return Counters{Counts: make(map[Category]int)}
}

// Get returns the count for a category.
func (c Counters) Get(cat Category) int {
	return c.Counts[cat]
}

// Exceeds reports the first category (in sorted order) whose count would grow
// past its non-zero limit after applying deltas. Only growing categories are
// checked so leaving investors never trip a cap.
func (c Counters) Exceeds(limits models.Limits, d Deltas) (Category, bool) {
	for _, cat := range sortedKeys(d) {
		delta := d[cat]
		if delta <= 0 {
			continue
		}
		limit := LimitFor(limits, cat)
		if limit > 0 && c.Counts[cat]+delta > limit {
			return cat, true
		}
	}
	return "", false
}

// Apply adds deltas, failing without changes if any count would go negative.
func (c *Counters) Apply(d Deltas) error {
	for cat, delta := range d {
		if c.Counts[cat]+delta < 0 {
			return dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("investor count for %s would become negative", cat))
		}
	}
	if c.Counts == nil {
		c.Counts = make(map[Category]int)
	}
	for cat, delta := range d {
		c.Counts[cat] += delta
		if c.Counts[cat] == 0 {
			delete(c.Counts, cat)
		}
	}
	return nil
}

// Clone deep-copies the counters.
func (c Counters) Clone() Counters {
	out := New()
	for k, v := range c.Counts {
		out.Counts[k] = v
	}
	return out
}

// Snapshot returns a copy suitable for responses.
func (c Counters) Snapshot() map[Category]int {
	out := make(map[Category]int, len(c.Counts))
	for k, v := range c.Counts {
		out[k] = v
	}
	return out
}

func sortedKeys(d Deltas) []Category {
	keys := make([]Category, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Tracker couples counters with the stored classification of each counted investor.
type Tracker struct {
	Counters Counters                                `json:"counters"`
	Members  map[id.InvestorID]models.Classification `json:"members"`
}

// NewTracker returns an empty tracker.
func NewTracker() Tracker {
	return Tracker{Counters: New(), Members: make(map[id.InvestorID]models.Classification)}
}

// IsMember reports whether the investor is currently counted.
func (t *Tracker) IsMember(inv id.InvestorID) bool {
	_, ok := t.Members[inv]
	return ok
}

// Transition updates membership after an investor's aggregate balance moves
// from before to after. class is used only when the investor joins.
func (t *Tracker) Transition(inv id.InvestorID, before, after uint64, class models.Classification) error {
	switch {
	case before == 0 && after > 0:
		return t.join(inv, class)
	case before > 0 && after == 0:
		return t.leave(inv)
	}
	return nil
}

// Reclassify moves a counted investor to a new classification.
func (t *Tracker) Reclassify(inv id.InvestorID, class models.Classification) error {
	old, ok := t.Members[inv]
	if !ok || old == class {
		return nil
	}
	d := Deltas{}
	d.Add(Of(old), -1)
	d.Add(Of(class), 1)
	if err := t.Counters.Apply(d); err != nil {
		return err
	}
	t.Members[inv] = class
	return nil
}

func (t *Tracker) join(inv id.InvestorID, class models.Classification) error {
	if t.IsMember(inv) {
		return nil
	}
	d := Deltas{}
	d.Add(Of(class), 1)
	if err := t.Counters.Apply(d); err != nil {
		return err
	}
	if t.Members == nil {
		t.Members = make(map[id.InvestorID]models.Classification)
	}
	t.Members[inv] = class
	return nil
}

func (t *Tracker) leave(inv id.InvestorID) error {
	class, ok := t.Members[inv]
	if !ok {
		return nil
	}
	d := Deltas{}
	d.Add(Of(class), -1)
	if err := t.Counters.Apply(d); err != nil {
		return err
	}
	delete(t.Members, inv)
	return nil
}

// Clone deep-copies the tracker.
func (t Tracker) Clone() Tracker {
	out := Tracker{Counters: t.Counters.Clone(), Members: make(map[id.InvestorID]models.Classification, len(t.Members))}
	for k, v := range t.Members {
		out.Members[k] = v
	}
	return out
}

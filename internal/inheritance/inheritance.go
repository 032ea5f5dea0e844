// Package inheritance computes intestate shares under a simplified reading
// of the Israeli Succession Law, limited to the spouse and the first three
// parentelae (children, parents and their issue, grandparents).
//
// Shares are exact fractions of the estate.
package inheritance

import (
	"errors"
	"fmt"
	"math/big"
)

// Class names a group of heirs.
type Class string

// Heir classes, in order of precedence after the spouse.
const (
	ClassSpouse       Class = "spouse"
	ClassChildren     Class = "children"
	ClassParents      Class = "parents"
	ClassSiblings     Class = "siblings"
	ClassGrandparents Class = "grandparents"
)

// MinMarriedYears is the length of marriage, together with a shared home,
// after which a spouse takes the whole estate ahead of siblings and
// grandparents.
const MinMarriedYears = 3

var (
	// ErrNoHeirs is returned when nobody inherits.
	ErrNoHeirs = errors.New("inheritance: no heirs")

	// ErrInvalidHeirs is returned for impossible inputs such as negative counts.
	ErrInvalidHeirs = errors.New("inheritance: invalid heirs")
)

// Heirs describes the surviving relatives of the deceased.
type Heirs struct {
	Spouse        bool    `json:"spouse"`
	Children      int     `json:"children"`
	Parents       int     `json:"parents"`
	Siblings      int     `json:"siblings"`
	Grandparents  int     `json:"grandparents"`
	MarriedYears  float64 `json:"married_years"`
	LivedTogether bool    `json:"lived_together"`
}

// Share is the portion of the estate going to one class.
type Share struct {
	Class Class `json:"class"`
	Count int   `json:"count"`

	// Total is the fraction of the estate for the whole class.
	Total *big.Rat `json:"total"`

	// PerHead is Total divided equally among Count heirs.
	PerHead *big.Rat `json:"per_head"`
}

// Distribution lists the non-zero shares, spouse first.
type Distribution struct {
	Shares []Share `json:"shares"`
}

// Of returns the share of class c, if any.
func (d Distribution) Of(c Class) (Share, bool) {
	for _, s := range d.Shares {
		if s.Class == c {
			return s, true
		}
	}
	return Share{}, false
}

// Sum returns the total of all shares; 1 for any result of [Calculate].
func (d Distribution) Sum() *big.Rat {
	sum := new(big.Rat)
	for _, s := range d.Shares {
		sum.Add(sum, s.Total)
	}
	return sum
}

func (h Heirs) validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		n    int
		max  int
	}{
		{"children", h.Children, -1},
		{"parents", h.Parents, 2},
		{"siblings", h.Siblings, -1},
		{"grandparents", h.Grandparents, 4},
	} {
		if f.n < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must not be negative", ErrInvalidHeirs, f.name))
		}
		if f.max >= 0 && f.n > f.max {
			errs = append(errs, fmt.Errorf("%w: at most %d %s", ErrInvalidHeirs, f.max, f.name))
		}
	}
	if h.MarriedYears < 0 {
		errs = append(errs, fmt.Errorf("%w: married_years must not be negative", ErrInvalidHeirs))
	}
	return errors.Join(errs...)
}

// Calculate distributes the estate among h.
//
// A spouse takes half alongside children or parents, two thirds alongside
// siblings or grandparents (the whole estate after [MinMarriedYears] of
// marriage in a shared home), and everything when alone. The rest goes in
// equal parts to the first non-empty class among children, parents,
// siblings and grandparents.
func Calculate(h Heirs) (Distribution, error) {
	if err := h.validate(); err != nil {
		return Distribution{}, err
	}

	var d Distribution
	rest := big.NewRat(1, 1)

	if h.Spouse {
		var part *big.Rat
		switch {
		case h.Children > 0 || h.Parents > 0:
			part = big.NewRat(1, 2)
		case h.Siblings > 0 || h.Grandparents > 0:
			if h.MarriedYears >= MinMarriedYears && h.LivedTogether {
				part = big.NewRat(1, 1)
			} else {
				part = big.NewRat(2, 3)
			}
		default:
			part = big.NewRat(1, 1)
		}
		d.Shares = append(d.Shares, newShare(ClassSpouse, 1, part))
		rest.Sub(rest, part)
	}

	if rest.Sign() == 0 {
		return d, nil
	}

	for _, c := range []struct {
		class Class
		n     int
	}{
		{ClassChildren, h.Children},
		{ClassParents, h.Parents},
		{ClassSiblings, h.Siblings},
		{ClassGrandparents, h.Grandparents},
	} {
		if c.n > 0 {
			d.Shares = append(d.Shares, newShare(c.class, c.n, rest))
			return d, nil
		}
	}
	return Distribution{}, ErrNoHeirs
}

func newShare(c Class, n int, total *big.Rat) Share {
	t := new(big.Rat).Set(total)
	return Share{
		Class:   c,
		Count:   n,
		Total:   t,
		PerHead: new(big.Rat).Quo(t, big.NewRat(int64(n), 1)),
	}
}

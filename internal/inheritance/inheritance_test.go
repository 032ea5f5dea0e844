package inheritance_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/tikunlabs/tikun/internal/inheritance"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	type want struct {
		class   inheritance.Class
		total   string
		perHead string
	}

	tests := []struct {
		name  string
		heirs inheritance.Heirs
		want  []want
	}{
		{
			name:  "spouse and children",
			heirs: inheritance.Heirs{Spouse: true, Children: 3},
			want: []want{
				{inheritance.ClassSpouse, "1/2", "1/2"},
				{inheritance.ClassChildren, "1/2", "1/6"},
			},
		},
		{
			name:  "spouse and parents",
			heirs: inheritance.Heirs{Spouse: true, Parents: 2, Siblings: 4},
			want: []want{
				{inheritance.ClassSpouse, "1/2", "1/2"},
				{inheritance.ClassParents, "1/2", "1/4"},
			},
		},
		{
			name:  "spouse and siblings, short marriage",
			heirs: inheritance.Heirs{Spouse: true, Siblings: 2, MarriedYears: 2, LivedTogether: true},
			want: []want{
				{inheritance.ClassSpouse, "2/3", "2/3"},
				{inheritance.ClassSiblings, "1/3", "1/6"},
			},
		},
		{
			name:  "spouse and grandparents, long marriage apart",
			heirs: inheritance.Heirs{Spouse: true, Grandparents: 4, MarriedYears: 10},
			want: []want{
				{inheritance.ClassSpouse, "2/3", "2/3"},
				{inheritance.ClassGrandparents, "1/3", "1/12"},
			},
		},
		{
			name:  "spouse takes all after long shared marriage",
			heirs: inheritance.Heirs{Spouse: true, Siblings: 3, MarriedYears: 3, LivedTogether: true},
			want: []want{
				{inheritance.ClassSpouse, "1", "1"},
			},
		},
		{
			name:  "spouse alone",
			heirs: inheritance.Heirs{Spouse: true},
			want:  []want{{inheritance.ClassSpouse, "1", "1"}},
		},
		{
			name:  "children only",
			heirs: inheritance.Heirs{Children: 4, Parents: 2},
			want:  []want{{inheritance.ClassChildren, "1", "1/4"}},
		},
		{
			name:  "siblings only",
			heirs: inheritance.Heirs{Siblings: 3, Grandparents: 1},
			want:  []want{{inheritance.ClassSiblings, "1", "1/3"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d, err := inheritance.Calculate(tc.heirs)
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if len(d.Shares) != len(tc.want) {
				t.Fatalf("shares = %+v, want %d entries", d.Shares, len(tc.want))
			}
			for i, w := range tc.want {
				s := d.Shares[i]
				if s.Class != w.class || s.Total.RatString() != w.total || s.PerHead.RatString() != w.perHead {
					t.Errorf("share[%d] = %s %s %s, want %s %s %s",
						i, s.Class, s.Total.RatString(), s.PerHead.RatString(), w.class, w.total, w.perHead)
				}
			}
			if d.Sum().Cmp(big.NewRat(1, 1)) != 0 {
				t.Errorf("Sum() = %s, want 1", d.Sum().RatString())
			}
		})
	}
}

func TestCalculate_Errors(t *testing.T) {
	t.Parallel()

	if _, err := inheritance.Calculate(inheritance.Heirs{}); !errors.Is(err, inheritance.ErrNoHeirs) {
		t.Errorf("no heirs: err = %v", err)
	}

	for _, h := range []inheritance.Heirs{
		{Children: -1},
		{Parents: 3},
		{Grandparents: 5},
		{Spouse: true, MarriedYears: -1},
	} {
		if _, err := inheritance.Calculate(h); !errors.Is(err, inheritance.ErrInvalidHeirs) {
			t.Errorf("Calculate(%+v) err = %v, want ErrInvalidHeirs", h, err)
		}
	}
}

func TestDistribution_Of(t *testing.T) {
	t.Parallel()

	d, err := inheritance.Calculate(inheritance.Heirs{Spouse: true, Children: 1})
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := d.Of(inheritance.ClassChildren); !ok || s.Count != 1 {
		t.Errorf("Of(children) = %+v, %v", s, ok)
	}
	if _, ok := d.Of(inheritance.ClassSiblings); ok {
		t.Error("Of(siblings) reported a share")
	}
}

package game

import (
	"math"
	"testing"
)

func TestCatalog_Shape(t *testing.T) {
	catalog := Catalog()

	if len(catalog) != 7 {
		t.Fatalf("catalog has %d entries, want 7", len(catalog))
	}

	t.Run("ids are 1..7 in order", func(t *testing.T) {
		for i, p := range catalog {
			if p.ID != i+1 {
				t.Errorf("entry %d has id %d, want %d", i, p.ID, i+1)
			}
		}
	})

	t.Run("exactly one try-again segment", func(t *testing.T) {
		zeros := 0
		for _, p := range catalog {
			if p.Amount == 0 {
				zeros++
			}
		}
		if zeros != 1 {
			t.Errorf("catalog has %d zero-amount segments, want 1", zeros)
		}
	})

	t.Run("currencies are valid", func(t *testing.T) {
		for _, p := range catalog {
			if p.Currency != CurrencyBNB && p.Currency != CurrencyETH {
				t.Errorf("entry %d has unknown currency %q", p.ID, p.Currency)
			}
		}
	})

	t.Run("catalog accessor returns a copy", func(t *testing.T) {
		catalog[0].Amount = 999
		if Catalog()[0].Amount == 999 {
			t.Error("mutating the returned slice must not affect the catalog")
		}
	})
}

func TestCatalog_WinningProbabilitiesSumToOne(t *testing.T) {
	sum := 0.0
	for _, p := range Catalog() {
		if p.Amount > 0 {
			sum += p.Probability
		}
	}

	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("winning probabilities sum to %v, want 1.0", sum)
	}
}

func TestPickPrize_CumulativeDistribution(t *testing.T) {
	winning := make([]Prize, 0, 6)
	for _, p := range Catalog() {
		if p.Amount > 0 {
			winning = append(winning, p)
		}
	}

	t.Run("draw lands in the matching bucket", func(t *testing.T) {
		cumulative := 0.0
		for _, want := range winning {
			// A draw just inside this entry's bucket selects it.
			r := cumulative + want.Probability/2
			got := pickPrize(r)
			if got.ID != want.ID {
				t.Errorf("pickPrize(%v) = prize %d, want %d", r, got.ID, want.ID)
			}
			cumulative += want.Probability
		}
	})

	t.Run("zero draw selects first winning entry", func(t *testing.T) {
		if got := pickPrize(0.0); got.ID != winning[0].ID {
			t.Errorf("pickPrize(0) = prize %d, want %d", got.ID, winning[0].ID)
		}
	})

	t.Run("rounding overflow falls back to first winning entry", func(t *testing.T) {
		// r at or past the cumulative total must still produce a prize.
		got := pickPrize(1.0)
		if got.Amount <= 0 {
			t.Fatal("fallback must return a winning prize")
		}
		if got.ID != winning[0].ID {
			t.Errorf("pickPrize(1.0) = prize %d, want first winning entry %d", got.ID, winning[0].ID)
		}
	})

	t.Run("never selects the try-again segment", func(t *testing.T) {
		for r := 0.0; r < 1.0; r += 0.01 {
			if pickPrize(r).Amount <= 0 {
				t.Fatalf("pickPrize(%v) selected a non-winning segment", r)
			}
		}
	})
}

func TestSegmentRotation(t *testing.T) {
	t.Run("includes full turns", func(t *testing.T) {
		rotation := segmentRotation(1, WHEEL_FULL_TURNS)
		if rotation < float64(WHEEL_FULL_TURNS)*360.0 {
			t.Errorf("rotation %v should include %d full turns", rotation, WHEEL_FULL_TURNS)
		}
	})

	t.Run("distinct segments get distinct angles", func(t *testing.T) {
		seen := make(map[float64]int)
		for _, p := range Catalog() {
			angle := segmentRotation(p.ID, 0)
			if other, dup := seen[angle]; dup {
				t.Errorf("segments %d and %d share angle %v", p.ID, other, angle)
			}
			seen[angle] = p.ID
		}
	})
}

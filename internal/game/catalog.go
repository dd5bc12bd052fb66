package game

// Wheel catalog. Seven fixed segments; probabilities of the winning entries
// (amount > 0) sum to 1.0 and drive the cumulative draw in pickPrize.
var prizeCatalog = []Prize{
	{ID: 1, Amount: 0.5, Currency: CurrencyBNB, Color: "#F3BA2F", Probability: 0.02, Label: "0.5 BNB"},
	{ID: 2, Amount: 0.1, Currency: CurrencyETH, Color: "#627EEA", Probability: 0.10, Label: "0.1 ETH"},
	{ID: 3, Amount: 0.05, Currency: CurrencyBNB, Color: "#E8B32A", Probability: 0.18, Label: "0.05 BNB"},
	{ID: 4, Amount: 0, Currency: CurrencyBNB, Color: "#2B2D42", Probability: 0, Label: "Try Again"},
	{ID: 5, Amount: 0.2, Currency: CurrencyBNB, Color: "#F0A500", Probability: 0.05, Label: "0.2 BNB"},
	{ID: 6, Amount: 0.02, Currency: CurrencyETH, Color: "#8A92B2", Probability: 0.35, Label: "0.02 ETH"},
	{ID: 7, Amount: 0.01, Currency: CurrencyBNB, Color: "#FFD166", Probability: 0.30, Label: "0.01 BNB"},
}

const segmentAngle = 360.0 / float64(7)

// Catalog returns a copy of the wheel catalog so callers cannot mutate it.
func Catalog() []Prize {
	out := make([]Prize, len(prizeCatalog))
	copy(out, prizeCatalog)
	return out
}

// TryAgainSegment returns the designated no-win segment.
func TryAgainSegment() Prize {
	for _, p := range prizeCatalog {
		if p.Amount == 0 {
			return p
		}
	}
	return prizeCatalog[0]
}

// pickPrize selects a winning prize by walking the cumulative probability
// distribution of the amount > 0 entries in catalog order. Floating point
// rounding can leave r past the last bucket; the first winning entry is the
// fallback so a win never fails to produce a prize.
func pickPrize(r float64) Prize {
	var first *Prize
	cumulative := 0.0

	for i := range prizeCatalog {
		p := &prizeCatalog[i]
		if p.Amount <= 0 {
			continue
		}
		if first == nil {
			first = p
		}
		cumulative += p.Probability
		if r < cumulative {
			return *p
		}
	}

	return *first
}

// segmentRotation maps a segment to its wheel angle in degrees. Presentation
// only; a few extra full turns make the stop look earned.
func segmentRotation(prizeID int, fullTurns int) float64 {
	index := 0
	for i, p := range prizeCatalog {
		if p.ID == prizeID {
			index = i
			break
		}
	}
	return float64(fullTurns)*360.0 + float64(index)*segmentAngle + segmentAngle/2
}

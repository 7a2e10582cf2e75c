package vote

import "encoding/json"

// Card is one value from the estimation deck. Numeric cards hold their
// digits ("0" through "89"); the two special cards are named.
type Card string

const (
	CardInfinity Card = "infinity"
	CardUnknown  Card = "unknown"
)

// InfinityWeight is the numeric stand-in used when averaging an infinity card.
const InfinityWeight = 100

// Deck lists every castable card in display order.
var Deck = []Card{"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", CardInfinity, CardUnknown}

var weights = map[Card]float64{
	"0": 0, "1": 1, "2": 2, "3": 3, "5": 5, "8": 8,
	"13": 13, "21": 21, "34": 34, "55": 55, "89": 89,
	CardInfinity: InfinityWeight,
}

// Valid reports whether c is a member of the deck.
func (c Card) Valid() bool {
	if c == CardUnknown {
		return true
	}
	_, ok := weights[c]
	return ok
}

// Weight returns the value c contributes to an average. Unknown cards and
// anything outside the deck contribute nothing.
func (c Card) Weight() (float64, bool) {
	w, ok := weights[c]
	return w, ok
}

// Numeric cards travel as JSON numbers, the special cards as strings, so the
// wire format matches what estimation clients already send.
func (c Card) MarshalJSON() ([]byte, error) {
	if _, ok := weights[c]; ok && c != CardInfinity {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Card(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = Card(n.String())
	return nil
}

package model

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	mrand "math/rand"
)

// Deck is one shuffled pack of 52 cards with a deal cursor. A fresh deck is
// built for every hand; the seed is persisted on the game so a hand can be
// replayed, and is never exposed in any client view.
//
// This engine does not burn cards: community cards come straight off the
// cursor. Burning only matters when physical cards can be seen.
type Deck struct {
	cards  [52]Card
	cursor int
}

// NewSeed draws a deck seed from the process CSPRNG.
func NewSeed() int64 {
	max := new(big.Int).SetUint64(1 << 62)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand only fails when the platform source is broken;
		// fall back to reading raw bytes before giving up.
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			panic("deck: no entropy source: " + err.Error())
		}
		return int64(binary.BigEndian.Uint64(b[:]) >> 2)
	}
	return n.Int64()
}

// NewDeck builds the 52-card pack and Fisher-Yates shuffles it with a
// generator seeded from seed, so the same seed always yields the same order.
func NewDeck(seed int64) *Deck {
	d := &Deck{}
	i := 0
	for _, suit := range Suits {
		for rank := RankTwo; rank <= RankAce; rank++ {
			d.cards[i] = Card{Rank: rank, Suit: suit}
			i++
		}
	}
	rng := mrand.New(mrand.NewSource(seed))
	rng.Shuffle(len(d.cards), func(a, b int) {
		d.cards[a], d.cards[b] = d.cards[b], d.cards[a]
	})
	return d
}

// Deal returns the next n cards and advances the cursor.
func (d *Deck) Deal(n int) ([]Card, error) {
	if d.cursor+n > len(d.cards) {
		return nil, Errorf(KindDeckExhausted, "deal %d with %d cards left", n, len(d.cards)-d.cursor)
	}
	out := make([]Card, n)
	copy(out, d.cards[d.cursor:d.cursor+n])
	d.cursor += n
	return out, nil
}

// Cursor reports how many cards have been dealt.
func (d *Deck) Cursor() int {
	return d.cursor
}

// Advance moves the cursor without returning cards, used when rebuilding a
// deck from a persisted seed and cursor position.
func (d *Deck) Advance(n int) error {
	if d.cursor+n > len(d.cards) {
		return Errorf(KindDeckExhausted, "advance %d with %d cards left", n, len(d.cards)-d.cursor)
	}
	d.cursor += n
	return nil
}

// Remaining reports how many cards are left to deal.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.cursor
}

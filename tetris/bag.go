package tetris

import "math/rand"

// Bag deals pieces from shuffled permutations of all seven kinds.
// Two bags built from the same seed deal identical sequences.
type Bag struct {
	rng   *rand.Rand
	queue [NumKinds]Kind
	pos   int
}

// NewBag creates a bag seeded with seed.
func NewBag(seed int64) *Bag {
	b := &Bag{rng: rand.New(rand.NewSource(seed))}
	b.refill()
	return b
}

func (b *Bag) refill() {
	for i := range b.queue {
		b.queue[i] = Kind(i)
	}
	b.rng.Shuffle(NumKinds, func(i, j int) {
		b.queue[i], b.queue[j] = b.queue[j], b.queue[i]
	})
	b.pos = 0
}

// Next returns the next piece kind.
func (b *Bag) Next() Kind {
	if b.pos == NumKinds {
		b.refill()
	}
	k := b.queue[b.pos]
	b.pos++
	return k
}

package evolution

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/tetrevo/game"
)

// Slot is a member's position in the population. Noise and runner stay
// aligned through it.
type Slot struct {
	Index int
}

// Member is one genome's runner and the noise it was sampled with. Noise is
// nil for members outside the ES gradient (elites, seeds, immigrants).
type Member struct {
	Runner *game.Runner
	Noise  []float64
}

// Population stores one generation's members as ECS entities.
type Population struct {
	world  *ecs.World
	mapper *ecs.Map2[Slot, Member]
	filter *ecs.Filter2[Slot, Member]

	runners []*game.Runner // index-ordered view for ticking
}

// NewPopulation creates an empty population.
func NewPopulation() *Population {
	world := ecs.NewWorld()
	return &Population{
		world:  world,
		mapper: ecs.NewMap2[Slot, Member](world),
		filter: ecs.NewFilter2[Slot, Member](world),
	}
}

// Add appends a member and returns its slot index.
func (p *Population) Add(r *game.Runner, noise []float64) int {
	idx := len(p.runners)
	p.mapper.NewEntity(&Slot{Index: idx}, &Member{Runner: r, Noise: noise})
	p.runners = append(p.runners, r)
	return idx
}

// Len returns the member count.
func (p *Population) Len() int {
	return len(p.runners)
}

// Runners returns runners in slot order. The slice is shared.
func (p *Population) Runners() []*game.Runner {
	return p.runners
}

// Members returns all members in slot order.
func (p *Population) Members() []Member {
	out := make([]Member, len(p.runners))
	query := p.filter.Query()
	for query.Next() {
		slot, m := query.Get()
		out[slot.Index] = *m
	}
	return out
}

// Replace swaps the member at idx for a new runner outside the gradient.
func (p *Population) Replace(idx int, r *game.Runner) {
	query := p.filter.Query()
	for query.Next() {
		slot, m := query.Get()
		if slot.Index == idx {
			m.Runner = r
			m.Noise = nil
		}
	}
	p.runners[idx] = r
}

// Find returns the runner whose genome has the given id.
func (p *Population) Find(id string) (*game.Runner, int) {
	for i, r := range p.runners {
		if r.Genome.ID == id {
			return r, i
		}
	}
	return nil, -1
}

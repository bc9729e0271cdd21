package sim

import (
	"github.com/pthm-cable/tetrevo/neural"
	"github.com/pthm-cable/tetrevo/tetris"
)

// Command is a request to the simulator. The set is closed.
type Command interface {
	command()
}

// Pause stops ticking. Updates keep flowing.
type Pause struct{}

// Resume restarts ticking.
type Resume struct{}

// Reset discards all progress.
type Reset struct{}

// ImportState replaces the engine with an encoded snapshot. Data that does
// not decode resets the engine instead.
type ImportState struct {
	Data []byte
}

// InjectGenome replaces the weakest member with a copy of Genome.
type InjectGenome struct {
	Genome *neural.Genome
}

// SetSpeed sets the engine ticks run per batch.
type SetSpeed struct {
	TicksPerBatch int
}

// TakeControl hands an agent to manual input. An empty id releases
// control.
type TakeControl struct {
	AgentID string
}

// ControlInput is one manual input for the controlled agent.
type ControlInput struct {
	Action tetris.Action
}

// KillAgent ends an agent's runs.
type KillAgent struct {
	AgentID string
}

func (Pause) command()        {}
func (Resume) command()       {}
func (Reset) command()        {}
func (ImportState) command()  {}
func (InjectGenome) command() {}
func (SetSpeed) command()     {}
func (TakeControl) command()  {}
func (ControlInput) command() {}
func (KillAgent) command()    {}

package grid

import (
	"fmt"

	"github.com/danielegr/deep-ifs/types"
)

// Discrete actions of the grid environment
const (
	ActionStay = iota
	ActionUp
	ActionDown
	ActionLeft
	ActionRight
	numActions
)

type Position struct {
	I int
	J int
	K int
}

func (p Position) Eq(other Position) bool {
	return p.I == other.I && p.J == other.J && p.K == other.K
}

// Door teleports the agent between grids when stepped onto
type Door struct {
	From Position
	To   Position
}

// Environment is a sequence of rooms connected by doors. Passing a door
// pays a small reward; reaching the goal corner of the last room pays a
// large one and ends the episode. Observations are the normalized
// (row, column, room) coordinates.
type Environment struct {
	Height int
	Width  int
	Grids  int
	Doors  []Door

	pos  Position
	goal Position
}

var _ types.Environment = &Environment{}

func NewEnvironment(height, width, grids int, doors ...Door) *Environment {
	return &Environment{
		Height: height,
		Width:  width,
		Grids:  grids,
		Doors:  doors,
		pos:    Position{0, 0, 0},
		goal:   Position{I: height - 1, J: width - 1, K: grids - 1},
	}
}

func (g *Environment) Reset() (types.State, error) {
	g.pos = Position{0, 0, 0}
	return g.observation(), nil
}

func (g *Environment) Step(action int) (types.StepResult, error) {
	if action < 0 || action >= numActions {
		return types.StepResult{}, fmt.Errorf("invalid action %d for grid environment", action)
	}

	next := g.pos
	switch action {
	case ActionStay:
	case ActionUp:
		next.I = min(g.Height-1, g.pos.I+1)
	case ActionDown:
		next.I = max(0, g.pos.I-1)
	case ActionLeft:
		next.J = max(0, g.pos.J-1)
	case ActionRight:
		next.J = min(g.Width-1, g.pos.J+1)
	}

	reward := 0.0
	for _, d := range g.Doors {
		if d.From.Eq(next) {
			next = d.To
			reward = 1.0
			break
		}
	}

	done := false
	if next.Eq(g.goal) {
		reward = 10.0
		done = true
	}

	g.pos = next
	return types.StepResult{
		State:  g.observation(),
		Reward: reward,
		Done:   done,
		Info:   map[string]interface{}{"position": next},
	}, nil
}

func (g *Environment) Actions() int {
	return numActions
}

func (g *Environment) Render(mode string) {
	fmt.Printf("grid %d: (%d, %d)\n", g.pos.K, g.pos.I, g.pos.J)
}

func (g *Environment) observation() types.State {
	return types.State{
		norm(g.pos.I, g.Height),
		norm(g.pos.J, g.Width),
		norm(g.pos.K, g.Grids),
	}
}

func norm(v, size int) float64 {
	if size <= 1 {
		return 0
	}
	return float64(v) / float64(size-1)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

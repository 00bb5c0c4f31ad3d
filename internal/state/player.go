package state

import "gridrush/server/internal/grid"

// Die identifies a bonus die size.
type Die int

const (
	D4 Die = 4
	D6 Die = 6
)

// Profile tags how a non-human player picks its moves.
type Profile string

const (
	ProfileNormal     Profile = "normal"
	ProfileAggressive Profile = "aggressive"
	ProfileDefensive  Profile = "defensive"
)

// ParseProfile validates a profile string from character setup.
func ParseProfile(value string) (Profile, bool) {
	switch Profile(value) {
	case ProfileNormal, ProfileAggressive, ProfileDefensive:
		return Profile(value), true
	default:
		return "", false
	}
}

const (
	// DefaultLife is the starting life total assigned at character setup.
	DefaultLife = 4
	// DefaultSpeed regenerates the move-point budget each turn.
	DefaultSpeed = 4
	// DefaultAttack and DefaultDefense are the flat combat stats.
	DefaultAttack  = 4
	DefaultDefense = 4
	// ActionsPerTurn is the per-turn action budget.
	ActionsPerTurn = 1
	// EvasionsPerCombat is the evasion charge budget granted when a combat
	// starts.
	EvasionsPerCombat = 2
	// MaxInventory bounds how many items a player can carry.
	MaxInventory = 2
)

// Specs holds the mutable character sheet for one player.
type Specs struct {
	Life       int `json:"life"`
	MaxLife    int `json:"maxLife"`
	Speed      int `json:"speed"`
	Attack     int `json:"attack"`
	Defense    int `json:"defense"`
	AttackDie  Die `json:"attackDie"`
	DefenseDie Die `json:"defenseDie"`
	MovePoints int `json:"movePoints"`
	Actions    int `json:"actions"`
	Evasions   int `json:"evasions"`
}

// Stats accumulates per-match outcomes for end-of-match reporting.
type Stats struct {
	Victories  int `json:"victories"`
	Defeats    int `json:"defeats"`
	Combats    int `json:"combats"`
	Evasions   int `json:"evasions"`
	LifeDealt  int `json:"lifeDealt"`
	LifeTaken  int `json:"lifeTaken"`
	ItemsUsed  int `json:"itemsUsed"`
	TilesMoved int `json:"tilesMoved"`
}

// Player is one participant in a match. Mutations flow exclusively through
// the turn scheduler and combat resolver.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`

	Specs Specs `json:"specs"`
	Stats Stats `json:"stats"`

	Inventory []grid.ItemKind `json:"inventory"`

	Pos     grid.Coord   `json:"pos"`
	Spawn   grid.Coord   `json:"spawn"`
	Respawn grid.Coord   `json:"respawn"`
	Visited []grid.Coord `json:"visited,omitempty"`

	Active     bool    `json:"active"`
	Eliminated bool    `json:"eliminated"`
	Observer   bool    `json:"observer"`
	Bot        bool    `json:"bot"`
	Profile    Profile `json:"profile,omitempty"`

	// CarryingFlag latches once the flag pickup notification has fired.
	CarryingFlag bool `json:"carryingFlag,omitempty"`
}

// NewPlayer builds a player with default specs. The bonus die assignment is
// exclusive: a D6 on attack implies a D4 on defense and vice versa.
func NewPlayer(id, name string, attackD6 bool) *Player {
	attackDie, defenseDie := D4, D6
	if attackD6 {
		attackDie, defenseDie = D6, D4
	}
	return &Player{
		ID:   id,
		Name: name,
		Specs: Specs{
			Life:       DefaultLife,
			MaxLife:    DefaultLife,
			Speed:      DefaultSpeed,
			Attack:     DefaultAttack,
			Defense:    DefaultDefense,
			AttackDie:  attackDie,
			DefenseDie: defenseDie,
			MovePoints: DefaultSpeed,
			Actions:    ActionsPerTurn,
		},
		Active:  true,
		Profile: ProfileNormal,
	}
}

// InPlay reports whether the player still takes turns.
func (p *Player) InPlay() bool {
	return p != nil && p.Active && !p.Eliminated && !p.Observer
}

// HasItem reports whether the inventory holds the given kind.
func (p *Player) HasItem(kind grid.ItemKind) bool {
	if p == nil {
		return false
	}
	for _, item := range p.Inventory {
		if item == kind {
			return true
		}
	}
	return false
}

// AddItem appends to the inventory, reporting false when the bound is hit.
func (p *Player) AddItem(kind grid.ItemKind) bool {
	if p == nil || len(p.Inventory) >= MaxInventory {
		return false
	}
	p.Inventory = append(p.Inventory, kind)
	return true
}

// RemoveItem drops the first inventory entry of the given kind.
func (p *Player) RemoveItem(kind grid.ItemKind) bool {
	if p == nil {
		return false
	}
	for i, item := range p.Inventory {
		if item == kind {
			p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

// ResetTurnBudget regenerates move points from speed and restores the action
// budget. Called by the scheduler when the player's turn begins.
func (p *Player) ResetTurnBudget() {
	if p == nil {
		return
	}
	p.Specs.MovePoints = p.Specs.Speed
	p.Specs.Actions = ActionsPerTurn
}

// SpendMovePoints consumes budget, clamping at zero.
func (p *Player) SpendMovePoints(cost int) {
	if p == nil {
		return
	}
	p.Specs.MovePoints -= cost
	if p.Specs.MovePoints < 0 {
		p.Specs.MovePoints = 0
	}
}

// RecordVisit appends the coordinate to the visited-tile history.
func (p *Player) RecordVisit(c grid.Coord) {
	if p == nil {
		return
	}
	p.Visited = append(p.Visited, c)
}

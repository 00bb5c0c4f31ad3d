// Package grid holds the static per-match board: tiles, doors, and ground
// items, plus the adjacency and cost queries the rest of the engine builds on.
package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord identifies a tile on the board.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key renders the canonical "x,y" form used to key coordinate maps.
func (c Coord) Key() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// ParseKey recovers a coordinate from its canonical key.
func ParseKey(key string) (Coord, bool) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) != 2 {
		return Coord{}, false
	}
	x, err := strconv.Atoi(parts[0])
	if err != nil {
		return Coord{}, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return Coord{}, false
	}
	return Coord{X: x, Y: y}, true
}

// Adjacent reports whether the two coordinates share an orthogonal edge.
func (c Coord) Adjacent(other Coord) bool {
	dx := c.X - other.X
	dy := c.Y - other.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx+dy == 1
}

// Neighbors returns the four orthogonal neighbors in discovery order.
func (c Coord) Neighbors() [4]Coord {
	return [4]Coord{
		{X: c.X, Y: c.Y - 1},
		{X: c.X + 1, Y: c.Y},
		{X: c.X, Y: c.Y + 1},
		{X: c.X - 1, Y: c.Y},
	}
}

// Terrain enumerates the tile categories.
type Terrain string

const (
	TerrainFloor Terrain = "floor"
	TerrainWater Terrain = "water"
	TerrainIce   Terrain = "ice"
	TerrainWall  Terrain = "wall"
)

// Cost reports the move-point price of entering a tile of this terrain.
// Walls are impassable and report ok=false.
func (t Terrain) Cost() (int, bool) {
	switch t {
	case TerrainFloor:
		return 1, true
	case TerrainWater:
		return 2, true
	case TerrainIce:
		return 0, true
	default:
		return 0, false
	}
}

// ParseTerrain validates a terrain string from a stored map definition.
func ParseTerrain(value string) (Terrain, bool) {
	switch Terrain(value) {
	case TerrainFloor, TerrainWater, TerrainIce, TerrainWall:
		return Terrain(value), true
	default:
		return "", false
	}
}

// Tile pairs a coordinate with its terrain category.
type Tile struct {
	Coord   Coord   `json:"coord"`
	Terrain Terrain `json:"terrain"`
}

// Door occupies a tile and blocks it while closed. An open door costs
// nothing to cross.
type Door struct {
	Coord Coord `json:"coord"`
	Open  bool  `json:"open"`
}

// ItemKind enumerates the item categories that can sit on a tile or in an
// inventory.
type ItemKind string

const (
	ItemFlag        ItemKind = "flag"
	ItemIceTraction ItemKind = "ice-traction"
	ItemWallBreaker ItemKind = "wall-breaker"
	ItemPotion      ItemKind = "potion"
)

// ParseItemKind validates an item kind from a stored map definition.
func ParseItemKind(value string) (ItemKind, bool) {
	switch ItemKind(value) {
	case ItemFlag, ItemIceTraction, ItemWallBreaker, ItemPotion:
		return ItemKind(value), true
	default:
		return "", false
	}
}

// Item is a ground item waiting on a tile.
type Item struct {
	Coord Coord    `json:"coord"`
	Kind  ItemKind `json:"kind"`
}

// Map is the static board for one match. Mutations are limited to door
// toggles, wall breaks, and item pickup/placement; everything else is
// read-only queries.
type Map struct {
	width   int
	height  int
	terrain map[Coord]Terrain
	doors   map[Coord]bool
	items   map[Coord]Item
}

// NewMap builds a board from a tile list. Coordinates inside the bounds that
// carry no explicit tile default to floor; everything outside the bounds is
// treated as wall.
func NewMap(width, height int, tiles []Tile, doors []Door, items []Item) *Map {
	m := &Map{
		width:   width,
		height:  height,
		terrain: make(map[Coord]Terrain, len(tiles)),
		doors:   make(map[Coord]bool, len(doors)),
		items:   make(map[Coord]Item, len(items)),
	}
	for _, tile := range tiles {
		m.terrain[tile.Coord] = tile.Terrain
	}
	for _, door := range doors {
		m.doors[door.Coord] = door.Open
	}
	for _, item := range items {
		m.items[item.Coord] = item
	}
	return m
}

// Width reports the board width in tiles.
func (m *Map) Width() int {
	if m == nil {
		return 0
	}
	return m.width
}

// Height reports the board height in tiles.
func (m *Map) Height() int {
	if m == nil {
		return 0
	}
	return m.height
}

// InBounds reports whether the coordinate lies on the board.
func (m *Map) InBounds(c Coord) bool {
	if m == nil {
		return false
	}
	return c.X >= 0 && c.Y >= 0 && c.X < m.width && c.Y < m.height
}

// TerrainAt reports the terrain category of a coordinate. Out-of-bounds
// coordinates read as wall.
func (m *Map) TerrainAt(c Coord) Terrain {
	if !m.InBounds(c) {
		return TerrainWall
	}
	if t, ok := m.terrain[c]; ok {
		return t
	}
	return TerrainFloor
}

// DoorAt reports whether a door occupies the coordinate and, if so, whether
// it is open.
func (m *Map) DoorAt(c Coord) (open bool, ok bool) {
	if m == nil {
		return false, false
	}
	open, ok = m.doors[c]
	return open, ok
}

// SetDoor flips a door to the requested open state. It reports false when no
// door occupies the coordinate.
func (m *Map) SetDoor(c Coord, open bool) bool {
	if m == nil {
		return false
	}
	if _, ok := m.doors[c]; !ok {
		return false
	}
	m.doors[c] = open
	return true
}

// Doors snapshots the current door list.
func (m *Map) Doors() []Door {
	if m == nil {
		return nil
	}
	doors := make([]Door, 0, len(m.doors))
	for coord, open := range m.doors {
		doors = append(doors, Door{Coord: coord, Open: open})
	}
	return doors
}

// Tiles snapshots the non-default terrain. Tiles absent from the list are
// floor.
func (m *Map) Tiles() []Tile {
	if m == nil {
		return nil
	}
	tiles := make([]Tile, 0, len(m.terrain))
	for coord, terrain := range m.terrain {
		tiles = append(tiles, Tile{Coord: coord, Terrain: terrain})
	}
	return tiles
}

// BreakWall converts a wall tile to floor. It reports false when the
// coordinate is not a breakable wall.
func (m *Map) BreakWall(c Coord) bool {
	if !m.InBounds(c) {
		return false
	}
	if m.terrain[c] != TerrainWall {
		return false
	}
	m.terrain[c] = TerrainFloor
	return true
}

// ItemAt reports the ground item on a coordinate, if any.
func (m *Map) ItemAt(c Coord) (Item, bool) {
	if m == nil {
		return Item{}, false
	}
	item, ok := m.items[c]
	return item, ok
}

// TakeItem removes and returns the ground item on a coordinate.
func (m *Map) TakeItem(c Coord) (Item, bool) {
	if m == nil {
		return Item{}, false
	}
	item, ok := m.items[c]
	if !ok {
		return Item{}, false
	}
	delete(m.items, c)
	return item, true
}

// PlaceItem drops an item onto its coordinate. An existing ground item on the
// same tile is replaced.
func (m *Map) PlaceItem(item Item) {
	if m == nil {
		return
	}
	m.items[item.Coord] = item
}

// Items snapshots the current ground item list.
func (m *Map) Items() []Item {
	if m == nil {
		return nil
	}
	items := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	return items
}

// StepCost reports the cost of entering a coordinate and whether entry is
// possible at all. Walls, closed doors, and occupied tiles refuse entry; an
// open door crosses for free regardless of the terrain beneath it.
func (m *Map) StepCost(c Coord, occupied func(Coord) bool) (int, bool) {
	if !m.InBounds(c) {
		return 0, false
	}
	if occupied != nil && occupied(c) {
		return 0, false
	}
	if open, ok := m.doors[c]; ok {
		if !open {
			return 0, false
		}
		return 0, true
	}
	return m.TerrainAt(c).Cost()
}

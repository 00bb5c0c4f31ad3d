// Package mapload turns stored map definitions into playable Game
// aggregates. Definitions are JSON documents produced by the map editor;
// this package only reads them.
package mapload

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gridrush/server/internal/grid"
	"gridrush/server/internal/state"
)

var ErrInvalidDefinition = errors.New("invalid map definition")

// TileDef is one tile in a stored definition.
type TileDef struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Terrain string `json:"terrain"`
}

// DoorDef is one door in a stored definition.
type DoorDef struct {
	X    int  `json:"x"`
	Y    int  `json:"y"`
	Open bool `json:"open"`
}

// ItemDef is one ground item in a stored definition.
type ItemDef struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"kind"`
}

// SpawnDef is one starting tile in a stored definition.
type SpawnDef struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Definition is a stored map document.
type Definition struct {
	Name   string     `json:"name"`
	Mode   string     `json:"mode"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Tiles  []TileDef  `json:"tiles"`
	Doors  []DoorDef  `json:"doors,omitempty"`
	Items  []ItemDef  `json:"items,omitempty"`
	Spawns []SpawnDef `json:"spawns"`
}

// Parse decodes and validates a definition.
func Parse(r io.Reader) (*Definition, error) {
	var def Definition
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseFile reads a definition from disk.
func ParseFile(path string) (*Definition, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map definition: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Validate checks the structural rules a playable definition must satisfy.
func (d *Definition) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidDefinition, d.Width, d.Height)
	}
	mode, ok := state.ParseMode(d.Mode)
	if !ok {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidDefinition, d.Mode)
	}
	if len(d.Spawns) == 0 {
		return fmt.Errorf("%w: no spawn tiles", ErrInvalidDefinition)
	}

	inBounds := func(x, y int) bool {
		return x >= 0 && x < d.Width && y >= 0 && y < d.Height
	}
	terrain := make(map[grid.Coord]grid.Terrain, len(d.Tiles))
	for _, tile := range d.Tiles {
		if !inBounds(tile.X, tile.Y) {
			return fmt.Errorf("%w: tile %d,%d out of bounds", ErrInvalidDefinition, tile.X, tile.Y)
		}
		t, valid := grid.ParseTerrain(tile.Terrain)
		if !valid {
			return fmt.Errorf("%w: unknown terrain %q at %d,%d", ErrInvalidDefinition, tile.Terrain, tile.X, tile.Y)
		}
		terrain[grid.Coord{X: tile.X, Y: tile.Y}] = t
	}
	for _, door := range d.Doors {
		if !inBounds(door.X, door.Y) {
			return fmt.Errorf("%w: door %d,%d out of bounds", ErrInvalidDefinition, door.X, door.Y)
		}
	}

	hasFlag := false
	for _, item := range d.Items {
		if !inBounds(item.X, item.Y) {
			return fmt.Errorf("%w: item %d,%d out of bounds", ErrInvalidDefinition, item.X, item.Y)
		}
		kind, valid := grid.ParseItemKind(item.Kind)
		if !valid {
			return fmt.Errorf("%w: unknown item kind %q", ErrInvalidDefinition, item.Kind)
		}
		if kind == grid.ItemFlag {
			hasFlag = true
		}
	}
	if mode == state.ModeCTF && !hasFlag {
		return fmt.Errorf("%w: capture-the-flag map has no flag", ErrInvalidDefinition)
	}

	seen := make(map[grid.Coord]bool, len(d.Spawns))
	for _, spawn := range d.Spawns {
		c := grid.Coord{X: spawn.X, Y: spawn.Y}
		if !inBounds(spawn.X, spawn.Y) {
			return fmt.Errorf("%w: spawn %d,%d out of bounds", ErrInvalidDefinition, spawn.X, spawn.Y)
		}
		if t, ok := terrain[c]; ok && t == grid.TerrainWall {
			return fmt.Errorf("%w: spawn %d,%d sits on a wall", ErrInvalidDefinition, spawn.X, spawn.Y)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate spawn %d,%d", ErrInvalidDefinition, spawn.X, spawn.Y)
		}
		seen[c] = true
	}
	return nil
}

// Game instantiates the aggregate for one match from a validated
// definition. Spawn coordinates are returned in definition order; the
// caller assigns them to players as they join.
func (d *Definition) Game(id string) (*state.Game, []grid.Coord, error) {
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}
	mode, _ := state.ParseMode(d.Mode)

	tiles := make([]grid.Tile, 0, len(d.Tiles))
	for _, tile := range d.Tiles {
		tiles = append(tiles, grid.Tile{
			Coord:   grid.Coord{X: tile.X, Y: tile.Y},
			Terrain: grid.Terrain(tile.Terrain),
		})
	}
	doors := make([]grid.Door, 0, len(d.Doors))
	for _, door := range d.Doors {
		doors = append(doors, grid.Door{
			Coord: grid.Coord{X: door.X, Y: door.Y},
			Open:  door.Open,
		})
	}
	items := make([]grid.Item, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, grid.Item{
			Coord: grid.Coord{X: item.X, Y: item.Y},
			Kind:  grid.ItemKind(item.Kind),
		})
	}

	board := grid.NewMap(d.Width, d.Height, tiles, doors, items)
	game := state.NewGame(id, mode, board)

	spawns := make([]grid.Coord, 0, len(d.Spawns))
	for _, spawn := range d.Spawns {
		spawns = append(spawns, grid.Coord{X: spawn.X, Y: spawn.Y})
	}
	return game, spawns, nil
}

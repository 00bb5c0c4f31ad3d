package mapload

import (
	"errors"
	"strings"
	"testing"

	"gridrush/server/internal/grid"
	"gridrush/server/internal/state"
)

const classicDoc = `{
	"name": "arena",
	"mode": "classic",
	"width": 6,
	"height": 4,
	"tiles": [
		{"x": 2, "y": 1, "terrain": "water"},
		{"x": 3, "y": 1, "terrain": "ice"},
		{"x": 4, "y": 1, "terrain": "wall"}
	],
	"doors": [{"x": 1, "y": 2, "open": false}],
	"items": [{"x": 5, "y": 3, "kind": "potion"}],
	"spawns": [{"x": 0, "y": 0}, {"x": 5, "y": 0}]
}`

func TestParseBuildsPlayableGame(t *testing.T) {
	def, err := Parse(strings.NewReader(classicDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	game, spawns, err := def.Game("m1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if game.Mode != state.ModeClassic {
		t.Fatalf("unexpected mode %s", game.Mode)
	}
	if got := game.Map.TerrainAt(grid.Coord{X: 2, Y: 1}); got != grid.TerrainWater {
		t.Fatalf("water tile lost, got %s", got)
	}
	if got := game.Map.TerrainAt(grid.Coord{X: 0, Y: 0}); got != grid.TerrainFloor {
		t.Fatalf("unlisted tile should default to floor, got %s", got)
	}
	if open, ok := game.Map.DoorAt(grid.Coord{X: 1, Y: 2}); !ok || open {
		t.Fatal("closed door lost")
	}
	if _, ok := game.Map.ItemAt(grid.Coord{X: 5, Y: 3}); !ok {
		t.Fatal("item lost")
	}
	if len(spawns) != 2 || (spawns[0] != grid.Coord{X: 0, Y: 0}) {
		t.Fatalf("unexpected spawns %v", spawns)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() Definition {
		return Definition{
			Name:   "arena",
			Mode:   "classic",
			Width:  4,
			Height: 4,
			Spawns: []SpawnDef{{X: 0, Y: 0}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"zero width", func(d *Definition) { d.Width = 0 }},
		{"bad mode", func(d *Definition) { d.Mode = "deathmatch" }},
		{"no spawns", func(d *Definition) { d.Spawns = nil }},
		{"tile out of bounds", func(d *Definition) {
			d.Tiles = []TileDef{{X: 9, Y: 0, Terrain: "floor"}}
		}},
		{"unknown terrain", func(d *Definition) {
			d.Tiles = []TileDef{{X: 1, Y: 1, Terrain: "lava"}}
		}},
		{"unknown item", func(d *Definition) {
			d.Items = []ItemDef{{X: 1, Y: 1, Kind: "sword"}}
		}},
		{"spawn on wall", func(d *Definition) {
			d.Tiles = []TileDef{{X: 0, Y: 0, Terrain: "wall"}}
		}},
		{"duplicate spawn", func(d *Definition) {
			d.Spawns = append(d.Spawns, SpawnDef{X: 0, Y: 0})
		}},
		{"ctf without flag", func(d *Definition) { d.Mode = "capture-the-flag" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := base()
			tt.mutate(&def)
			if err := def.Validate(); !errors.Is(err, ErrInvalidDefinition) {
				t.Fatalf("expected ErrInvalidDefinition, got %v", err)
			}
		})
	}
}

func TestCTFRequiresAndAcceptsFlag(t *testing.T) {
	def := Definition{
		Name:   "ctf",
		Mode:   "capture-the-flag",
		Width:  4,
		Height: 4,
		Items:  []ItemDef{{X: 2, Y: 2, Kind: "flag"}},
		Spawns: []SpawnDef{{X: 0, Y: 0}},
	}
	if err := def.Validate(); err != nil {
		t.Fatalf("flagged ctf map should validate: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	doc := `{"name": "x", "mode": "classic", "width": 2, "height": 2, "spawns": [{"x":0,"y":0}], "teleporters": []}`
	if _, err := Parse(strings.NewReader(doc)); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
}

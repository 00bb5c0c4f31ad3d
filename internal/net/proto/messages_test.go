package proto

import (
	"encoding/json"
	"testing"

	"gridrush/server/internal/grid"
	"gridrush/server/internal/state"
)

func TestSnapshotRendersGame(t *testing.T) {
	tiles := []grid.Tile{{Coord: grid.Coord{X: 2, Y: 2}, Terrain: grid.TerrainIce}}
	items := []grid.Item{{Coord: grid.Coord{X: 3, Y: 3}, Kind: grid.ItemPotion}}
	board := grid.NewMap(6, 6, tiles, nil, items)
	game := state.NewGame("m1", state.ModeCTF, board)
	game.TurnCount = 4

	p1 := state.NewPlayer("p1", "Ada", true)
	p1.Pos = grid.Coord{X: 0, Y: 0}
	p1.Spawn = p1.Pos
	p1.Inventory = []grid.ItemKind{grid.ItemIceTraction}
	p2 := state.NewPlayer("p2", "Brin", false)
	p2.Pos = grid.Coord{X: 5, Y: 5}
	p2.Observer = true
	game.Players = []*state.Player{p1, p2}

	msg := Snapshot("m1", "p1", game)

	if msg.Type != TypeJoined || msg.Ver != Version {
		t.Fatalf("unexpected envelope: type=%q ver=%d", msg.Type, msg.Ver)
	}
	if msg.MatchID != "m1" || msg.PlayerID != "p1" {
		t.Fatalf("unexpected identity: %+v", msg)
	}
	if msg.Mode != state.ModeCTF || msg.Turn != 4 {
		t.Fatalf("unexpected mode/turn: %+v", msg)
	}
	if msg.Board.Width != 6 || msg.Board.Height != 6 {
		t.Fatalf("unexpected board dims: %+v", msg.Board)
	}
	if len(msg.Board.Items) != 1 || msg.Board.Items[0].Kind != grid.ItemPotion {
		t.Fatalf("unexpected items: %+v", msg.Board.Items)
	}
	if len(msg.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(msg.Players))
	}

	ada := msg.Players[0]
	if ada.AttackDie != 6 || ada.DefenseDie != 4 {
		t.Fatalf("expected attack bonus die split, got %+v", ada)
	}
	if len(ada.Inventory) != 1 || ada.Inventory[0] != grid.ItemIceTraction {
		t.Fatalf("unexpected inventory: %+v", ada.Inventory)
	}
	if !msg.Players[1].Observer {
		t.Fatalf("expected observer flag to carry over")
	}
}

func TestSnapshotOmitsFloorTiles(t *testing.T) {
	tiles := []grid.Tile{
		{Coord: grid.Coord{X: 1, Y: 1}, Terrain: grid.TerrainWall},
		{Coord: grid.Coord{X: 2, Y: 1}, Terrain: grid.TerrainWater},
	}
	board := grid.NewMap(4, 4, tiles, nil, nil)
	game := state.NewGame("m1", state.ModeClassic, board)

	msg := Snapshot("m1", "p1", game)
	if len(msg.Board.Tiles) != 2 {
		t.Fatalf("expected only non-floor tiles, got %+v", msg.Board.Tiles)
	}
}

func TestClientMessageRoundTrip(t *testing.T) {
	raw := `{"ver":1,"type":"move","seq":9,"dest":{"x":4,"y":2}}`
	var msg ClientMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if msg.Type != TypeMove || msg.Seq != 9 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Dest == nil || msg.Dest.Coord() != (grid.Coord{X: 4, Y: 2}) {
		t.Fatalf("unexpected dest: %+v", msg.Dest)
	}
}

package checkers

import (
	"encoding/json"
	"fmt"
)

// Color identifies the two sides of a match. Dark moves toward row 7,
// Light toward row 0.
type Color int

const (
	Dark Color = iota
	Light
)

func (c Color) Opponent() Color {
	if c == Dark {
		return Light
	}
	return Dark
}

func (c Color) String() string {
	if c == Dark {
		return "dark"
	}
	return "light"
}

// MarshalJSON uses the single-letter wire codes the front-end expects.
func (c Color) MarshalJSON() ([]byte, error) {
	if c == Dark {
		return []byte(`"D"`), nil
	}
	return []byte(`"L"`), nil
}

// Piece occupies a board cell. A nil *Piece is an empty cell.
type Piece struct {
	Color Color
	King  bool
}

func (p *Piece) code() string {
	if p == nil {
		return ""
	}
	code := "D"
	if p.Color == Light {
		code = "L"
	}
	if p.King {
		code += "K"
	}
	return code
}

// Board is an 8x8 grid of cells.
type Board [8][8]*Piece

// MarshalJSON renders the board as a grid of piece codes
// ("D", "L", "DK", "LK") with null for empty cells.
func (b Board) MarshalJSON() ([]byte, error) {
	var grid [8][8]*string
	for i := range b {
		for j := range b[i] {
			if b[i][j] != nil {
				code := b[i][j].code()
				grid[i][j] = &code
			}
		}
	}
	return json.Marshal(grid)
}

// DefaultBoard returns the standard starting layout: dark men on rows 0-2,
// light men on rows 5-7, on alternating squares.
func DefaultBoard() Board {
	var b Board
	for row := 0; row < 3; row++ {
		for col := 0; col < 8; col++ {
			if (row+col)%2 == 1 {
				b[row][col] = &Piece{Color: Dark}
			}
		}
	}
	for row := 5; row < 8; row++ {
		for col := 0; col < 8; col++ {
			if (row+col)%2 == 1 {
				b[row][col] = &Piece{Color: Light}
			}
		}
	}
	return b
}

// Coordinate addresses a board cell. Valid rows and columns are 0-7.
type Coordinate struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

func (c Coordinate) valid() bool {
	return c.Row >= 0 && c.Row < 8 && c.Column >= 0 && c.Column < 8
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Column)
}

// MoveRequest asks to move the piece at From to To.
type MoveRequest struct {
	From Coordinate `json:"from"`
	To   Coordinate `json:"to"`
}

// MoveState reports what a successful move did.
type MoveState string

const (
	// MoveDone is an ordinary completed move; the turn passes.
	MoveDone MoveState = "done"
	// MovePromoted means the moved piece landed on an edge row; the turn passes.
	MovePromoted MoveState = "promoted"
	// MoveJumping means the capture chain must continue with the same piece;
	// the turn does not pass.
	MoveJumping MoveState = "jumping"
	// MoveWin means the mover captured the opponent's last piece.
	MoveWin MoveState = "win"
)

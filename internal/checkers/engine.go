package checkers

import (
	"errors"
	"fmt"
)

// ErrIllegalMove rejects a move that violates the rules. The game state is
// unchanged when it is returned.
var ErrIllegalMove = errors.New("illegal move")

// ErrWrongTurn rejects a move by the participant who does not own the
// current turn.
var ErrWrongTurn = errors.New("not this player's turn")

// Game is a match session: the board plus the two participant identities
// and the turn state. It is not safe for concurrent use; callers serialize
// access (the room store holds a lock around every move).
type Game struct {
	board        Board
	currentColor Color
	darkID       string
	lightID      string

	// jumpingFrom records the landing square of a capture whose chain must
	// continue. While set, only moves from that square are legal.
	jumpingFrom *Coordinate
}

// NewGame starts a match from the standard opening layout. The first color
// to move is chosen by the room's negotiation.
func NewGame(first Color, darkID, lightID string) *Game {
	return NewGameFromBoard(first, darkID, lightID, DefaultBoard())
}

// NewGameFromBoard starts a match from an arbitrary position.
func NewGameFromBoard(first Color, darkID, lightID string, board Board) *Game {
	return &Game{
		board:        board,
		currentColor: first,
		darkID:       darkID,
		lightID:      lightID,
	}
}

func (g *Game) CurrentColor() Color { return g.currentColor }
func (g *Game) DarkID() string      { return g.darkID }
func (g *Game) LightID() string     { return g.lightID }

// Board returns a copy of the current position.
func (g *Game) Board() Board { return g.board }

// JumpingFrom reports the square a mid-chain capture must continue from,
// or nil when the mover is free to pick any piece.
func (g *Game) JumpingFrom() *Coordinate {
	if g.jumpingFrom == nil {
		return nil
	}
	c := *g.jumpingFrom
	return &c
}

// OpponentOf returns the other participant's identity.
func (g *Game) OpponentOf(userID string) string {
	if userID == g.darkID {
		return g.lightID
	}
	return g.darkID
}

// MoveBy applies a move on behalf of a participant, rejecting it with
// ErrWrongTurn when that participant does not own the current turn.
func (g *Game) MoveBy(userID string, req MoveRequest) (MoveState, error) {
	owner := g.darkID
	if g.currentColor == Light {
		owner = g.lightID
	}
	if userID != owner {
		return "", ErrWrongTurn
	}
	return g.Move(req)
}

// Move applies a move for the current color. Captures are mandatory: a
// simple move is legal only when no piece of the current color can capture
// anywhere on the board. A capture that can be continued by the same piece
// returns MoveJumping and keeps the turn. Rejected moves return
// ErrIllegalMove and leave the game untouched.
func (g *Game) Move(req MoveRequest) (MoveState, error) {
	if g.jumpingFrom != nil && req.From != *g.jumpingFrom {
		return "", fmt.Errorf("%w: capture chain must continue from %v", ErrIllegalMove, *g.jumpingFrom)
	}
	if !req.From.valid() || !req.To.valid() {
		return "", fmt.Errorf("%w: coordinate off the board", ErrIllegalMove)
	}
	if g.board[req.To.Row][req.To.Column] != nil {
		return "", fmt.Errorf("%w: destination %v is occupied", ErrIllegalMove, req.To)
	}

	piece := g.board[req.From.Row][req.From.Column]
	if piece == nil || piece.Color != g.currentColor {
		return "", fmt.Errorf("%w: no %v piece at %v", ErrIllegalMove, g.currentColor, req.From)
	}

	if !piece.King {
		if g.currentColor == Dark && req.From.Row > req.To.Row {
			return "", fmt.Errorf("%w: men cannot move backward", ErrIllegalMove)
		}
		if g.currentColor == Light && req.From.Row < req.To.Row {
			return "", fmt.Errorf("%w: men cannot move backward", ErrIllegalMove)
		}
	}

	rowVector := req.To.Row - req.From.Row
	columnVector := req.To.Column - req.From.Column
	distance := abs(rowVector)

	if distance != abs(columnVector) {
		return "", fmt.Errorf("%w: move is not diagonal", ErrIllegalMove)
	}

	jumped := distance == 2

	switch {
	case jumped:
		mid := Coordinate{Row: req.From.Row + rowVector/2, Column: req.From.Column + columnVector/2}
		jumpedPiece := g.board[mid.Row][mid.Column]
		if jumpedPiece == nil || jumpedPiece.Color != g.currentColor.Opponent() {
			return "", fmt.Errorf("%w: no opponent piece to capture at %v", ErrIllegalMove, mid)
		}
		g.board[mid.Row][mid.Column] = nil
	case distance != 1:
		return "", fmt.Errorf("%w: move distance must be 1 or 2", ErrIllegalMove)
	default:
		// Captures are mandatory for the whole side, not just this piece,
		// so every square is scanned before a simple move is allowed.
		for row := 0; row < 8; row++ {
			for col := 0; col < 8; col++ {
				if g.canJumpFrom(Coordinate{Row: row, Column: col}) {
					return "", fmt.Errorf("%w: a capture is available and must be taken", ErrIllegalMove)
				}
			}
		}
	}

	isPromotion := req.To.Row == 0 || req.To.Row == 7
	if isPromotion && !piece.King {
		piece = &Piece{Color: piece.Color, King: true}
	}
	g.board[req.To.Row][req.To.Column] = piece
	g.board[req.From.Row][req.From.Column] = nil

	if g.isWon() {
		return MoveWin, nil
	}

	if jumped {
		if !isPromotion && g.canJumpFrom(req.To) {
			to := req.To
			g.jumpingFrom = &to
			return MoveJumping, nil
		}
		g.jumpingFrom = nil
	}

	g.currentColor = g.currentColor.Opponent()

	if isPromotion {
		return MovePromoted, nil
	}
	return MoveDone, nil
}

// isWon reports whether only one color remains on the board.
func (g *Game) isWon() bool {
	var sawLight, sawDark bool
	for row := range g.board {
		for _, piece := range g.board[row] {
			if piece == nil {
				continue
			}
			if piece.Color == Light {
				sawLight = true
			} else {
				sawDark = true
			}
			if sawLight && sawDark {
				return false
			}
		}
	}
	return true
}

// canJumpFrom reports whether the current color's piece at the given square
// has at least one legal capture.
func (g *Game) canJumpFrom(from Coordinate) bool {
	origin := g.board[from.Row][from.Column]
	if origin == nil || origin.Color != g.currentColor {
		return false
	}

	var destinations []Coordinate
	switch {
	case origin.King:
		destinations = []Coordinate{
			{from.Row - 2, from.Column - 2},
			{from.Row - 2, from.Column + 2},
			{from.Row + 2, from.Column - 2},
			{from.Row + 2, from.Column + 2},
		}
	case origin.Color == Light:
		destinations = []Coordinate{
			{from.Row - 2, from.Column - 2},
			{from.Row - 2, from.Column + 2},
		}
	default:
		destinations = []Coordinate{
			{from.Row + 2, from.Column - 2},
			{from.Row + 2, from.Column + 2},
		}
	}

	for _, dest := range destinations {
		if !dest.valid() || g.board[dest.Row][dest.Column] != nil {
			continue
		}
		mid := g.board[from.Row+(dest.Row-from.Row)/2][from.Column+(dest.Column-from.Column)/2]
		if mid != nil && mid.Color != origin.Color {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

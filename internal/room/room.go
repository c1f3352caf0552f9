// Package room implements the matchmaking lifecycle: a challenger waits for
// an opponent, the two negotiate who moves first, they play, and the loop
// repeats until someone leaves or times out.
package room

import (
	"github.com/spencerturkel/online-checkers-platform-api/internal/checkers"
)

// User is a participant in a Room. Inactivity timers are tracked by the
// Store, not here, so a User can be projected to clients as-is.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Decision is a participant's vote for who moves first.
type Decision string

const (
	DecisionChallenger Decision = "challenger"
	DecisionOpponent   Decision = "opponent"
	DecisionRandom     Decision = "random"
)

// ParseDecision validates a wire decision value.
func ParseDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case DecisionChallenger, DecisionOpponent, DecisionRandom:
		return Decision(s), true
	}
	return "", false
}

// State is the Room lifecycle state. Exactly one of the variant structs is
// active at a time; fields that don't apply to a state don't exist on it.
type State interface {
	stateName() string
}

// Waiting holds a lone challenger. The room is joinable by invitation token,
// or by anyone when Public is set.
type Waiting struct {
	Public          bool
	InvitationToken string
}

// Deciding holds both participants while they vote on who moves first.
type Deciding struct {
	Opponent           User
	ChallengerDecision *Decision
	OpponentDecision   *Decision

	// PreviousWinnerID is set when this negotiation follows a finished
	// game; it is informational only and does not affect turn order.
	PreviousWinnerID string
}

// Playing holds an active match.
type Playing struct {
	Opponent User
	Game     *checkers.Game
}

func (*Waiting) stateName() string  { return "waiting" }
func (*Deciding) stateName() string { return "deciding" }
func (*Playing) stateName() string  { return "playing" }

// Room is the shared session of one or two users. The challenger is whoever
// created the room or inherited it when the previous challenger left.
type Room struct {
	Challenger User
	State      State
}

// opponent returns the non-challenger participant, if the state has one.
func (r *Room) opponent() (User, bool) {
	switch st := r.State.(type) {
	case *Deciding:
		return st.Opponent, true
	case *Playing:
		return st.Opponent, true
	}
	return User{}, false
}

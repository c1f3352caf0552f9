package room

import "github.com/spencerturkel/online-checkers-platform-api/internal/checkers"

// Snapshot is the public projection of a room, shaped for the HTTP API and
// the websocket feed. Decision fields serialize as explicit nulls while
// unset so clients can distinguish "not voted" from an absent field.
type Snapshot struct {
	Challenger User        `json:"challenger"`
	State      interface{} `json:"state"`
}

type waitingView struct {
	Name            string `json:"name"`
	Public          bool   `json:"public"`
	InvitationToken string `json:"invitationToken"`
}

type decidingView struct {
	Name               string    `json:"name"`
	Opponent           User      `json:"opponent"`
	ChallengerDecision *Decision `json:"challengerDecision"`
	OpponentDecision   *Decision `json:"opponentDecision"`
	PreviousWinnerID   string    `json:"previousWinnerId,omitempty"`
}

type playingView struct {
	Name     string   `json:"name"`
	Opponent User     `json:"opponent"`
	Game     gameView `json:"game"`
}

type gameView struct {
	Board        checkers.Board       `json:"board"`
	CurrentColor checkers.Color       `json:"currentColor"`
	DarkID       string               `json:"darkId"`
	LightID      string               `json:"lightId"`
	JumpingFrom  *checkers.Coordinate `json:"jumpingFrom"`
}

func snapshotOf(r *Room) *Snapshot {
	snap := &Snapshot{Challenger: r.Challenger}
	switch st := r.State.(type) {
	case *Waiting:
		snap.State = waitingView{
			Name:            st.stateName(),
			Public:          st.Public,
			InvitationToken: st.InvitationToken,
		}
	case *Deciding:
		snap.State = decidingView{
			Name:               st.stateName(),
			Opponent:           st.Opponent,
			ChallengerDecision: st.ChallengerDecision,
			OpponentDecision:   st.OpponentDecision,
			PreviousWinnerID:   st.PreviousWinnerID,
		}
	case *Playing:
		snap.State = playingView{
			Name:     st.stateName(),
			Opponent: st.Opponent,
			Game: gameView{
				Board:        st.Game.Board(),
				CurrentColor: st.Game.CurrentColor(),
				DarkID:       st.Game.DarkID(),
				LightID:      st.Game.LightID(),
				JumpingFrom:  st.Game.JumpingFrom(),
			},
		}
	}
	return snap
}

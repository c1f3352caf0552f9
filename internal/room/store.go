package room

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spencerturkel/online-checkers-platform-api/internal/checkers"
)

var (
	// ErrNoRoom means the requester has no room; reported as not-found.
	ErrNoRoom = errors.New("user has no room")
	// ErrNoMatch means no joinable room matched a join request.
	ErrNoMatch = errors.New("no joinable room")
	// ErrHasRoom rejects a targeted join by a user who already has a room.
	ErrHasRoom = errors.New("user already has a room")
	// ErrWrongState rejects an action that is invalid for the room's state.
	ErrWrongState = errors.New("action not allowed in the room's current state")
)

// MoveOutcome reports a successful move. WinnerID and LoserID are set only
// when State is MoveWin, so the caller can record the result.
type MoveOutcome struct {
	State    checkers.MoveState
	WinnerID string
	LoserID  string
}

// Store is the process-wide registry of rooms keyed by user identity, plus
// the inactivity timers that evict idle users. A single mutex guards the
// registry map and every room mutation: room operations are short and
// CPU-only, and join must scan-and-claim atomically across all rooms.
// Collaborator calls (email, win/loss recording) happen outside the lock.
type Store struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	timers map[string]*time.Timer

	// timeout is the sliding inactivity window; any request by a user who
	// has a room re-arms their timer.
	timeout time.Duration

	coinFlip func() bool
	onChange func(userIDs []string)
}

// Option configures a Store.
type Option func(*Store)

// WithCoinFlip replaces the random first-mover coin flip; tests use this to
// make the "random" decision deterministic.
func WithCoinFlip(flip func() bool) Option {
	return func(s *Store) { s.coinFlip = flip }
}

// NewStore creates an empty registry with the given inactivity timeout.
func NewStore(timeout time.Duration, opts ...Option) *Store {
	s := &Store{
		rooms:   make(map[string]*Room),
		timers:  make(map[string]*time.Timer),
		timeout: timeout,
		coinFlip: func() bool {
			return rand.Intn(2) == 0
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOnChange registers a callback invoked, outside the store lock, with
// the ids of users whose room changed. The websocket feed subscribes here.
func (s *Store) SetOnChange(fn func(userIDs []string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Close stops all inactivity timers. Pending evictions that already fired
// are no-ops once their timer is removed from the table.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Create makes a private Waiting room for the user. It is idempotent: a
// user who already has a room gets a refreshed timer and nothing else.
func (s *Store) Create(u User) error {
	s.mu.Lock()
	if s.rooms[u.ID] != nil {
		s.armTimerLocked(u.ID)
		s.mu.Unlock()
		log.Debug().Str("user_id", u.ID).Msg("room already created")
		return nil
	}

	s.rooms[u.ID] = &Room{
		Challenger: u,
		State:      &Waiting{InvitationToken: uuid.NewString()},
	}
	s.armTimerLocked(u.ID)
	s.mu.Unlock()

	log.Info().Str("user_id", u.ID).Msg("created room")
	s.changed([]string{u.ID})
	return nil
}

// Join matches the user with a Waiting room: the room whose invitation
// token equals the supplied token, or any public room when the token is
// empty. A user who already has a room succeeds as a no-op unless they
// targeted a specific room, which is ErrHasRoom.
func (s *Store) Join(u User, token string) error {
	s.mu.Lock()
	if s.rooms[u.ID] != nil {
		s.armTimerLocked(u.ID)
		s.mu.Unlock()
		if token != "" {
			log.Info().Str("user_id", u.ID).Msg("targeted join while already in a room")
			return ErrHasRoom
		}
		log.Info().Str("user_id", u.ID).Msg("join while already in a room")
		return nil
	}

	for _, r := range s.rooms {
		w, ok := r.State.(*Waiting)
		if !ok {
			continue
		}
		if token != "" {
			if w.InvitationToken != token {
				continue
			}
		} else if !w.Public {
			continue
		}

		r.State = &Deciding{Opponent: u}
		s.rooms[u.ID] = r
		challengerID := r.Challenger.ID
		s.mu.Unlock()

		log.Info().Str("user_id", u.ID).Str("challenger_id", challengerID).Msg("joined room")
		s.changed([]string{challengerID, u.ID})
		return nil
	}

	s.mu.Unlock()
	return ErrNoMatch
}

// Invite rotates the room's invitation token and returns the new token.
// Only legal while Waiting. Sending the invitation email is the caller's
// concern; it must happen after this returns so no I/O runs under the lock.
func (s *Store) Invite(userID string) (string, error) {
	s.mu.Lock()
	r, err := s.requireRoomLocked(userID)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	w, ok := r.State.(*Waiting)
	if !ok {
		s.mu.Unlock()
		log.Info().Str("user_id", userID).Msg("invite from non-waiting room")
		return "", ErrWrongState
	}
	w.InvitationToken = uuid.NewString()
	token := w.InvitationToken
	s.mu.Unlock()

	s.changed([]string{userID})
	return token, nil
}

// Publish opens the user's Waiting room to the public.
func (s *Store) Publish(userID string) error {
	return s.setPublic(userID, true)
}

// Privatize makes the user's Waiting room invitation-only.
func (s *Store) Privatize(userID string) error {
	return s.setPublic(userID, false)
}

func (s *Store) setPublic(userID string, public bool) error {
	s.mu.Lock()
	r, err := s.requireRoomLocked(userID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	w, ok := r.State.(*Waiting)
	if !ok {
		s.mu.Unlock()
		return ErrWrongState
	}
	w.Public = public
	s.mu.Unlock()

	s.changed([]string{userID})
	return nil
}

// Decide records the user's vote for who moves first. When both votes are
// present and agree, the room transitions to Playing: the agreed side takes
// Dark and moves first (a coin flip for "random").
func (s *Store) Decide(userID string, d Decision) error {
	s.mu.Lock()
	r, err := s.requireRoomLocked(userID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	st, ok := r.State.(*Deciding)
	if !ok {
		s.mu.Unlock()
		log.Info().Str("user_id", userID).Msg("decision on non-deciding room")
		return ErrWrongState
	}

	if userID == r.Challenger.ID {
		st.ChallengerDecision = &d
	} else {
		st.OpponentDecision = &d
	}

	var started bool
	if st.ChallengerDecision != nil && st.OpponentDecision != nil &&
		*st.ChallengerDecision == *st.OpponentDecision {
		challengerIsDark := d == DecisionChallenger
		if d == DecisionRandom {
			challengerIsDark = s.coinFlip()
		}

		darkID, lightID := r.Challenger.ID, st.Opponent.ID
		if !challengerIsDark {
			darkID, lightID = st.Opponent.ID, r.Challenger.ID
		}
		r.State = &Playing{
			Opponent: st.Opponent,
			Game:     checkers.NewGame(checkers.Dark, darkID, lightID),
		}
		started = true
	}
	challengerID, opponentID := r.Challenger.ID, st.Opponent.ID
	s.mu.Unlock()

	if started {
		log.Info().
			Str("challenger_id", challengerID).
			Str("opponent_id", opponentID).
			Msg("game started")
	}
	s.changed([]string{challengerID, opponentID})
	return nil
}

// ClearDecision resets the user's first-mover vote.
func (s *Store) ClearDecision(userID string) error {
	s.mu.Lock()
	r, err := s.requireRoomLocked(userID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	st, ok := r.State.(*Deciding)
	if !ok {
		s.mu.Unlock()
		return ErrWrongState
	}
	if userID == r.Challenger.ID {
		st.ChallengerDecision = nil
	} else {
		st.OpponentDecision = nil
	}
	ids := []string{r.Challenger.ID, st.Opponent.ID}
	s.mu.Unlock()

	s.changed(ids)
	return nil
}

// Move applies a move in the user's Playing room. A winning move sends the
// room back to Deciding with the winner recorded; the returned outcome
// carries the winner and loser ids so the caller can dispatch win/loss
// recording after this returns.
func (s *Store) Move(userID string, req checkers.MoveRequest) (MoveOutcome, error) {
	s.mu.Lock()
	r, err := s.requireRoomLocked(userID)
	if err != nil {
		s.mu.Unlock()
		return MoveOutcome{}, err
	}
	st, ok := r.State.(*Playing)
	if !ok {
		s.mu.Unlock()
		log.Info().Str("user_id", userID).Msg("move on non-playing room")
		return MoveOutcome{}, ErrWrongState
	}

	state, err := st.Game.MoveBy(userID, req)
	if err != nil {
		s.mu.Unlock()
		return MoveOutcome{}, err
	}

	outcome := MoveOutcome{State: state}
	if state == checkers.MoveWin {
		outcome.WinnerID = userID
		outcome.LoserID = st.Game.OpponentOf(userID)
		r.State = &Deciding{
			Opponent:         st.Opponent,
			PreviousWinnerID: userID,
		}
	}
	ids := []string{r.Challenger.ID, st.Opponent.ID}
	s.mu.Unlock()

	if state == checkers.MoveWin {
		log.Info().
			Str("winner_id", outcome.WinnerID).
			Str("loser_id", outcome.LoserID).
			Msg("game won")
	}
	s.changed(ids)
	return outcome, nil
}

// Leave removes the user from their room. A Waiting room is discarded; in
// any other state the remaining participant becomes the challenger of a
// fresh private Waiting room with a new invitation token.
func (s *Store) Leave(userID string) error {
	s.mu.Lock()
	if s.rooms[userID] == nil {
		s.mu.Unlock()
		return ErrNoRoom
	}
	ids := s.removeLocked(userID)
	s.mu.Unlock()

	s.changed(ids)
	return nil
}

// Snapshot returns the public projection of the user's room.
func (s *Store) Snapshot(userID string) (*Snapshot, error) {
	s.mu.Lock()
	r, err := s.requireRoomLocked(userID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snap := snapshotOf(r)
	s.mu.Unlock()
	return snap, nil
}

// Peek is Snapshot without the activity side effect: it does not refresh
// the user's inactivity timer. The websocket feed reads rooms this way so
// that other users' actions don't keep an idle user alive.
func (s *Store) Peek(userID string) (*Snapshot, error) {
	s.mu.Lock()
	r := s.rooms[userID]
	if r == nil {
		s.mu.Unlock()
		return nil, ErrNoRoom
	}
	snap := snapshotOf(r)
	s.mu.Unlock()
	return snap, nil
}

// requireRoomLocked looks up the requester's room and refreshes their
// inactivity timer; every operation except Create and Join goes through it.
func (s *Store) requireRoomLocked(userID string) (*Room, error) {
	r := s.rooms[userID]
	if r == nil {
		log.Debug().Str("user_id", userID).Msg("no room for user")
		return nil, ErrNoRoom
	}
	s.armTimerLocked(userID)
	return r, nil
}

// armTimerLocked (re)starts the user's eviction timer. The fired callback
// verifies it is still the current timer before evicting, so a timer that
// fires concurrently with a refresh cannot evict a just-active user.
func (s *Store) armTimerLocked(userID string) {
	if t, ok := s.timers[userID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(s.timeout, func() {
		s.mu.Lock()
		if s.timers[userID] != t {
			s.mu.Unlock()
			return
		}
		log.Info().Str("user_id", userID).Msg("timing out user")
		ids := s.removeLocked(userID)
		s.mu.Unlock()
		s.changed(ids)
	})
	s.timers[userID] = t
}

func (s *Store) cancelTimerLocked(userID string) {
	if t, ok := s.timers[userID]; ok {
		t.Stop()
		delete(s.timers, userID)
	}
}

// removeLocked detaches the user from their room and returns the ids of
// everyone whose view changed. The survivor of a two-user room keeps the
// room as its challenger but loses their timer until they next interact.
func (s *Store) removeLocked(userID string) []string {
	r := s.rooms[userID]
	if r == nil {
		return nil
	}

	changed := []string{userID}
	if _, waiting := r.State.(*Waiting); !waiting {
		opp, _ := r.opponent()
		if opp.ID != userID {
			r.Challenger = opp
			log.Info().Str("user_id", opp.ID).Msg("user became challenger")
		}
		survivor := r.Challenger
		s.cancelTimerLocked(survivor.ID)
		r.State = &Waiting{InvitationToken: uuid.NewString()}
		changed = append(changed, survivor.ID)
	}

	delete(s.rooms, userID)
	s.cancelTimerLocked(userID)
	log.Info().Str("user_id", userID).Msg("removed user from room")
	return changed
}

func (s *Store) changed(ids []string) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil && len(ids) > 0 {
		fn(ids)
	}
}

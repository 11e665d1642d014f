// Package session sequences one hunter attempt: pay, fetch challenges,
// play the rounds, verify, and write the outcome back to the ledger.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/http/dto"
	"github.com/moneypot/verifier/internal/ledger"
	"github.com/moneypot/verifier/internal/models"
)

type State string

const (
	StateIdle              State = "idle"
	StatePaying            State = "paying"
	StateFetchingChallenge State = "fetching_challenge"
	StatePlaying           State = "playing"
	StateVerifying         State = "verifying"
	StateWon               State = "won"
	StateLost              State = "lost"
)

var transitions = map[State][]State{
	StateIdle:              {StatePaying},
	StatePaying:            {StateFetchingChallenge, StateIdle},
	StateFetchingChallenge: {StatePlaying, StateIdle},
	StatePlaying:           {StatePlaying, StateVerifying},
	StateVerifying:         {StateWon, StateLost},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	ErrIllegalTransition = errors.New("illegal session transition")
	ErrFinished          = errors.New("session finished")
)

type Ledger interface {
	AttemptPot(ctx context.Context, potID, hunter string) (*ledger.AttemptTicket, error)
	RecordAttemptOutcome(ctx context.Context, o ledger.Outcome) error
}

type Verifier interface {
	GetChallenges(ctx context.Context, attemptID, hunter string) (*dto.AuthenticateOptionsResponse, error)
	Verify(ctx context.Context, attemptID string, solutions []string) (*dto.AuthenticateVerifyResponse, error)
}

// Session is one attempt on one pot. Won and lost are final; a retry needs a new Session.
type Session struct {
	mu       sync.Mutex
	ledger   Ledger
	verifier Verifier
	log      *zap.Logger

	potID  string
	hunter string

	state      State
	attemptID  string
	difficulty int
	rounds     []models.Challenge
	moves      []string
	token      string

	// OnTransition, when set, is called after every state change with the
	// session lock held. It must not call back into the Session.
	OnTransition func(from, to State)
}

func New(potID, hunter string, l Ledger, v Verifier, log *zap.Logger) *Session {
	return &Session{
		ledger:   l,
		verifier: v,
		log:      log.With(zap.String("pot_id", potID)),
		potID:    potID,
		hunter:   hunter,
		state:    StateIdle,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) AttemptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptID
}

func (s *Session) Difficulty() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.difficulty
}

func (s *Session) to(next State) error {
	if !CanTransition(s.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, next)
	}
	prev := s.state
	s.state = next
	s.log.Debug("session transition", zap.String("from", string(prev)), zap.String("to", string(next)))
	if s.OnTransition != nil {
		s.OnTransition(prev, next)
	}
	return nil
}

// Start pays the entry fee and fetches the challenge rounds. Any failure
// drops the session back to idle; the fee is not refunded.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.to(StatePaying); err != nil {
		return err
	}
	ticket, err := s.ledger.AttemptPot(ctx, s.potID, s.hunter)
	if err != nil {
		s.abort()
		return fmt.Errorf("pay entry fee: %w", err)
	}
	s.attemptID = ticket.AttemptID
	s.difficulty = ticket.Difficulty
	s.log = s.log.With(zap.String("attempt_id", s.attemptID))

	if err := s.to(StateFetchingChallenge); err != nil {
		return err
	}
	set, err := s.verifier.GetChallenges(ctx, s.attemptID, s.hunter)
	if err != nil {
		s.abort()
		return fmt.Errorf("fetch challenges: %w", err)
	}
	if s.difficulty == 0 {
		s.difficulty = len(set.Challenges)
	}
	if s.difficulty == 0 || len(set.Challenges) != s.difficulty {
		s.abort()
		return fmt.Errorf("fetch challenges: got %d rounds for difficulty %d", len(set.Challenges), s.difficulty)
	}
	s.rounds = set.Challenges
	s.moves = make([]string, 0, s.difficulty)

	return s.to(StatePlaying)
}

func (s *Session) abort() {
	_ = s.to(StateIdle)
}

// Round returns the index and challenge the hunter is looking at.
func (s *Session) Round() (int, models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlaying {
		return 0, models.Challenge{}, fmt.Errorf("%w: no round in state %s", ErrIllegalTransition, s.state)
	}
	i := len(s.moves)
	return i, s.rounds[i], nil
}

// SubmitMove records the answer for the current round. The move for the
// last round triggers verification and the ledger write-back.
func (s *Session) SubmitMove(ctx context.Context, move string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateWon || s.state == StateLost {
		return s.state, ErrFinished
	}
	if s.state != StatePlaying {
		return s.state, fmt.Errorf("%w: move in state %s", ErrIllegalTransition, s.state)
	}
	d, err := models.ParseDirection(move)
	if err != nil {
		return s.state, err
	}

	s.moves = append(s.moves, string(d))
	if len(s.moves) < s.difficulty {
		err := s.to(StatePlaying)
		return s.state, err
	}

	if err := s.to(StateVerifying); err != nil {
		return s.state, err
	}
	return s.verify(ctx)
}

func (s *Session) verify(ctx context.Context) (State, error) {
	verdict, err := s.verifier.Verify(ctx, s.attemptID, s.moves)
	if err != nil {
		_ = s.to(StateLost)
		return s.state, fmt.Errorf("verify: %w", err)
	}

	next := StateLost
	if verdict.Success {
		next = StateWon
	}
	if err := s.to(next); err != nil {
		return s.state, err
	}
	s.token = verdict.OutcomeToken

	err = s.ledger.RecordAttemptOutcome(ctx, ledger.Outcome{
		AttemptID:    s.attemptID,
		PotID:        s.potID,
		Success:      verdict.Success,
		OutcomeToken: verdict.OutcomeToken,
	})
	if err != nil {
		s.log.Warn("outcome write-back failed", zap.Error(err))
		return s.state, fmt.Errorf("record attempt outcome: %w", err)
	}
	return s.state, nil
}

// OutcomeToken is the signed verdict, set once the session is won or lost.
func (s *Session) OutcomeToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

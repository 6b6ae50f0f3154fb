package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaminalder/codex-connect4/internal/domain"
	"go.uber.org/zap"
)

// Errors exposed by the service layer.
var (
	ErrNotFound    = errors.New("game not found")
	ErrNotYourTurn = errors.New("not your turn")
	ErrNotAPlayer  = errors.New("not a player")
)

// GameState is a copy of one session handed out to callers.
type GameState struct {
	ID      string
	Game    domain.Snapshot
	Red     string
	Yellow  string
	Created time.Time
	Updated time.Time
}

// session is the in-memory state tracked per game. Its engine is only touched
// while Service.mu is held.
type session struct {
	id      string
	game    *domain.Game
	red     string
	yellow  string
	created time.Time
	updated time.Time
}

func (gs *session) state() GameState {
	return GameState{
		ID:      gs.id,
		Game:    gs.game.Snapshot(),
		Red:     gs.red,
		Yellow:  gs.yellow,
		Created: gs.created,
		Updated: gs.updated,
	}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send reports false when the subscriber's buffer is full.
func (s *subscriber) send(b []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- b:
		return true
	default:
		return false
	}
}

// Option configures a Service.
type Option func(*Service)

// WithRenderer sets the broadcast renderer.
func WithRenderer(renderer func(GameState) []byte) Option {
	return func(s *Service) {
		if renderer != nil {
			s.render = renderer
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithGameConfig sets the rules every new game is created with.
func WithGameConfig(cfg domain.Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithHotseat lets the first visitor hold both colours, as when two people
// share one screen.
func WithHotseat(on bool) Option {
	return func(s *Service) { s.hotseat = on }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service manages games and subscribers.
type Service struct {
	mu      sync.Mutex
	games   map[string]*session
	subs    map[string]map[*subscriber]struct{}
	render  func(GameState) []byte
	log     *zap.Logger
	cfg     domain.Config
	hotseat bool
	now     func() time.Time
}

func nopRender(GameState) []byte { return nil }

// NewService creates a service; without options it renders nothing, logs
// nothing and plays on the default board.
func NewService(opts ...Option) *Service {
	s := &Service{
		games:  make(map[string]*session),
		subs:   make(map[string]map[*subscriber]struct{}),
		render: nopRender,
		log:    zap.NewNop(),
		cfg:    domain.DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceWithRenderer allows injecting a renderer for broadcast payloads.
func NewServiceWithRenderer(renderer func(GameState) []byte, opts ...Option) *Service {
	return NewService(append(opts, WithRenderer(renderer))...)
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(GameState) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = nopRender
		return
	}
	s.render = renderer
}

// CreateGame creates and registers a new game.
func (s *Service) CreateGame() (*GameState, error) {
	g, err := domain.NewWithConfig(s.cfg)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	gs := &session{id: uuid.NewString(), game: g, created: now, updated: now}
	s.games[gs.id] = gs
	s.log.Info("game created", zap.String("game_id", gs.id),
		zap.Int("columns", s.cfg.Columns), zap.Int("rows", s.cfg.Rows),
		zap.Int("connect", s.cfg.ConnectLength))
	st := gs.state()
	return &st, nil
}

// Get returns a copy of the game state if present.
func (s *Service) Get(id string) (*GameState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.games[id]
	if !ok {
		return nil, false
	}
	st := gs.state()
	return &st, true
}

// Join assigns a seat to the player if available; returns Empty for spectators.
// In hotseat mode the first player takes both seats.
func (s *Service) Join(id, playerID string) (domain.Cell, *GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.games[id]
	if !ok {
		return domain.Empty, nil, ErrNotFound
	}
	side := domain.Empty
	switch {
	case gs.red == "" || gs.red == playerID:
		gs.red = playerID
		side = domain.Red
		if s.hotseat {
			gs.yellow = playerID
		}
	case gs.yellow == "" || gs.yellow == playerID:
		gs.yellow = playerID
		side = domain.Yellow
	}
	gs.updated = s.now()
	st := gs.state()
	return side, &st, nil
}

// seated checks that playerID holds a seat; with turn set it also checks that
// the seat is the one to move.
func seated(gs *session, playerID string, turn bool) error {
	isRed := gs.red != "" && gs.red == playerID
	isYellow := gs.yellow != "" && gs.yellow == playerID
	if !isRed && !isYellow {
		return ErrNotAPlayer
	}
	if !turn || (isRed && isYellow) || gs.game.Status().Over() {
		return nil
	}
	if (gs.game.Turn() == domain.Red) != isRed {
		return ErrNotYourTurn
	}
	return nil
}

// Play validates seat and turn, drops a piece, updates timestamps, and broadcasts.
func (s *Service) Play(id, playerID string, column int) (*GameState, error) {
	return s.command(id, playerID, true, func(gs *session) error {
		m, err := gs.game.Play(column)
		if err != nil {
			return err
		}
		s.log.Debug("move applied", zap.String("game_id", gs.id),
			zap.Stringer("player", m.Player), zap.Int("column", m.Column), zap.Int("row", m.Row))
		if st := gs.game.Status(); st.Over() {
			s.log.Info("game finished", zap.String("game_id", gs.id),
				zap.Stringer("outcome", st.Outcome), zap.Stringer("winner", st.Winner),
				zap.Int("moves", len(gs.game.Moves())))
		}
		return nil
	})
}

// Rewind returns the game to the position after move index, discarding the rest.
func (s *Service) Rewind(id, playerID string, index int) (*GameState, error) {
	return s.command(id, playerID, false, func(gs *session) error {
		if err := gs.game.UndoToMove(index); err != nil {
			return err
		}
		s.log.Info("game rewound", zap.String("game_id", gs.id), zap.Int("index", index))
		return nil
	})
}

// Restart clears the board of a game.
func (s *Service) Restart(id, playerID string) (*GameState, error) {
	return s.command(id, playerID, false, func(gs *session) error {
		gs.game.Reset()
		s.log.Info("game restarted", zap.String("game_id", gs.id))
		return nil
	})
}

// command runs fn against a seated player's game and fans the result out.
func (s *Service) command(id, playerID string, turn bool, fn func(*session) error) (*GameState, error) {
	s.mu.Lock()
	gs, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if err := seated(gs, playerID, turn); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := fn(gs); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	gs.updated = s.now()

	// Snapshot state and subscribers
	st := gs.state()
	subs := s.copySubsLocked(id)
	payload := s.render(st)
	s.mu.Unlock()

	s.fanOut(id, subs, payload)
	return &st, nil
}

// fanOut delivers payload; slow subscribers are closed and forgotten.
func (s *Service) fanOut(id string, subs map[*subscriber]struct{}, payload []byte) {
	var toDrop []*subscriber
	for sub := range subs {
		if !sub.send(payload) {
			sub.close()
			toDrop = append(toDrop, sub)
		}
	}
	if len(toDrop) == 0 {
		return
	}
	s.mu.Lock()
	for _, sub := range toDrop {
		if set, ok := s.subs[id]; ok {
			delete(set, sub)
		}
	}
	s.mu.Unlock()
	s.log.Debug("dropped slow subscribers", zap.String("game_id", id), zap.Int("count", len(toDrop)))
}

// Subscribe registers a subscriber for a game. Returns a channel and an unsubscribe func.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, 1)}
	set[sub] = struct{}{}

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(s.subs, id)
				}
			}
			s.mu.Unlock()
			sub.close()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub
}

func (s *Service) copySubsLocked(id string) map[*subscriber]struct{} {
	out := make(map[*subscriber]struct{})
	if set, ok := s.subs[id]; ok {
		for k := range set {
			out[k] = struct{}{}
		}
	}
	return out
}

// Sweep forgets games idle for longer than maxIdle and closes their
// subscribers. It returns how many games were removed.
func (s *Service) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-maxIdle)
	var stale []string
	var subs []*subscriber
	for id, gs := range s.games {
		if gs.updated.After(cutoff) {
			continue
		}
		stale = append(stale, id)
		delete(s.games, id)
		for sub := range s.subs[id] {
			subs = append(subs, sub)
		}
		delete(s.subs, id)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	if len(stale) > 0 {
		s.log.Info("swept idle games", zap.Int("count", len(stale)), zap.Duration("max_idle", maxIdle))
	}
	return len(stale)
}

// RunJanitor sweeps idle games every interval until ctx is done. A
// non-positive interval or maxIdle disables sweeping.
func (s *Service) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		s.log.Info("janitor disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.Info("janitor started", zap.Duration("interval", interval), zap.Duration("max_idle", maxIdle))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(maxIdle)
		}
	}
}

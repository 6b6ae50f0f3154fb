package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jaminalder/codex-connect4/internal/domain"
	"go.uber.org/zap/zaptest"
)

// minimal renderer for tests: encode moves count as bytes
func testRenderer(gs GameState) []byte { return []byte(fmt.Sprintf("moves=%d", len(gs.Game.Moves))) }

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewServiceWithRenderer(testRenderer, opts...)
}

// seatTwo creates a game with p1 on red and p2 on yellow.
func seatTwo(t *testing.T, s *Service) string {
	t.Helper()
	gs, err := s.CreateGame()
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if _, _, err := s.Join(gs.ID, "p1"); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if _, _, err := s.Join(gs.ID, "p2"); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	return gs.ID
}

func TestCreateAndGet(t *testing.T) {
	s := newTestService(t)
	gs, err := s.CreateGame()
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if gs.ID == "" {
		t.Fatalf("expected non-empty game ID")
	}
	if gs.Game.Turn != domain.Red {
		t.Fatalf("expected initial turn red")
	}
	if gs.Game.Columns != 7 || gs.Game.Rows != 6 {
		t.Fatalf("expected default board, got %dx%d", gs.Game.Columns, gs.Game.Rows)
	}
	if gs.Created.IsZero() || gs.Updated.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}
	got, ok := s.Get(gs.ID)
	if !ok || got.ID != gs.ID {
		t.Fatalf("Get should find created game")
	}
	if _, ok := s.Get("missing"); ok {
		t.Fatalf("Get should miss unknown id")
	}
}

func TestCreateGameUsesConfig(t *testing.T) {
	cfg := domain.Config{Columns: 5, Rows: 4, ConnectLength: 3, StartingPlayer: domain.Yellow}
	s := newTestService(t, WithGameConfig(cfg))
	gs, err := s.CreateGame()
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if gs.Game.Columns != 5 || gs.Game.Rows != 4 || gs.Game.Turn != domain.Yellow {
		t.Fatalf("config not applied: %+v", gs.Game)
	}

	bad := newTestService(t, WithGameConfig(domain.Config{}))
	if _, err := bad.CreateGame(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestJoinSeatsAndRejoin(t *testing.T) {
	s := newTestService(t)
	gs, _ := s.CreateGame()
	p1, p2, p3 := "p1", "p2", "p3"

	side, _, err := s.Join(gs.ID, p1)
	if err != nil || side != domain.Red {
		t.Fatalf("p1 should claim red, got %v, err=%v", side, err)
	}
	side, _, err = s.Join(gs.ID, p2)
	if err != nil || side != domain.Yellow {
		t.Fatalf("p2 should claim yellow, got %v, err=%v", side, err)
	}
	side, _, err = s.Join(gs.ID, p1)
	if err != nil || side != domain.Red {
		t.Fatalf("p1 rejoin should keep red, got %v, err=%v", side, err)
	}
	side, _, err = s.Join(gs.ID, p3)
	if err != nil || side != domain.Empty {
		t.Fatalf("p3 should spectate (Empty), got %v, err=%v", side, err)
	}
	if _, _, err := s.Join("missing", p1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlayEnforcesTurnAndSpectatorBlocked(t *testing.T) {
	s := newTestService(t)
	id := seatTwo(t, s)
	s.Join(id, "p3") // spectator

	// yellow cannot play first
	if _, err := s.Play(id, "p2", 0); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	// spectator cannot play
	if _, err := s.Play(id, "p3", 0); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("expected ErrNotAPlayer, got %v", err)
	}
	// red plays
	st, err := s.Play(id, "p1", 3)
	if err != nil {
		t.Fatalf("red play failed: %v", err)
	}
	if st.Game.At(3, 0) != domain.Red || st.Game.Turn != domain.Yellow || len(st.Game.Moves) != 1 {
		t.Fatalf("unexpected state after red move: turn=%v moves=%d cell=%v", st.Game.Turn, len(st.Game.Moves), st.Game.At(3, 0))
	}
	// red cannot play again
	if _, err := s.Play(id, "p1", 3); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn for red again, got %v", err)
	}
	if _, err := s.Play("missing", "p1", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlayPassesDomainErrors(t *testing.T) {
	s := newTestService(t)
	id := seatTwo(t, s)
	if _, err := s.Play(id, "p1", 9); !errors.Is(err, domain.ErrColumnOutOfRange) {
		t.Fatalf("expected ErrColumnOutOfRange, got %v", err)
	}
	for i, p := range []string{"p1", "p2", "p1", "p2", "p1", "p2", "p1"} {
		col := 0
		if p == "p2" {
			col = 1
		}
		if _, err := s.Play(id, p, col); err != nil {
			t.Fatalf("move %d failed: %v", i, err)
		}
	}
	// after red wins, either seat gets the game-over error
	if _, err := s.Play(id, "p2", 2); !errors.Is(err, domain.ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	gs, _ := s.Get(id)
	if gs.Game.Status.Outcome != domain.Won || gs.Game.Status.Winner != domain.Red {
		t.Fatalf("expected red win, got %+v", gs.Game.Status)
	}
}

func TestHotseatPlaysBothColours(t *testing.T) {
	s := newTestService(t, WithHotseat(true))
	gs, _ := s.CreateGame()
	side, st, err := s.Join(gs.ID, "solo")
	if err != nil || side != domain.Red || st.Yellow != "solo" {
		t.Fatalf("solo should hold both seats, got side=%v state=%+v err=%v", side, st, err)
	}
	if side, _, _ := s.Join(gs.ID, "other"); side != domain.Empty {
		t.Fatalf("second visitor should spectate in hotseat, got %v", side)
	}
	for i, c := range []int{0, 1, 0} {
		if _, err := s.Play(gs.ID, "solo", c); err != nil {
			t.Fatalf("hotseat move %d failed: %v", i, err)
		}
	}
}

func TestRewindAndRestart(t *testing.T) {
	s := newTestService(t)
	id := seatTwo(t, s)
	s.Play(id, "p1", 0)
	s.Play(id, "p2", 1)
	s.Play(id, "p1", 2)

	if _, err := s.Rewind(id, "p3", 1); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("expected spectator rewind to fail, got %v", err)
	}
	if _, err := s.Rewind(id, "p2", 4); !errors.Is(err, domain.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	// either seat may rewind regardless of turn
	st, err := s.Rewind(id, "p2", 1)
	if err != nil {
		t.Fatalf("rewind failed: %v", err)
	}
	if len(st.Game.Moves) != 1 || st.Game.Turn != domain.Yellow {
		t.Fatalf("unexpected state after rewind: moves=%d turn=%v", len(st.Game.Moves), st.Game.Turn)
	}

	st, err = s.Restart(id, "p1")
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if len(st.Game.Moves) != 0 || st.Game.Turn != domain.Red {
		t.Fatalf("unexpected state after restart: moves=%d turn=%v", len(st.Game.Moves), st.Game.Turn)
	}
}

func TestSubscribeAndBroadcast(t *testing.T) {
	s := newTestService(t)
	id := seatTwo(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	ch, unsub := s.Subscribe(ctx, id)
	defer unsub()

	// Trigger an update: red plays
	if _, err := s.Play(id, "p1", 0); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed unexpectedly")
		}
		if string(b) != "moves=1" {
			t.Fatalf("unexpected broadcast payload: %q", string(b))
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for broadcast")
	}

	if _, err := s.Rewind(id, "p1", 0); err != nil {
		t.Fatalf("rewind failed: %v", err)
	}
	select {
	case b := <-ch:
		if string(b) != "moves=0" {
			t.Fatalf("unexpected rewind payload: %q", string(b))
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for rewind broadcast")
	}
}

func TestDropSlowSubscriber(t *testing.T) {
	s := newTestService(t)
	id := seatTwo(t, s)

	// Slow subscriber: never read
	ctxSlow, cancelSlow := context.WithCancel(context.Background())
	defer cancelSlow()
	slowCh, _ := s.Subscribe(ctxSlow, id)

	// Fast subscriber: will read
	ctxFast, cancelFast := context.WithTimeout(context.Background(), time.Second*2)
	defer cancelFast()
	fastCh, unsubFast := s.Subscribe(ctxFast, id)
	defer unsubFast()

	if _, err := s.Play(id, "p1", 0); err != nil {
		t.Fatalf("play1: %v", err)
	}
	<-fastCh
	if _, err := s.Play(id, "p2", 1); err != nil {
		t.Fatalf("play2: %v", err)
	}
	<-fastCh

	// slow subscriber got the first payload, then was closed on overflow
	if b, ok := <-slowCh; !ok || string(b) != "moves=1" {
		t.Fatalf("expected buffered first payload, got %q ok=%v", b, ok)
	}
	if _, ok := <-slowCh; ok {
		t.Fatalf("expected slow subscriber to be closed")
	}
}

func TestSweepRemovesIdleGames(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := newTestService(t, WithClock(clock))

	old, _ := s.CreateGame()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := s.Subscribe(ctx, old.ID)

	now = now.Add(time.Hour)
	fresh, _ := s.CreateGame()

	now = now.Add(30 * time.Minute)
	if n := s.Sweep(time.Hour); n != 1 {
		t.Fatalf("expected 1 swept game, got %d", n)
	}
	if _, ok := s.Get(old.ID); ok {
		t.Fatalf("idle game should be gone")
	}
	if _, ok := s.Get(fresh.ID); !ok {
		t.Fatalf("recent game should survive")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("subscriber of swept game should be closed")
	}
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("janitor did not stop")
	}
}

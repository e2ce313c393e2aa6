package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corridors/gameserver/game/engine"
	"github.com/corridors/gameserver/game/search"
	"github.com/corridors/gameserver/metrics"
)

// Event type constants for room and global broadcasts.
const (
	EventGameCreated = "game_created"
	EventMoveMade    = "move_made"
	EventGameEnded   = "game_ended"
	EventGameStuck   = "game_stuck"
	EventMatchFound  = "match_found"
	EventError       = "error"
)

// TurnScheduler queues machine turns. The AI scheduler implements it.
type TurnScheduler interface {
	Enqueue(gameID string) error
	Depth() int
}

// Options tunes the service.
type Options struct {
	// Engine is the default search configuration for new games.
	Engine engine.Config
	// MoveTimeout bounds caller-facing engine work (analysis, hints).
	MoveTimeout time.Duration
	// AITimeout bounds a machine turn's search.
	AITimeout time.Duration
	// Epsilon is the machine's exploration noise when choosing a move.
	Epsilon float64
}

// DefaultOptions returns the stock service tuning.
func DefaultOptions() Options {
	return Options{
		Engine:      engine.DefaultConfig(),
		MoveTimeout: 30 * time.Second,
		AITimeout:   60 * time.Second,
		Epsilon:     0,
	}
}

// Service is the concrete GameService. It also acts as the scheduler's Mover
// through PlayMachineTurn.
type Service struct {
	registry   Registry
	broadcast  Broadcaster
	scheduler  TurnScheduler
	matchmaker *Matchmaker
	opts       Options
	log        zerolog.Logger
	started    time.Time
}

var _ GameService = (*Service)(nil)

// NewService wires the service over its collaborators.
func NewService(registry Registry, broadcast Broadcaster, scheduler TurnScheduler, opts Options, log zerolog.Logger) *Service {
	return &Service{
		registry:   registry,
		broadcast:  broadcast,
		scheduler:  scheduler,
		matchmaker: NewMatchmaker(),
		opts:       opts,
		log:        log,
		started:    time.Now(),
	}
}

// CreateGame builds, registers and announces a new session.
func (s *Service) CreateGame(ctx context.Context, req CreateGameRequest) (Snapshot, error) {
	mode, players, err := seatPlayers(req)
	if err != nil {
		return Snapshot{}, err
	}
	cfg := s.opts.Engine
	if req.Config != nil {
		cfg = *req.Config
	}

	now := time.Now()
	sess := &Session{
		GameID:       uuid.NewString(),
		Mode:         mode,
		Players:      players,
		Status:       StatusInProgress,
		CreatedAt:    now,
		LastActivity: now,
		Config:       cfg,
		Adapter:      search.NewAdapter(cfg, s.log.With().Str("component", "search").Logger()),
	}
	if err := s.registry.Add(sess); err != nil {
		_ = sess.Adapter.Close()
		return Snapshot{}, err
	}

	guard := sess.Guard()
	guard.Lock()
	snap := sess.Snapshot()
	guard.Unlock()

	s.log.Info().
		Str("game_id", snap.GameID).
		Str("mode", string(snap.Mode)).
		Msg("game created")
	s.broadcast.BroadcastAll(EventGameCreated, snap)

	if players[engine.Hero].IsMachine() {
		s.queueMachineTurn(snap.GameID)
	}
	return snap, nil
}

// seatPlayers resolves the request into two seats. Per-slot kinds take
// precedence; without them the mode decides, with the machine defaulting to
// slot 2 in human-vs-machine games. The returned mode is derived from the
// seats, so a machine opening in slot 1 still reports pvm.
func seatPlayers(req CreateGameRequest) (GameMode, [2]PlayerSlot, error) {
	heroKind, villainKind := req.HeroKind, req.VillainKind
	if heroKind == "" && villainKind == "" {
		switch req.Mode {
		case ModeHumanVsHuman:
			heroKind, villainKind = KindHuman, KindHuman
		case ModeHumanVsMachine:
			heroKind, villainKind = KindHuman, KindMachine
		case ModeMachineVsMachine:
			heroKind, villainKind = KindMachine, KindMachine
		default:
			return "", [2]PlayerSlot{}, fmt.Errorf("%w: unknown mode %q", ErrInternal, req.Mode)
		}
	}
	if heroKind == "" {
		heroKind = KindHuman
	}
	if villainKind == "" {
		villainKind = KindHuman
	}

	hero, err := seatFor(heroKind, req.HeroID, req.HeroName, "slot 1")
	if err != nil {
		return "", [2]PlayerSlot{}, err
	}
	villain, err := seatFor(villainKind, req.VillainID, req.VillainName, "slot 2")
	if err != nil {
		return "", [2]PlayerSlot{}, err
	}

	switch {
	case hero.IsMachine() && villain.IsMachine():
		return ModeMachineVsMachine, [2]PlayerSlot{hero, villain}, nil
	case hero.IsMachine() || villain.IsMachine():
		return ModeHumanVsMachine, [2]PlayerSlot{hero, villain}, nil
	}
	return ModeHumanVsHuman, [2]PlayerSlot{hero, villain}, nil
}

func seatFor(kind PlayerKind, id, name, slot string) (PlayerSlot, error) {
	switch kind {
	case KindMachine:
		return PlayerSlot{ID: MachinePlayer, Name: "Corridors Engine", Kind: KindMachine}, nil
	case KindHuman:
		if id == "" {
			return PlayerSlot{}, fmt.Errorf("%w: %s requires a player id", ErrInternal, slot)
		}
		if name == "" {
			name = id
		}
		return PlayerSlot{ID: id, Name: name, Kind: KindHuman}, nil
	}
	return PlayerSlot{}, fmt.Errorf("%w: unknown player kind %q", ErrInternal, kind)
}

// GetGame returns a snapshot of the session.
func (s *Service) GetGame(ctx context.Context, gameID string) (Snapshot, error) {
	sess, err := s.registry.Get(gameID)
	if err != nil {
		return Snapshot{}, err
	}
	guard := sess.Guard()
	guard.Lock()
	defer guard.Unlock()
	return sess.Snapshot(), nil
}

// ListGames returns snapshots matching the filter, newest first, paged by the
// filter's limit and offset.
func (s *Service) ListGames(ctx context.Context, f ListFilter) ([]Snapshot, error) {
	out := s.snapshots(f)

	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// snapshots collects every matching session, newest first, without paging.
func (s *Service) snapshots(f ListFilter) []Snapshot {
	sessions := s.registry.List(f)
	out := make([]Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		guard := sess.Guard()
		guard.Lock()
		out = append(out, sess.Snapshot())
		guard.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// CancelGame force-ends and removes a session.
func (s *Service) CancelGame(ctx context.Context, gameID string) error {
	sess, err := s.registry.Get(gameID)
	if err != nil {
		return err
	}
	guard := sess.Guard()
	guard.Lock()
	if sess.Status == StatusPending || sess.Status == StatusInProgress {
		sess.Status = StatusCancelled
		sess.EndReason = EndReasonCancelled
	}
	snap := sess.Snapshot()
	guard.Unlock()

	if err := s.registry.Remove(gameID); err != nil {
		return err
	}
	s.broadcast.BroadcastToGame(gameID, EventGameEnded, snap)
	s.log.Info().Str("game_id", gameID).Msg("game cancelled")
	return nil
}

// ApplyMove validates and commits a move by playerID. Validation and commit
// happen under the session guard; broadcasts go out after it is released.
func (s *Service) ApplyMove(ctx context.Context, gameID, playerID, action string) (*MoveResult, error) {
	sess, err := s.registry.Get(gameID)
	if err != nil {
		return nil, err
	}

	guard := sess.Guard()
	guard.Lock()
	result, err := s.commitMove(sess, playerID, action)
	guard.Unlock()
	if err != nil {
		return nil, err
	}

	s.afterMove(sess.GameID, result)
	return result, nil
}

// commitMove runs the turn-router protocol. The caller holds the guard.
func (s *Service) commitMove(sess *Session, playerID, action string) (*MoveResult, error) {
	if sess.Status != StatusInProgress {
		return nil, ErrNotInProgress
	}
	seat, ok := sess.SeatOf(playerID)
	if !ok {
		return nil, ErrNotYourTurn
	}
	if seat != sess.seatToMove() {
		return nil, ErrNotYourTurn
	}

	flip := seat == engine.Villain
	if err := sess.Adapter.ApplyMove(action, flip); err != nil {
		switch {
		case errors.Is(err, search.ErrClosed):
			return nil, ErrAdapterClosed
		case errors.Is(err, search.ErrInvalidAction):
			return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	canonical := action
	if flip {
		// The kernel accepted the action, so the flip cannot fail.
		canonical, _ = engine.FlipAction(action)
	}
	move := Move{
		Seq:      len(sess.Moves) + 1,
		PlayerID: sess.Players[seat].ID,
		Action:   canonical,
		PlayedAt: time.Now(),
	}
	if value, ok, evalErr := sess.Adapter.Evaluation(); evalErr == nil && ok {
		move.Evaluation = &value
	}
	sess.Moves = append(sess.Moves, move)
	sess.Touch()

	terminal, err := sess.Adapter.IsTerminal()
	if err != nil {
		return nil, ErrAdapterClosed
	}
	if terminal {
		sess.Status = StatusCompleted
		sess.Winner = sess.Players[seat].ID
		sess.EndReason = EndReasonGoalReached
	}

	if kind, _, _, err := engine.ParseAction(canonical); err == nil {
		metrics.MovesTotal.WithLabelValues(string(kind)).Inc()
	}

	return &MoveResult{
		Move:     move,
		Snapshot: sess.Snapshot(),
		GameOver: terminal,
		Winner:   sess.Winner,
	}, nil
}

// afterMove publishes the committed move and chains the machine reply.
func (s *Service) afterMove(gameID string, result *MoveResult) {
	s.broadcast.BroadcastToGame(gameID, EventMoveMade, result)
	if result.GameOver {
		s.broadcast.BroadcastToGame(gameID, EventGameEnded, result.Snapshot)
		return
	}
	next := result.Snapshot.Players[len(result.Snapshot.Moves)%2]
	if next.IsMachine() {
		s.queueMachineTurn(gameID)
	}
}

// queueMachineTurn hands the game to the AI scheduler. When the queue pushes
// back, the room learns the game is stuck rather than getting a generic error.
func (s *Service) queueMachineTurn(gameID string) {
	if err := s.scheduler.Enqueue(gameID); err != nil {
		s.log.Warn().Err(err).Str("game_id", gameID).Msg("machine turn not queued")
		s.broadcast.BroadcastToGame(gameID, EventGameStuck, map[string]string{
			"game_id": gameID,
			"error":   err.Error(),
		})
	}
}

// PlayMachineTurn computes and commits one engine move. Validation happens
// under the guard, the search runs outside it, and the result is committed
// only after re-validating that the position is unchanged.
func (s *Service) PlayMachineTurn(gameID string) error {
	sess, err := s.registry.Get(gameID)
	if err != nil {
		return err
	}

	guard := sess.Guard()
	guard.Lock()
	if sess.Status != StatusInProgress {
		guard.Unlock()
		return nil
	}
	mover := sess.PlayerToMove()
	if !mover.IsMachine() {
		// Stale trigger; a coalesced duplicate can arrive after the
		// machine already moved.
		guard.Unlock()
		return nil
	}
	moveCount := len(sess.Moves)
	budget := sess.Config.MinSimulations
	guard.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.AITimeout)
	defer cancel()
	if _, err := sess.Adapter.EnsureBudget(ctx, budget); err != nil {
		if errors.Is(err, search.ErrClosed) {
			// Session was deleted while the turn was queued.
			return nil
		}
		return s.failMachineTurn(sess, err)
	}
	action, err := sess.Adapter.BestAction(s.opts.Epsilon)
	if err != nil {
		if errors.Is(err, search.ErrClosed) {
			return nil
		}
		return s.failMachineTurn(sess, err)
	}
	if action == "" {
		return nil
	}
	if moveCount%2 == 1 {
		// BestAction speaks the canonical frame, but commitMove expects the
		// villain seat to submit in its own frame. Translate so the flip on
		// commit lands back on the kernel's choice.
		flipped, ferr := engine.FlipAction(action)
		if ferr != nil {
			return s.failMachineTurn(sess, ferr)
		}
		action = flipped
	}

	guard.Lock()
	if sess.Status != StatusInProgress || len(sess.Moves) != moveCount {
		// The position moved under us; the scheduler will requeue if the
		// machine is still to act.
		guard.Unlock()
		return nil
	}
	result, err := s.commitMove(sess, mover.ID, action)
	guard.Unlock()
	if err != nil {
		return err
	}

	s.afterMove(gameID, result)
	return nil
}

// failMachineTurn cancels a game whose engine turn could not complete.
func (s *Service) failMachineTurn(sess *Session, cause error) error {
	mapped := ErrInternal
	switch {
	case errors.Is(cause, search.ErrTimeout):
		mapped = ErrEngineTimeout
	case errors.Is(cause, search.ErrClosed):
		mapped = ErrAdapterClosed
	}

	guard := sess.Guard()
	guard.Lock()
	if sess.Status != StatusInProgress {
		guard.Unlock()
		return mapped
	}
	sess.Status = StatusCancelled
	sess.EndReason = EndReasonCancelled
	sess.Touch()
	snap := sess.Snapshot()
	guard.Unlock()

	s.log.Error().Err(cause).Str("game_id", sess.GameID).Msg("machine turn failed, cancelling game")
	s.broadcast.BroadcastToGame(sess.GameID, EventGameEnded, snap)
	return mapped
}

// Resign ends the game in the opponent's favour.
func (s *Service) Resign(ctx context.Context, gameID, playerID string) (Snapshot, error) {
	sess, err := s.registry.Get(gameID)
	if err != nil {
		return Snapshot{}, err
	}

	guard := sess.Guard()
	guard.Lock()
	if sess.Status != StatusInProgress {
		guard.Unlock()
		return Snapshot{}, ErrNotInProgress
	}
	seat, ok := sess.SeatOf(playerID)
	if !ok {
		guard.Unlock()
		return Snapshot{}, ErrNotYourTurn
	}
	sess.Status = StatusCompleted
	sess.Winner = sess.Players[seat.Opponent()].ID
	sess.EndReason = EndReasonResignation
	sess.Touch()
	snap := sess.Snapshot()
	guard.Unlock()

	s.broadcast.BroadcastToGame(gameID, EventGameEnded, snap)
	s.log.Info().Str("game_id", gameID).Str("player_id", playerID).Msg("player resigned")
	return snap, nil
}

// LegalMoves lists the side to move's actions in playerID's coordinate frame.
func (s *Service) LegalMoves(ctx context.Context, gameID, playerID string) ([]string, error) {
	sess, seat, err := s.playerSeat(gameID, playerID)
	if err != nil {
		return nil, err
	}
	actions, err := sess.Adapter.LegalActions()
	if err != nil {
		return nil, ErrAdapterClosed
	}
	if seat == engine.Villain {
		for i, a := range actions {
			flipped, err := engine.FlipAction(a)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInternal, err)
			}
			actions[i] = flipped
		}
	}
	return actions, nil
}

// RenderBoard returns the text board from playerID's point of view.
func (s *Service) RenderBoard(ctx context.Context, gameID, playerID string) (string, error) {
	sess, seat, err := s.playerSeat(gameID, playerID)
	if err != nil {
		return "", err
	}
	board, err := sess.Adapter.Render(seat == engine.Villain)
	if err != nil {
		return "", ErrAdapterClosed
	}
	return board, nil
}

// Analyse tops the search up to the requested budget and reports the scored
// root actions in the canonical frame.
func (s *Service) Analyse(ctx context.Context, gameID string, budget int) (*AnalysisResult, error) {
	sess, err := s.registry.Get(gameID)
	if err != nil {
		return nil, err
	}
	guard := sess.Guard()
	guard.Lock()
	cfg := sess.Config
	sess.Touch()
	guard.Unlock()

	if budget <= 0 {
		budget = cfg.MinSimulations
	}
	if budget > cfg.MaxSimulations {
		budget = cfg.MaxSimulations
	}

	runCtx, cancel := context.WithTimeout(ctx, s.opts.MoveTimeout)
	defer cancel()
	visits, err := sess.Adapter.EnsureBudget(runCtx, budget)
	if err != nil {
		return nil, mapSearchErr(err)
	}
	actions, err := sess.Adapter.SortedActions(false)
	if err != nil {
		return nil, ErrAdapterClosed
	}
	result := &AnalysisResult{Actions: actions, Visits: visits}
	if value, ok, err := sess.Adapter.Evaluation(); err == nil && ok {
		result.Evaluation = &value
	}
	return result, nil
}

// Hint suggests the most visited action for the side to move, rendered in
// playerID's frame, with the share of root visits as confidence.
func (s *Service) Hint(ctx context.Context, gameID, playerID string) (*HintResult, error) {
	sess, seat, err := s.playerSeat(gameID, playerID)
	if err != nil {
		return nil, err
	}

	guard := sess.Guard()
	guard.Lock()
	budget := sess.Config.MinSimulations
	sess.Touch()
	guard.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.opts.MoveTimeout)
	defer cancel()
	visits, err := sess.Adapter.EnsureBudget(runCtx, budget)
	if err != nil {
		return nil, mapSearchErr(err)
	}
	actions, err := sess.Adapter.SortedActions(seat == engine.Villain)
	if err != nil {
		return nil, ErrAdapterClosed
	}
	if len(actions) == 0 {
		return nil, ErrNotInProgress
	}
	top := actions[0]
	confidence := 0.0
	if visits > 0 {
		confidence = float64(top.Visits) / float64(visits)
	}
	return &HintResult{Action: top.Action, Confidence: confidence, Visits: visits}, nil
}

// JoinQueue enters matchmaking; a waiting opponent produces an immediate
// human-vs-human game with the longer waiter as hero.
func (s *Service) JoinQueue(ctx context.Context, playerID, playerName string) (*QueueResult, error) {
	opponent, position, err := s.matchmaker.join(playerID, playerName)
	if err != nil {
		return nil, err
	}
	if opponent == nil {
		s.log.Debug().Str("player_id", playerID).Int("position", position).Msg("player queued")
		return &QueueResult{Position: position}, nil
	}

	snap, err := s.CreateGame(ctx, CreateGameRequest{
		Mode:        ModeHumanVsHuman,
		HeroID:      opponent.playerID,
		HeroName:    opponent.name,
		VillainID:   playerID,
		VillainName: playerName,
	})
	if err != nil {
		return nil, err
	}
	s.broadcast.BroadcastAll(EventMatchFound, snap)
	return &QueueResult{Matched: true, Game: &snap}, nil
}

// LeaveQueue withdraws a matchmaking ticket. Leaving without one is a no-op.
func (s *Service) LeaveQueue(ctx context.Context, playerID string) error {
	if s.matchmaker.leave(playerID) {
		s.log.Debug().Str("player_id", playerID).Msg("player left queue")
	}
	return nil
}

// Stats aggregates results across the sessions currently in memory.
func (s *Service) Stats(ctx context.Context) (*StatsResult, error) {
	snaps := s.snapshots(ListFilter{})
	byPlayer := make(map[string]*PlayerStats)
	record := func(p PlayerSlot) *PlayerStats {
		st, ok := byPlayer[p.ID]
		if !ok {
			st = &PlayerStats{PlayerID: p.ID, Name: p.Name}
			byPlayer[p.ID] = st
		}
		return st
	}

	result := &StatsResult{TotalGames: len(snaps)}
	for _, snap := range snaps {
		switch snap.Status {
		case StatusPending, StatusInProgress:
			result.ActiveGames++
		case StatusCompleted:
			result.CompletedGames++
			for _, p := range snap.Players {
				st := record(p)
				st.Games++
				if snap.Winner == p.ID {
					st.Wins++
				} else {
					st.Losses++
				}
			}
		}
	}
	for _, st := range byPlayer {
		result.Leaderboard = append(result.Leaderboard, *st)
	}
	sort.Slice(result.Leaderboard, func(i, j int) bool {
		a, b := result.Leaderboard[i], result.Leaderboard[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.PlayerID < b.PlayerID
	})
	return result, nil
}

// Health reports liveness details.
func (s *Service) Health(ctx context.Context) *HealthStatus {
	return &HealthStatus{
		Status:        "ok",
		ActiveGames:   s.registry.Count(),
		QueueDepth:    s.scheduler.Depth(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
}

// playerSeat resolves gameID and playerID to a session and seat with the
// standard error mapping.
func (s *Service) playerSeat(gameID, playerID string) (*Session, engine.Seat, error) {
	sess, err := s.registry.Get(gameID)
	if err != nil {
		return nil, engine.Hero, err
	}
	guard := sess.Guard()
	guard.Lock()
	defer guard.Unlock()
	seat, ok := sess.SeatOf(playerID)
	if !ok {
		return nil, engine.Hero, ErrNotYourTurn
	}
	return sess, seat, nil
}

func mapSearchErr(err error) error {
	switch {
	case errors.Is(err, search.ErrTimeout):
		return ErrEngineTimeout
	case errors.Is(err, search.ErrClosed):
		return ErrAdapterClosed
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

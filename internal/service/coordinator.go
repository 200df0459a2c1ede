package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"holdem/internal/model"
	"holdem/internal/store"
)

// Persister is the slice of the store the coordinator needs.
type Persister interface {
	LoadState(gameID uuid.UUID) (*model.Game, []*model.PlayerGame, error)
	Commit(set store.SaveSet) error
}

// Publisher fans events out to a game's subscribers. Publish is called on
// the actor goroutine; build runs once per subscriber with that subscriber's
// player id, which is where the card-privacy filter applies.
type Publisher interface {
	Publish(gameID uuid.UUID, eventType string, build func(viewerID uuid.UUID) any)
}

// Config carries the coordinator's tunables.
type Config struct {
	// ReadyTimeout bounds the between-hands wait; on expiry seats that
	// never signalled sit the next hand out. Zero disables the timer.
	ReadyTimeout time.Duration
	// ActionTimeout folds (facing a bet) or checks a seat that stalls.
	// Zero disables the timer and the game waits indefinitely.
	ActionTimeout time.Duration
	// QueueSize bounds each table's command queue; a full queue rejects
	// with TABLE_BUSY.
	QueueSize int
}

// Coordinator runs one single-writer actor per game: every mutation for a
// game id is serialized through its actor's queue, persisted atomically and
// only then broadcast.
type Coordinator struct {
	store Persister
	pub   Publisher
	games *GameService
	life  *LifecycleService
	cfg   Config
	log   *zap.Logger

	mu     sync.Mutex
	actors map[uuid.UUID]*actor
	closed bool
	wg     sync.WaitGroup
}

func NewCoordinator(st Persister, pub Publisher, cfg Config, log *zap.Logger) *Coordinator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	return &Coordinator{
		store:  st,
		pub:    pub,
		games:  NewGameService(log),
		life:   NewLifecycleService(log),
		cfg:    cfg,
		log:    log,
		actors: make(map[uuid.UUID]*actor),
	}
}

// Close stops every actor. In-flight commands finish and persist; queued
// commands are rejected, which clients must tolerate and retry.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	actors := make([]*actor, 0, len(c.actors))
	for _, a := range c.actors {
		actors = append(actors, a)
	}
	c.mu.Unlock()
	for _, a := range actors {
		a.stopOnce.Do(func() { close(a.stop) })
	}
	c.wg.Wait()
}

// outcome is what a command asks the actor to persist and announce beyond
// the game and seat rows.
type outcome struct {
	action      *model.GameAction
	history     *model.HandHistory
	players     []*model.Player
	deleteSeats []uuid.UUID
	summary     bool
}

type command struct {
	run      func(a *actor) (*outcome, error)
	readonly bool
	viewer   uuid.UUID
	resp     chan cmdResult
}

type cmdResult struct {
	view *GameView
	err  error
}

type actor struct {
	c        *Coordinator
	gameID   uuid.UUID
	cmds     chan *command
	stop     chan struct{}
	stopOnce sync.Once
	state    *GameState

	readyTimer  *time.Timer
	actionTimer *time.Timer
	// turnKey identifies the turn the action timer was armed for, so a
	// stale fire is ignored.
	turnKey [3]int
}

// Snapshot returns the viewer-filtered authoritative snapshot.
func (c *Coordinator) Snapshot(gameID, viewerID uuid.UUID) (*GameView, error) {
	return c.do(gameID, viewerID, &command{
		readonly: true,
		run:      func(a *actor) (*outcome, error) { return nil, nil },
	})
}

// StartGame transitions WAITING into the first hand.
func (c *Coordinator) StartGame(gameID, playerID uuid.UUID) (*GameView, error) {
	return c.do(gameID, playerID, &command{run: func(a *actor) (*outcome, error) {
		if a.state.SeatOf(playerID) == nil {
			return nil, model.Errorf(model.KindGameNotFound, "player has no seat in this game")
		}
		if err := a.c.games.StartGame(a.state); err != nil {
			return nil, err
		}
		return a.advance(&outcome{})
	}})
}

// Action validates and applies one betting action, then advances the hand as
// far as it can go without human input.
func (c *Coordinator) Action(gameID, playerID uuid.UUID, actionType string, amount int64) (*GameView, error) {
	return c.do(gameID, playerID, &command{run: func(a *actor) (*outcome, error) {
		action, err := a.c.games.ProcessAction(a.state, playerID, actionType, amount)
		if err != nil {
			return nil, err
		}
		return a.advance(&outcome{action: action})
	}})
}

// Ready records the between-hands ready signal; the next hand starts once
// every seated seat is ready.
func (c *Coordinator) Ready(gameID, playerID uuid.UUID) (*GameView, error) {
	return c.do(gameID, playerID, &command{run: func(a *actor) (*outcome, error) {
		if err := a.c.life.Ready(a.state, playerID); err != nil {
			return nil, err
		}
		started, err := a.c.games.TryStartNextHand(a.state)
		if err != nil {
			return nil, err
		}
		out := &outcome{}
		if started {
			return a.advance(out)
		}
		return out, nil
	}})
}

// CashOut freezes the seat's result between hands.
func (c *Coordinator) CashOut(gameID, playerID uuid.UUID) (*GameView, error) {
	return c.do(gameID, playerID, &command{run: func(a *actor) (*outcome, error) {
		if err := a.c.life.CashOut(a.state, playerID); err != nil {
			return nil, err
		}
		out := &outcome{}
		finished, err := a.c.life.MaybeFinishGame(a.state)
		if err != nil {
			return nil, err
		}
		out.summary = finished
		if !finished {
			// the table may now be unanimous on readiness
			started, err := a.c.games.TryStartNextHand(a.state)
			if err != nil {
				return nil, err
			}
			if started {
				return a.advance(out)
			}
		}
		return out, nil
	}})
}

// Join seats the player in the game, debiting the buy-in from the bankroll.
func (c *Coordinator) Join(gameID uuid.UUID, player *model.Player, buyIn int64) (*GameView, error) {
	return c.do(gameID, player.ID, &command{run: func(a *actor) (*outcome, error) {
		if _, err := a.c.life.Join(a.state, player, buyIn); err != nil {
			return nil, err
		}
		return &outcome{players: []*model.Player{player}}, nil
	}})
}

// BuyBackIn returns a cashed-out seat to play from the next hand.
func (c *Coordinator) BuyBackIn(gameID uuid.UUID, player *model.Player, amount int64) (*GameView, error) {
	return c.do(gameID, player.ID, &command{run: func(a *actor) (*outcome, error) {
		if err := a.c.life.BuyBackIn(a.state, player, amount); err != nil {
			return nil, err
		}
		return &outcome{players: []*model.Player{player}}, nil
	}})
}

// Leave releases a cashed-out seat and credits its frozen stack back.
func (c *Coordinator) Leave(gameID uuid.UUID, player *model.Player) (*GameView, error) {
	return c.do(gameID, player.ID, &command{run: func(a *actor) (*outcome, error) {
		seat := a.state.SeatOf(player.ID)
		if seat == nil {
			return nil, model.Errorf(model.KindGameNotFound, "player has no seat in this game")
		}
		seatRowID := seat.ID
		if err := a.c.life.Leave(a.state, player); err != nil {
			return nil, err
		}
		return &outcome{
			players:     []*model.Player{player},
			deleteSeats: []uuid.UUID{seatRowID},
		}, nil
	}})
}

// do routes a command through the game's actor, starting it on first use.
func (c *Coordinator) do(gameID, viewer uuid.UUID, cmd *command) (*GameView, error) {
	a, err := c.actorFor(gameID)
	if err != nil {
		return nil, err
	}
	cmd.viewer = viewer
	cmd.resp = make(chan cmdResult, 1)
	select {
	case a.cmds <- cmd:
	default:
		return nil, model.Errorf(model.KindTableBusy, "table queue is full")
	}
	select {
	case res := <-cmd.resp:
		return res.view, res.err
	case <-a.stop:
		return nil, model.Errorf(model.KindTableBusy, "coordinator shutting down")
	}
}

func (c *Coordinator) actorFor(gameID uuid.UUID) (*actor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, model.Errorf(model.KindTableBusy, "coordinator shutting down")
	}
	if a, ok := c.actors[gameID]; ok {
		return a, nil
	}
	game, seats, err := c.store.LoadState(gameID)
	if err != nil {
		return nil, err
	}
	state := NewGameState(game, seats)
	if err := state.RebuildDeck(); err != nil {
		return nil, err
	}
	a := &actor{
		c:      c,
		gameID: gameID,
		cmds:   make(chan *command, c.cfg.QueueSize),
		stop:   make(chan struct{}),
		state:  state,
	}
	c.actors[gameID] = a
	c.wg.Add(1)
	go a.run()
	return a, nil
}

func (a *actor) run() {
	defer a.c.wg.Done()
	a.armTimers()
	for {
		var readyC, actionC <-chan time.Time
		if a.readyTimer != nil {
			readyC = a.readyTimer.C
		}
		if a.actionTimer != nil {
			actionC = a.actionTimer.C
		}
		select {
		case <-a.stop:
			return
		case cmd := <-a.cmds:
			a.handle(cmd)
		case <-readyC:
			a.readyTimer = nil
			a.onReadyTimeout()
		case <-actionC:
			a.actionTimer = nil
			a.onActionTimeout()
		}
	}
}

// handle runs one command: mutate, persist, broadcast. Any error discards
// the in-memory mutation by reloading the last committed state, so no
// partial mutation ever escapes.
func (a *actor) handle(cmd *command) {
	if cmd.readonly {
		cmd.resp <- cmdResult{view: BuildView(a.state, cmd.viewer)}
		return
	}

	out, err := cmd.run(a)
	if err != nil {
		faulted := model.KindOf(err) == model.KindEngineFault
		a.reload()
		if faulted {
			a.persistFault()
		} else {
			a.c.log.Debug("command rejected", zap.String("game_id", a.gameID.String()), zap.Error(err))
		}
		cmd.resp <- cmdResult{err: err}
		return
	}

	set := store.SaveSet{Game: a.state.Game, Seats: a.state.Seats}
	if out != nil {
		set.Action = out.action
		set.History = out.history
		set.Players = out.players
		set.DeleteSeats = out.deleteSeats
	}
	if err := a.c.store.Commit(set); err != nil {
		a.c.log.Error("commit failed", zap.String("game_id", a.gameID.String()), zap.Error(err))
		a.reload()
		cmd.resp <- cmdResult{err: model.Errorf(model.KindEngineFault, "persistence failed")}
		return
	}

	a.broadcastUpdate()
	if out != nil && out.summary {
		a.broadcastSummary()
	}
	a.armTimers()
	cmd.resp <- cmdResult{view: BuildView(a.state, cmd.viewer)}
}

// advance drives the state machine after a successful mutation and collects
// the hand-history row when the hand ends.
func (a *actor) advance(out *outcome) (*outcome, error) {
	res, err := a.c.games.Advance(a.state)
	if err != nil {
		return nil, err
	}
	if res.HandEnded {
		out.history = res.History
	}
	return out, nil
}

func (a *actor) reload() {
	game, seats, err := a.c.store.LoadState(a.gameID)
	if err != nil {
		a.c.log.Error("state reload failed", zap.String("game_id", a.gameID.String()), zap.Error(err))
		return
	}
	a.state = NewGameState(game, seats)
	if err := a.state.RebuildDeck(); err != nil {
		a.c.log.Error("deck rebuild failed", zap.String("game_id", a.gameID.String()), zap.Error(err))
	}
}

// persistFault records the FAULTED status over the last committed snapshot
// and tells subscribers the hand is aborted; operators take it from there.
func (a *actor) persistFault() {
	a.state.Game.Status = model.StatusFaulted
	if err := a.c.store.Commit(store.SaveSet{Game: a.state.Game}); err != nil {
		a.c.log.Error("fault persist failed", zap.String("game_id", a.gameID.String()), zap.Error(err))
	}
	a.c.pub.Publish(a.gameID, model.EventTerminalError, func(uuid.UUID) any {
		return map[string]string{"kind": string(model.KindEngineFault), "message": "hand aborted, awaiting operator"}
	})
}

func (a *actor) broadcastUpdate() {
	state := a.state
	a.c.pub.Publish(a.gameID, model.EventGameUpdate, func(viewerID uuid.UUID) any {
		return BuildView(state, viewerID)
	})
}

func (a *actor) broadcastSummary() {
	summary := a.state.Game.GameSummary
	a.c.pub.Publish(a.gameID, model.EventGameSummary, func(uuid.UUID) any {
		return summary
	})
}

// armTimers keeps exactly the timers the current phase needs running.
func (a *actor) armTimers() {
	game := a.state.Game

	wantReady := a.c.cfg.ReadyTimeout > 0 &&
		game.Status == model.StatusPlaying &&
		game.Phase == model.PhaseWaitingForPlayers
	if wantReady && a.readyTimer == nil {
		a.readyTimer = time.NewTimer(a.c.cfg.ReadyTimeout)
	} else if !wantReady && a.readyTimer != nil {
		a.readyTimer.Stop()
		a.readyTimer = nil
	}

	wantAction := a.c.cfg.ActionTimeout > 0 &&
		game.Status == model.StatusPlaying &&
		a.state.isBettingPhase() &&
		game.CurrentTurnSeat != model.NoSeat
	key := [3]int{game.HandCount, phaseOrdinal(game.Phase), game.CurrentTurnSeat}
	if wantAction {
		if a.actionTimer == nil || key != a.turnKey {
			if a.actionTimer != nil {
				a.actionTimer.Stop()
			}
			a.actionTimer = time.NewTimer(a.c.cfg.ActionTimeout)
			a.turnKey = key
		}
	} else if a.actionTimer != nil {
		a.actionTimer.Stop()
		a.actionTimer = nil
	}
}

// onReadyTimeout starts the next hand without the seats that never
// signalled ready.
func (a *actor) onReadyTimeout() {
	started, err := a.c.games.ForceStartNextHand(a.state)
	if err != nil {
		a.reload()
		a.armTimers()
		return
	}
	if !started {
		// nobody to deal to yet; wait for the next signal
		a.readyTimer = time.NewTimer(a.c.cfg.ReadyTimeout)
		return
	}
	out, err := a.advance(&outcome{})
	if err != nil {
		a.reload()
		a.armTimers()
		return
	}
	if err := a.c.store.Commit(store.SaveSet{Game: a.state.Game, Seats: a.state.Seats, History: out.history}); err != nil {
		a.c.log.Error("commit failed", zap.String("game_id", a.gameID.String()), zap.Error(err))
		a.reload()
		return
	}
	a.broadcastUpdate()
	a.armTimers()
}

// onActionTimeout acts for a stalled seat: fold when facing a bet, check
// otherwise.
func (a *actor) onActionTimeout() {
	game := a.state.Game
	seat := a.state.SeatAt(game.CurrentTurnSeat)
	if seat == nil || !a.state.isBettingPhase() {
		a.armTimers()
		return
	}
	actionType := model.ActionCheck
	if seat.CurrentBet < game.CurrentBet {
		actionType = model.ActionFold
	}
	a.c.log.Info("action timeout",
		zap.String("game_id", a.gameID.String()),
		zap.Int("seat", seat.SeatIndex),
		zap.String("action", actionType))

	action, err := a.c.games.ProcessAction(a.state, seat.PlayerID, actionType, 0)
	if err != nil {
		a.reload()
		a.armTimers()
		return
	}
	out, err := a.advance(&outcome{action: action})
	if err != nil {
		a.reload()
		a.armTimers()
		return
	}
	set := store.SaveSet{Game: a.state.Game, Seats: a.state.Seats, Action: out.action, History: out.history}
	if err := a.c.store.Commit(set); err != nil {
		a.c.log.Error("commit failed", zap.String("game_id", a.gameID.String()), zap.Error(err))
		a.reload()
		return
	}
	a.broadcastUpdate()
	a.armTimers()
}

func phaseOrdinal(phase string) int {
	switch phase {
	case model.PhasePreflop:
		return 1
	case model.PhaseFlop:
		return 2
	case model.PhaseTurn:
		return 3
	case model.PhaseRiver:
		return 4
	case model.PhaseShowdown:
		return 5
	default:
		return 0
	}
}

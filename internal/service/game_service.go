package service

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"holdem/internal/model"
)

// GameService is the table state machine: hand start, action validation and
// mutation, betting-round closure, phase advancement and showdown. It only
// ever runs on a game's coordinator goroutine.
type GameService struct {
	log *zap.Logger
}

func NewGameService(log *zap.Logger) *GameService {
	return &GameService{log: log}
}

// AdvanceResult reports what the advancement loop settled on.
type AdvanceResult struct {
	HandEnded bool
	History   *model.HandHistory
}

// StartGame transitions WAITING into the first hand.
func (s *GameService) StartGame(gs *GameState) error {
	if gs.Game.Status != model.StatusWaiting {
		return model.Errorf(model.KindGameNotWaiting, "game is %s", gs.Game.Status)
	}
	funded := 0
	for _, seat := range gs.Seats {
		if !seat.CashedOut && seat.Stack > 0 {
			funded++
		}
	}
	if funded < 2 {
		return model.Errorf(model.KindGameNotWaiting, "need at least 2 funded seats, have %d", funded)
	}
	gs.Game.Status = model.StatusPlaying
	return s.startHand(gs)
}

// startHand runs the hand-start procedure: dealer rotation, per-seat reset,
// fresh deck, hole cards, blinds, preflop turn order.
func (s *GameService) startHand(gs *GameState) error {
	// seats still marked sitting out (a missed ready deadline) are not dealt
	// this hand
	dealt := gs.dealtInSeats()
	if len(dealt) < 2 {
		return model.Errorf(model.KindGameNotWaiting, "need at least 2 funded seats, have %d", len(dealt))
	}

	game := gs.Game

	// rotate the button among the seats being dealt
	if game.DealerSeat == model.NoSeat {
		game.DealerSeat = dealt[0].SeatIndex
	} else {
		next := gs.nextSeat(game.DealerSeat, func(pg *model.PlayerGame) bool {
			return !pg.CashedOut && !pg.SittingOut && pg.Stack > 0
		})
		if next != nil {
			game.DealerSeat = next.SeatIndex
		}
	}

	for _, seat := range gs.Seats {
		seat.CurrentBet = 0
		seat.TotalBetThisHand = 0
		seat.SetHole(nil)
		seat.HasActed = false
		seat.RaiseCapped = false
		seat.ReadyForNextHand = false
		seat.IsActive = false
	}
	for _, seat := range dealt {
		seat.IsActive = true
	}
	// sit-outs last exactly one hand boundary
	for _, seat := range gs.Seats {
		seat.SittingOut = false
	}

	game.HandCount++
	game.HandSeed = model.NewSeed()
	gs.Deck = model.NewDeck(game.HandSeed)
	game.SetCommunity(nil)
	game.WinnerInfo = nil
	game.Pot = 0
	game.CurrentBet = 0
	game.LastRaiseIncrement = game.Table.BigBlind
	game.Phase = model.PhasePreflop

	isActive := func(pg *model.PlayerGame) bool { return pg.IsActive }

	// heads-up: the dealer posts the small blind and acts first preflop
	var sbSeat, bbSeat *model.PlayerGame
	if len(dealt) == 2 {
		sbSeat = gs.SeatAt(game.DealerSeat)
		bbSeat = gs.nextSeat(game.DealerSeat, isActive)
	} else {
		sbSeat = gs.nextSeat(game.DealerSeat, isActive)
		bbSeat = gs.nextSeat(sbSeat.SeatIndex, isActive)
	}

	// an all-in blind is legal and caps that seat's exposure
	postBlind(sbSeat, game.Table.SmallBlind)
	postBlind(bbSeat, game.Table.BigBlind)

	// hole cards clockwise starting left of the dealer
	deal := gs.nextSeat(game.DealerSeat, isActive)
	for range dealt {
		cards, err := gs.Deck.Deal(2)
		if err != nil {
			return err
		}
		deal.SetHole(cards)
		deal = gs.nextSeat(deal.SeatIndex, isActive)
	}
	game.DeckCursor = gs.Deck.Cursor()

	game.CurrentBet = game.Table.BigBlind
	game.LastAggressorSeat = bbSeat.SeatIndex
	utg := gs.nextSeat(bbSeat.SeatIndex, func(pg *model.PlayerGame) bool {
		return pg.IsActive && pg.Stack > 0
	})
	if utg != nil {
		game.CurrentTurnSeat = utg.SeatIndex
	} else {
		game.CurrentTurnSeat = model.NoSeat
	}
	game.Pot = potTotal(gs.Seats)

	s.log.Info("hand started",
		zap.String("game_id", game.ID.String()),
		zap.Int("hand", game.HandCount),
		zap.Int("dealer_seat", game.DealerSeat),
		zap.Int("sb_seat", sbSeat.SeatIndex),
		zap.Int("bb_seat", bbSeat.SeatIndex))

	return s.checkInvariants(gs)
}

func postBlind(seat *model.PlayerGame, blind int64) {
	amt := blind
	if amt > seat.Stack {
		amt = seat.Stack
	}
	seat.Stack -= amt
	seat.CurrentBet = amt
	seat.TotalBetThisHand = amt
}

// ProcessAction validates and applies one player action. The returned
// GameAction row is the append-only log entry for the accepted action.
func (s *GameService) ProcessAction(gs *GameState, playerID uuid.UUID, actionType string, amount int64) (*model.GameAction, error) {
	game := gs.Game
	if game.Status != model.StatusPlaying || !gs.isBettingPhase() {
		return nil, model.Errorf(model.KindInvalidAction, "no betting round in progress")
	}
	seat := gs.SeatOf(playerID)
	if seat == nil {
		return nil, model.Errorf(model.KindGameNotFound, "player has no seat in this game")
	}
	if seat.CashedOut {
		return nil, model.Errorf(model.KindAlreadyCashedOut, "seat %d has cashed out", seat.SeatIndex)
	}
	if !seat.IsActive {
		return nil, model.Errorf(model.KindInvalidAction, "seat %d is not in this hand", seat.SeatIndex)
	}
	if game.CurrentTurnSeat != seat.SeatIndex {
		return nil, model.Errorf(model.KindNotYourTurn, "turn belongs to seat %d", game.CurrentTurnSeat)
	}

	// ALL_IN is sugar for committing the whole stack with whichever action
	// that amounts to
	if actionType == model.ActionAllIn {
		switch {
		case seat.Stack == 0:
			return nil, model.Errorf(model.KindInsufficientStack, "no chips behind")
		case game.CurrentBet == 0:
			actionType = model.ActionBet
			amount = seat.Stack
		case seat.CurrentBet+seat.Stack <= game.CurrentBet:
			actionType = model.ActionCall
		default:
			actionType = model.ActionRaise
			amount = seat.CurrentBet + seat.Stack
		}
	}

	var logged int64
	switch actionType {
	case model.ActionFold:
		seat.IsActive = false

	case model.ActionCheck:
		if seat.CurrentBet != game.CurrentBet {
			return nil, model.Errorf(model.KindCheckFacingBet, "facing a bet of %d", game.CurrentBet)
		}

	case model.ActionCall:
		if game.CurrentBet <= seat.CurrentBet {
			return nil, model.Errorf(model.KindInvalidAction, "nothing to call")
		}
		if seat.Stack == 0 {
			return nil, model.Errorf(model.KindInsufficientStack, "no chips behind")
		}
		gap := game.CurrentBet - seat.CurrentBet
		if gap > seat.Stack {
			// short call: all-in for the rest, round is not reopened
			gap = seat.Stack
		}
		seat.Stack -= gap
		seat.CurrentBet += gap
		seat.TotalBetThisHand += gap
		logged = gap

	case model.ActionBet:
		if game.CurrentBet != 0 {
			return nil, model.Errorf(model.KindInvalidAction, "there is already a bet, raise instead")
		}
		if amount <= 0 {
			return nil, model.Errorf(model.KindBetBelowMin, "bet must be positive")
		}
		if amount > seat.Stack {
			return nil, model.Errorf(model.KindInsufficientStack, "bet %d exceeds stack %d", amount, seat.Stack)
		}
		if amount < game.Table.BigBlind && amount != seat.Stack {
			return nil, model.Errorf(model.KindBetBelowMin, "bet must be at least the big blind %d", game.Table.BigBlind)
		}
		seat.Stack -= amount
		seat.CurrentBet += amount
		seat.TotalBetThisHand += amount
		game.CurrentBet = seat.CurrentBet
		game.LastRaiseIncrement = seat.CurrentBet
		game.LastAggressorSeat = seat.SeatIndex
		s.reopenAction(gs, seat)
		logged = amount

	case model.ActionRaise:
		if game.CurrentBet == 0 {
			return nil, model.Errorf(model.KindInvalidAction, "nothing to raise, bet instead")
		}
		if seat.RaiseCapped {
			return nil, model.Errorf(model.KindInvalidAction, "raising is capped after a short all-in")
		}
		needed := amount - seat.CurrentBet
		if needed <= 0 {
			return nil, model.Errorf(model.KindRaiseBelowMin, "raise total %d does not exceed current bet %d", amount, seat.CurrentBet)
		}
		if needed > seat.Stack {
			return nil, model.Errorf(model.KindInsufficientStack, "raise needs %d, stack is %d", needed, seat.Stack)
		}
		minIncrement := game.LastRaiseIncrement
		if minIncrement < game.Table.BigBlind {
			minIncrement = game.Table.BigBlind
		}
		minTotal := game.CurrentBet + minIncrement
		fullRaise := amount >= minTotal
		if !fullRaise && needed != seat.Stack {
			return nil, model.Errorf(model.KindRaiseBelowMin, "raise must reach at least %d", minTotal)
		}
		if amount <= game.CurrentBet {
			return nil, model.Errorf(model.KindRaiseBelowMin, "raise total %d does not exceed current bet %d", amount, game.CurrentBet)
		}
		seat.Stack -= needed
		seat.CurrentBet = amount
		seat.TotalBetThisHand += needed
		if fullRaise {
			game.LastRaiseIncrement = amount - game.CurrentBet
			game.CurrentBet = amount
			game.LastAggressorSeat = seat.SeatIndex
			s.reopenAction(gs, seat)
		} else {
			// undersized all-in: others must match the new total but seats
			// that had already matched the prior level may not re-raise
			prior := game.CurrentBet
			game.CurrentBet = amount
			for _, other := range gs.Seats {
				if other == seat || !other.IsActive || other.Stack == 0 {
					continue
				}
				if other.HasActed && other.CurrentBet == prior {
					other.RaiseCapped = true
				}
				other.HasActed = false
			}
		}
		logged = amount

	default:
		return nil, model.Errorf(model.KindInvalidAction, "unknown action %q", actionType)
	}

	seat.HasActed = true
	game.Pot = potTotal(gs.Seats)
	game.ActionSeq++

	action := &model.GameAction{
		GameID:     game.ID,
		Sequence:   game.ActionSeq,
		SeatIndex:  seat.SeatIndex,
		ActionType: actionType,
		Amount:     logged,
		Phase:      game.Phase,
		HandNumber: game.HandCount,
	}

	s.log.Info("action accepted",
		zap.String("game_id", game.ID.String()),
		zap.Int("seat", seat.SeatIndex),
		zap.String("action", actionType),
		zap.Int64("amount", logged))

	if err := s.checkInvariants(gs); err != nil {
		return nil, err
	}
	return action, nil
}

// reopenAction clears acted/capped flags on everyone else after a full bet
// or raise.
func (s *GameService) reopenAction(gs *GameState, aggressor *model.PlayerGame) {
	for _, other := range gs.Seats {
		if other != aggressor && other.IsActive {
			other.HasActed = false
			other.RaiseCapped = false
		}
	}
}

// Advance drives the state machine until the next actor is a human seat or
// the hand is over: it assigns turns, closes betting rounds, deals community
// cards, runs all-in boards out and resolves the showdown.
func (s *GameService) Advance(gs *GameState) (*AdvanceResult, error) {
	res := &AdvanceResult{}
	game := gs.Game
	for gs.isBettingPhase() {
		active := gs.activeSeats()
		if len(active) <= 1 {
			history, err := s.finishHand(gs, model.ReasonAllFolded)
			if err != nil {
				return nil, err
			}
			res.HandEnded = true
			res.History = history
			return res, nil
		}

		if next := s.pendingActor(gs); next != nil {
			game.CurrentTurnSeat = next.SeatIndex
			return res, nil
		}

		// betting round closed: sweep bets and move on
		for _, seat := range gs.Seats {
			seat.CurrentBet = 0
			seat.HasActed = false
			seat.RaiseCapped = false
		}
		game.CurrentBet = 0
		game.LastRaiseIncrement = game.Table.BigBlind
		game.LastAggressorSeat = model.NoSeat
		game.Pot = potTotal(gs.Seats)

		if game.Phase == model.PhaseRiver {
			history, err := s.finishHand(gs, model.ReasonShowdown)
			if err != nil {
				return nil, err
			}
			res.HandEnded = true
			res.History = history
			return res, nil
		}

		var n int
		switch game.Phase {
		case model.PhasePreflop:
			game.Phase, n = model.PhaseFlop, 3
		case model.PhaseFlop:
			game.Phase, n = model.PhaseTurn, 1
		case model.PhaseTurn:
			game.Phase, n = model.PhaseRiver, 1
		}
		cards, err := gs.Deck.Deal(n)
		if err != nil {
			return nil, err
		}
		game.SetCommunity(append(gs.Game.Community(), cards...))
		game.DeckCursor = gs.Deck.Cursor()

		first := gs.nextSeat(game.DealerSeat, func(pg *model.PlayerGame) bool {
			return pg.IsActive && pg.Stack > 0
		})
		if first != nil {
			game.CurrentTurnSeat = first.SeatIndex
		} else {
			game.CurrentTurnSeat = model.NoSeat
		}
	}
	return res, nil
}

// pendingActor finds the next seat that still owes a decision this round,
// scanning clockwise from the current turn seat (inclusive). Nil means the
// round is closed. Seats that are all-in are never pending, which is what
// runs out the board when nobody can act.
func (s *GameService) pendingActor(gs *GameState) *model.PlayerGame {
	game := gs.Game
	pending := func(pg *model.PlayerGame) bool {
		if !pg.IsActive || pg.Stack == 0 {
			return false
		}
		return !pg.HasActed || pg.CurrentBet < game.CurrentBet
	}
	if cur := gs.SeatAt(game.CurrentTurnSeat); cur != nil && pending(cur) {
		return cur
	}
	from := game.CurrentTurnSeat
	if from == model.NoSeat {
		from = game.DealerSeat
	}
	return gs.nextSeat(from, pending)
}

// finishHand pays the pot out, records winner info and the hand history row
// and parks the table in WAITING_FOR_PLAYERS.
func (s *GameService) finishHand(gs *GameState, reason string) (*model.HandHistory, error) {
	game := gs.Game
	pot := potTotal(gs.Seats)

	contributions := map[int]int64{}
	for _, seat := range gs.Seats {
		if seat.TotalBetThisHand > 0 {
			contributions[seat.SeatIndex] = seat.TotalBetThisHand
		}
	}

	info := model.WinnerInfo{
		Reason:      reason,
		HandNumber:  game.HandCount,
		PotTotal:    pot,
		MoneyChange: map[int]int64{},
	}

	var paid int64
	if reason == model.ReasonAllFolded {
		winner := gs.activeSeats()[0]
		winner.Stack += pot
		paid = pot
		info.Pots = []model.PotResult{{
			Type:     "single",
			Amount:   pot,
			Eligible: []int{winner.SeatIndex},
			Winners: []model.PotWinner{{
				SeatIndex: winner.SeatIndex,
				PlayerID:  winner.PlayerID.String(),
				Username:  winner.Player.Username,
				Amount:    pot,
			}},
		}}
	} else {
		community := game.Community()
		eligible := map[int]bool{}
		scores := map[int]HandScore{}
		// every seat that reached showdown shows its cards, winner or not
		for _, seat := range gs.activeSeats() {
			eligible[seat.SeatIndex] = true
			sc := EvaluateBestFive(append(append([]model.Card{}, seat.Hole()...), community...))
			scores[seat.SeatIndex] = sc
			info.ShownDown = append(info.ShownDown, model.ShowdownReveal{
				SeatIndex: seat.SeatIndex,
				PlayerID:  seat.PlayerID.String(),
				Username:  seat.Player.Username,
				HandName:  sc.Category.String(),
				BestFive:  model.CardStrings(sc.Cards),
				HoleCards: model.CardStrings(seat.Hole()),
			})
		}

		for _, sp := range BuildPots(contributions, eligible) {
			var best HandScore
			var winners []int
			for _, seatIdx := range sp.Eligible {
				sc := scores[seatIdx]
				cmp := 1
				if len(winners) > 0 {
					cmp = CompareScores(sc, best)
				}
				if cmp > 0 {
					best = sc
					winners = []int{seatIdx}
				} else if cmp == 0 {
					winners = append(winners, seatIdx)
				}
			}
			awards := AwardPot(sp, winners, game.DealerSeat, game.Table.MaxSeats)

			result := model.PotResult{
				Type:     "single",
				Amount:   sp.Amount,
				Eligible: sp.Eligible,
			}
			if len(awards) > 1 {
				result.Type = "split"
			}
			for _, award := range awards {
				seat := gs.SeatAt(award.SeatIndex)
				seat.Stack += award.Amount
				paid += award.Amount
				sc := scores[award.SeatIndex]
				result.Winners = append(result.Winners, model.PotWinner{
					SeatIndex: seat.SeatIndex,
					PlayerID:  seat.PlayerID.String(),
					Username:  seat.Player.Username,
					Amount:    award.Amount,
					HandName:  sc.Category.String(),
					BestFive:  model.CardStrings(sc.Cards),
					HoleCards: model.CardStrings(seat.Hole()),
				})
			}
			info.Pots = append(info.Pots, result)
		}
	}

	if paid != pot {
		return nil, s.fault(gs, "payout %d does not match pot %d", paid, pot)
	}

	for seatIdx, contributed := range contributions {
		info.MoneyChange[seatIdx] -= contributed
	}
	for _, p := range info.Pots {
		for _, w := range p.Winners {
			info.MoneyChange[w.SeatIndex] += w.Amount
		}
	}

	infoRaw, _ := json.Marshal(info)
	game.WinnerInfo = infoRaw

	contribRaw, _ := json.Marshal(contributions)
	history := &model.HandHistory{
		ID:             uuid.New(),
		GameID:         game.ID,
		HandNumber:     game.HandCount,
		DealerSeat:     game.DealerSeat,
		CommunityCards: game.CommunityCards,
		PotTotal:       pot,
		WinnerInfo:     infoRaw,
		Contributions:  contribRaw,
	}

	game.Phase = model.PhaseWaitingForPlayers
	game.Pot = 0
	game.CurrentBet = 0
	game.CurrentTurnSeat = model.NoSeat
	game.LastAggressorSeat = model.NoSeat
	for _, seat := range gs.Seats {
		seat.IsActive = false
		seat.CurrentBet = 0
		seat.HasActed = false
		seat.RaiseCapped = false
		seat.ReadyForNextHand = false
		// seats that joined or bought back in mid-hand are dealt the next hand
		seat.SittingOut = false
	}

	s.log.Info("hand finished",
		zap.String("game_id", game.ID.String()),
		zap.Int("hand", game.HandCount),
		zap.String("reason", reason),
		zap.Int64("pot", pot))

	return history, s.checkInvariants(gs)
}

// TryStartNextHand starts a new hand once every seated (non-cashed-out) seat
// has signalled ready. Returns true when a hand was started.
func (s *GameService) TryStartNextHand(gs *GameState) (bool, error) {
	if gs.Game.Status != model.StatusPlaying || gs.Game.Phase != model.PhaseWaitingForPlayers {
		return false, nil
	}
	seated := gs.seatedSeats()
	if len(seated) == 0 {
		return false, nil
	}
	for _, seat := range seated {
		if !seat.ReadyForNextHand {
			return false, nil
		}
	}
	if len(gs.dealtInSeats()) < 2 {
		return false, nil
	}
	return true, s.startHand(gs)
}

// ForceStartNextHand is the ready-timeout path: seats that never signalled
// sit the next hand out, and the hand starts if two funded ready seats
// remain.
func (s *GameService) ForceStartNextHand(gs *GameState) (bool, error) {
	if gs.Game.Status != model.StatusPlaying || gs.Game.Phase != model.PhaseWaitingForPlayers {
		return false, nil
	}
	ready := 0
	for _, seat := range gs.seatedSeats() {
		if !seat.ReadyForNextHand {
			seat.SittingOut = true
		} else if seat.Stack > 0 {
			ready++
		}
	}
	if ready < 2 {
		// keep waiting; nobody is left marked sitting out while the table waits
		for _, seat := range gs.Seats {
			seat.SittingOut = false
		}
		return false, nil
	}
	return true, s.startHand(gs)
}

// fault marks the game as needing operator attention and returns the
// invariant violation as an engine fault. The caller discards the mutation;
// the last committed snapshot stays authoritative.
func (s *GameService) fault(gs *GameState, format string, args ...any) error {
	gs.Game.Status = model.StatusFaulted
	err := model.Errorf(model.KindEngineFault, format, args...)
	s.log.Error("engine invariant violated",
		zap.String("game_id", gs.Game.ID.String()),
		zap.Error(err))
	return err
}

// checkInvariants verifies the money and card invariants that must hold at
// every observable point.
func (s *GameService) checkInvariants(gs *GameState) error {
	game := gs.Game
	for _, seat := range gs.Seats {
		if seat.Stack < 0 {
			return s.fault(gs, "seat %d stack is negative: %d", seat.SeatIndex, seat.Stack)
		}
		if seat.CurrentBet > seat.TotalBetThisHand {
			return s.fault(gs, "seat %d round bet %d exceeds hand bet %d", seat.SeatIndex, seat.CurrentBet, seat.TotalBetThisHand)
		}
		if h := seat.Hole(); len(h) != 0 && len(h) != 2 {
			return s.fault(gs, "seat %d holds %d cards", seat.SeatIndex, len(h))
		}
	}
	if gs.isBettingPhase() && game.Pot != potTotal(gs.Seats) {
		return s.fault(gs, "pot %d does not match contributions %d", game.Pot, potTotal(gs.Seats))
	}
	seen := map[model.Card]int{}
	for _, c := range game.Community() {
		seen[c]++
	}
	for _, seat := range gs.Seats {
		for _, c := range seat.Hole() {
			seen[c]++
		}
	}
	for c, n := range seen {
		if n > 1 {
			return s.fault(gs, "card %s dealt %d times", c, n)
		}
	}
	return nil
}

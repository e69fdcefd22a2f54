package tactics

import "testing"

func mustApply(t *testing.T, gs *GameState, a Action) *GameState {
	t.Helper()
	next, err := Apply(gs, a)
	if err != nil {
		t.Fatalf("Apply(%s): %v", a.Type, err)
	}
	return next
}

func TestApplyMove(t *testing.T) {
	gs := newTestState(
		mkUnit("p1-m", P1, Position{X: 1, Y: 1}, 3, 1),
		mkUnit("p2-m", P2, Position{X: 4, Y: 4}, 3, 1),
	)

	next := mustApply(t, gs, Action{Type: ActionMove, Player: P1, UnitID: "p1-m", Target: pos(1, 2)})

	if got := next.UnitByID("p1-m").Position; got != (Position{X: 1, Y: 2}) {
		t.Errorf("unit at %v, want (1,2)", got)
	}
	if next.UnitByID("p1-m").ActionsUsed != 1 {
		t.Error("expected one action used")
	}
	if next.CurrentPlayer != P2 {
		t.Errorf("expected turn to pass to P2, got %s", next.CurrentPlayer)
	}
	// Input snapshot is untouched.
	if gs.UnitByID("p1-m").Position != (Position{X: 1, Y: 1}) {
		t.Error("Apply mutated its input state")
	}
	if gs.UnitByID("p1-m").ActionsUsed != 0 {
		t.Error("Apply mutated input unit bookkeeping")
	}
}

func TestApplyMoveOntoBuffTile(t *testing.T) {
	gs := newTestState(
		mkUnit("p1-m", P1, Position{X: 1, Y: 1}, 3, 1),
		mkUnit("p2-m", P2, Position{X: 4, Y: 4}, 3, 1),
	)
	gs.BuffTiles = []BuffTile{{ID: "t1", Position: Position{X: 1, Y: 2}, BuffType: BuffPower, DurationRounds: 3}}

	next := mustApply(t, gs, Action{Type: ActionMove, Player: P1, UnitID: "p1-m", Target: pos(1, 2)})

	if !next.HasBuff("p1-m", BuffPower) {
		t.Error("expected POWER buff from tile")
	}
	if len(next.BuffTiles) != 0 {
		t.Error("expected tile consumed")
	}
	if got := next.EffectiveAttack(next.UnitByID("p1-m")); got != 2 {
		t.Errorf("EffectiveAttack = %d, want 2", got)
	}
}

func TestApplyAttackDamages(t *testing.T) {
	gs := newTestState(
		mkUnit("p1-m", P1, Position{X: 2, Y: 2}, 3, 1),
		mkUnit("p2-m", P2, Position{X: 2, Y: 3}, 3, 1),
	)

	next := mustApply(t, gs, Action{Type: ActionAttack, Player: P1, UnitID: "p1-m", TargetUnitID: "p2-m"})

	if got := next.UnitByID("p2-m").HP; got != 2 {
		t.Errorf("target HP = %d, want 2", got)
	}
	if gs.UnitByID("p2-m").HP != 3 {
		t.Error("Apply mutated input target")
	}
}

func TestApplyKillPromptsDeathChoice(t *testing.T) {
	killer := mkUnit("p1-m", P1, Position{X: 2, Y: 2}, 3, 3)
	gs := newTestState(
		killer,
		mkUnit("p2-a", P2, Position{X: 2, Y: 3}, 3, 1),
		mkUnit("p2-b", P2, Position{X: 4, Y: 4}, 3, 1),
	)

	next := mustApply(t, gs, Action{Type: ActionAttack, Player: P1, UnitID: "p1-m", TargetUnitID: "p2-a"})

	dc := next.PendingDeathChoice
	if dc == nil {
		t.Fatal("expected a pending death choice")
	}
	if dc.Owner != P2 || dc.DeadUnitID != "p2-a" || dc.Position != (Position{X: 2, Y: 3}) {
		t.Errorf("unexpected death choice: %+v", dc)
	}
	if dc.ResumePlayer != P2 {
		t.Errorf("ResumePlayer = %s, want P2", dc.ResumePlayer)
	}
	if next.CurrentPlayer != P2 {
		t.Errorf("floor should go to the bereaved owner, got %s", next.CurrentPlayer)
	}
	if next.UnitByID("p2-a") != nil {
		t.Error("dead minion should be removed from the board")
	}

	// Everything except the choice is rejected while it is pending.
	_, err := Apply(next, Action{Type: ActionMove, Player: P2, UnitID: "p2-b", Target: pos(4, 3)})
	wantInvalid(t, err, "death choice pending")
}

func TestApplyDeathChoiceSpawnsAndResumes(t *testing.T) {
	killer := mkUnit("p1-m", P1, Position{X: 2, Y: 2}, 3, 3)
	gs := newTestState(
		killer,
		mkUnit("p2-a", P2, Position{X: 2, Y: 3}, 3, 1),
		mkUnit("p2-b", P2, Position{X: 4, Y: 4}, 3, 1),
	)
	afterKill := mustApply(t, gs, Action{Type: ActionAttack, Player: P1, UnitID: "p1-m", TargetUnitID: "p2-a"})

	next := mustApply(t, afterKill, Action{Type: ActionDeathChoice, Player: P2, Choice: SpawnObstacle})

	if next.PendingDeathChoice != nil {
		t.Error("death choice should be cleared")
	}
	if next.ObstacleAt(Position{X: 2, Y: 3}) == nil {
		t.Error("expected an obstacle at the death position")
	}
	if next.CurrentPlayer != P2 {
		t.Errorf("turn should resume with P2, got %s", next.CurrentPlayer)
	}

	tile := mustApply(t, afterKill, Action{Type: ActionDeathChoice, Player: P2, Choice: SpawnBuffTile})
	bt := tile.BuffTileAt(Position{X: 2, Y: 3})
	if bt == nil {
		t.Fatal("expected a buff tile at the death position")
	}
	if bt.BuffType != BuffPower || bt.DurationRounds != 3 {
		t.Errorf("unexpected tile: %+v", bt)
	}
}

func TestApplyHeroKillEndsGame(t *testing.T) {
	killer := mkUnit("p1-m", P1, Position{X: 2, Y: 2}, 3, 5)
	gs := newTestState(
		killer,
		mkHero("p2-hero", P2, Position{X: 2, Y: 3}, 5),
	)

	next := mustApply(t, gs, Action{Type: ActionAttack, Player: P1, UnitID: "p1-m", TargetUnitID: "p2-hero"})

	if !next.GameOver {
		t.Fatal("expected game over")
	}
	if next.Winner == nil || *next.Winner != P1 {
		t.Errorf("winner = %v, want P1", next.Winner)
	}
	if next.PendingDeathChoice != nil {
		t.Error("hero death must not prompt a death choice")
	}

	_, err := Apply(next, Action{Type: ActionEndTurn, Player: P1})
	wantInvalid(t, err, "game ended")
}

func TestGuardianIntercepts(t *testing.T) {
	tank := mkUnit("p2-tank", P2, Position{X: 2, Y: 4}, 5, 1)
	tank.MinionType = Tank
	gs := newTestState(
		mkUnit("p1-m", P1, Position{X: 2, Y: 2}, 3, 1),
		mkUnit("p2-archer", P2, Position{X: 2, Y: 3}, 3, 1),
		tank,
	)

	next := mustApply(t, gs, Action{Type: ActionAttack, Player: P1, UnitID: "p1-m", TargetUnitID: "p2-archer"})

	if got := next.UnitByID("p2-archer").HP; got != 3 {
		t.Errorf("archer HP = %d, want 3 (tank intercepts)", got)
	}
	if got := next.UnitByID("p2-tank").HP; got != 4 {
		t.Errorf("tank HP = %d, want 4", got)
	}
}

func TestGuardianNeverInterceptsForTank(t *testing.T) {
	target := mkUnit("p2-tank-a", P2, Position{X: 2, Y: 3}, 5, 1)
	target.MinionType = Tank
	other := mkUnit("p2-tank-b", P2, Position{X: 2, Y: 4}, 5, 1)
	other.MinionType = Tank
	gs := newTestState(
		mkUnit("p1-m", P1, Position{X: 2, Y: 2}, 3, 1),
		target, other,
	)

	next := mustApply(t, gs, Action{Type: ActionAttack, Player: P1, UnitID: "p1-m", TargetUnitID: "p2-tank-a"})

	if got := next.UnitByID("p2-tank-a").HP; got != 4 {
		t.Errorf("targeted tank HP = %d, want 4", got)
	}
	if got := next.UnitByID("p2-tank-b").HP; got != 5 {
		t.Errorf("bystander tank HP = %d, want 5", got)
	}
}

func TestSpeedGrantsTwoActions(t *testing.T) {
	// P2 starts exhausted and P1 keeps a fresh unit, so the floor stays
	// with P1 after p1-m spends its allowance and the third p1-m action
	// hits the allowance gate rather than the turn gate.
	spent := mkUnit("p2-m", P2, Position{X: 4, Y: 4}, 3, 1)
	spent.ActionsUsed = 1
	gs := newTestState(
		mkUnit("p1-m", P1, Position{X: 1, Y: 1}, 3, 1),
		mkUnit("p1-b", P1, Position{X: 3, Y: 0}, 3, 1),
		spent,
	)
	gs.UnitBuffs["p1-m"] = []BuffInstance{{ID: "s", Type: BuffSpeed, DurationRounds: 1}}

	first := mustApply(t, gs, Action{Type: ActionMove, Player: P1, UnitID: "p1-m", Target: pos(1, 2)})
	if first.CurrentPlayer != P1 {
		t.Fatalf("SPEED unit should keep the floor, got %s", first.CurrentPlayer)
	}
	if first.UnitByID("p1-m").GrantedActions != 2 {
		t.Errorf("GrantedActions = %d, want 2", first.UnitByID("p1-m").GrantedActions)
	}

	// The latch survives even if the buff vanishes mid-round.
	first.UnitBuffs = make(map[string][]BuffInstance)
	second := mustApply(t, first, Action{Type: ActionMove, Player: P1, UnitID: "p1-m", Target: pos(1, 3)})
	if second.CurrentPlayer != P1 {
		t.Errorf("P2 is exhausted; P1 keeps the floor, got %s", second.CurrentPlayer)
	}

	_, err := Apply(second, Action{Type: ActionMove, Player: P1, UnitID: "p1-m", Target: pos(1, 4)})
	wantInvalid(t, err, "no actions left")
}

func TestExhaustionRuleKeepsFloor(t *testing.T) {
	spent := mkUnit("p2-m", P2, Position{X: 4, Y: 4}, 3, 1)
	spent.ActionsUsed = 1
	gs := newTestState(
		mkUnit("p1-a", P1, Position{X: 0, Y: 0}, 3, 1),
		mkUnit("p1-b", P1, Position{X: 2, Y: 2}, 3, 1),
		spent,
	)

	next := mustApply(t, gs, Action{Type: ActionMove, Player: P1, UnitID: "p1-a", Target: pos(0, 1)})
	if next.CurrentPlayer != P1 {
		t.Errorf("P2 is exhausted; P1 keeps the floor, got %s", next.CurrentPlayer)
	}
}

func TestEndTurnSpendsAllUnits(t *testing.T) {
	gs := newTestState(
		mkUnit("p1-a", P1, Position{X: 0, Y: 0}, 3, 1),
		mkUnit("p1-b", P1, Position{X: 2, Y: 2}, 3, 1),
		mkUnit("p2-m", P2, Position{X: 4, Y: 4}, 3, 1),
	)

	next := mustApply(t, gs, Action{Type: ActionEndTurn, Player: P1})

	if next.CurrentPlayer != P2 {
		t.Errorf("turn should pass to P2, got %s", next.CurrentPlayer)
	}
	if next.PlayerCanAct(P1) {
		t.Error("all P1 units should be spent after END_TURN")
	}
	if next.CurrentRound != 1 {
		t.Errorf("round should not advance yet, got %d", next.CurrentRound)
	}
}

func TestEndTurnByLastPlayerEndsRound(t *testing.T) {
	spent := mkUnit("p2-m", P2, Position{X: 4, Y: 4}, 3, 1)
	spent.ActionsUsed = 1
	gs := newTestState(
		mkUnit("p1-m", P1, Position{X: 0, Y: 0}, 3, 1),
		spent,
	)

	next := mustApply(t, gs, Action{Type: ActionEndTurn, Player: P1})

	if next.CurrentRound != 2 {
		t.Errorf("round = %d, want 2", next.CurrentRound)
	}
	if next.CurrentPlayer != P1 {
		t.Errorf("new round starts with P1, got %s", next.CurrentPlayer)
	}
	if !next.PlayerCanAct(P1) || !next.PlayerCanAct(P2) {
		t.Error("action budgets should reset at round end")
	}
}

func TestSlowUnitDeclaresInsteadOfActing(t *testing.T) {
	gs := newTestState(
		mkUnit("p1-m", P1, Position{X: 1, Y: 1}, 3, 1),
		mkUnit("p2-m", P2, Position{X: 4, Y: 4}, 3, 1),
	)
	gs.UnitBuffs["p1-m"] = []BuffInstance{{ID: "sl", Type: BuffSlow, DurationRounds: 1}}

	next := mustApply(t, gs, Action{Type: ActionMove, Player: P1, UnitID: "p1-m", Target: pos(1, 2)})

	u := next.UnitByID("p1-m")
	if u.Position != (Position{X: 1, Y: 1}) {
		t.Error("SLOW unit must not move immediately")
	}
	if !u.Preparing || u.PendingAction == nil {
		t.Fatal("expected a captured declaration")
	}
	if u.PendingAction.Type != ActionMove {
		t.Errorf("captured %s, want MOVE", u.PendingAction.Type)
	}
	if u.ActionsUsed != 1 {
		t.Error("declaring consumes the action")
	}
	if next.CurrentPlayer != P2 {
		t.Errorf("turn advances after the declaration, got %s", next.CurrentPlayer)
	}
}

func TestMoveAndAttackExecutesBoth(t *testing.T) {
	gs := newTestState(
		mkUnit("p1-m", P1, Position{X: 0, Y: 0}, 3, 1),
		mkUnit("p2-m", P2, Position{X: 0, Y: 2}, 3, 1),
	)

	next := mustApply(t, gs, Action{Type: ActionMoveAndAttack, Player: P1, UnitID: "p1-m", Target: pos(0, 1), TargetUnitID: "p2-m"})

	if next.UnitByID("p1-m").Position != (Position{X: 0, Y: 1}) {
		t.Error("move step did not land")
	}
	if got := next.UnitByID("p2-m").HP; got != 2 {
		t.Errorf("target HP = %d, want 2", got)
	}
	if next.UnitByID("p1-m").ActionsUsed != 1 {
		t.Error("combined action costs a single action")
	}
}

func TestMultiKillYieldsSingleDeathChoice(t *testing.T) {
	hero := mkHero("p1-hero", P1, Position{X: 2, Y: 2}, 5)
	hero.SelectedSkillID = "shockwave"
	gs := newTestState(
		hero,
		mkUnit("p2-a", P2, Position{X: 2, Y: 3}, 1, 1),
		mkUnit("p2-b", P2, Position{X: 2, Y: 1}, 1, 1),
		mkUnit("p2-c", P2, Position{X: 4, Y: 4}, 3, 1),
	)

	next := mustApply(t, gs, Action{Type: ActionUseSkill, Player: P1, UnitID: "p1-hero"})

	if next.PendingDeathChoice == nil {
		t.Fatal("expected one pending death choice")
	}
	// The second casualty resolves like a round-end death: round 1 is odd,
	// so an obstacle appears at one of the two death squares.
	obstacles := len(next.Obstacles)
	if obstacles != 1 {
		t.Errorf("obstacles = %d, want 1", obstacles)
	}
	if next.UnitByID("p2-a") != nil || next.UnitByID("p2-b") != nil {
		t.Error("both casualties should be removed")
	}
}

func TestSkillSetsCooldown(t *testing.T) {
	hero := mkHero("p1-hero", P1, Position{X: 2, Y: 2}, 5)
	gs := newTestState(hero, mkUnit("p2-m", P2, Position{X: 4, Y: 4}, 3, 1))

	next := mustApply(t, gs, Action{Type: ActionUseSkill, Player: P1, UnitID: "p1-hero"})

	if got := next.UnitByID("p1-hero").SkillCooldown; got != DefaultSkillCooldown {
		t.Errorf("cooldown = %d, want %d", got, DefaultSkillCooldown)
	}
	if !next.HasBuff("p1-hero", BuffPower) {
		t.Error("power_strike should grant POWER")
	}
}

func TestObstacleOverwritesBuffTile(t *testing.T) {
	gs := newTestState(mkUnit("p1-m", P1, Position{X: 0, Y: 0}, 3, 1))
	gs.BuffTiles = []BuffTile{{ID: "t1", Position: Position{X: 2, Y: 2}, BuffType: BuffPower, DurationRounds: 3}}

	placeObstacle(gs, Position{X: 2, Y: 2})

	if gs.BuffTileAt(Position{X: 2, Y: 2}) != nil {
		t.Error("buff tile should be overwritten")
	}
	if gs.ObstacleAt(Position{X: 2, Y: 2}) == nil {
		t.Error("obstacle should occupy the square")
	}
	if len(gs.Obstacles)+len(gs.BuffTiles) != 1 {
		t.Error("a square holds at most one terrain feature")
	}
}

func TestApplyTimeoutPenalty(t *testing.T) {
	gs := newTestState(
		mkHero("p1-hero", P1, Position{X: 2, Y: 0}, 5),
		mkHero("p2-hero", P2, Position{X: 2, Y: 4}, 1),
	)

	next := ApplyTimeoutPenalty(gs, P1)
	if got := next.HeroOf(P1).HP; got != 4 {
		t.Errorf("hero HP = %d, want 4", got)
	}
	if gs.HeroOf(P1).HP != 5 {
		t.Error("penalty mutated its input")
	}

	fatal := ApplyTimeoutPenalty(gs, P2)
	if !fatal.GameOver || fatal.Winner == nil || *fatal.Winner != P1 {
		t.Error("penalty that kills the hero ends the game for the opponent")
	}
}

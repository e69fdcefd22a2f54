package tactics

// ApplyTimeoutPenalty deducts 1 HP from the player's hero, the cost of
// letting the action clock run out. Returns the successor state; if the
// penalty kills the hero the game is over with the opponent as winner.
func ApplyTimeoutPenalty(gs *GameState, player PlayerID) *GameState {
	next := gs.Clone()
	hero := next.HeroOf(player)
	if hero == nil || !hero.Alive() {
		return next
	}
	dealDamage(next, hero, 1, causeSystem)
	return next
}

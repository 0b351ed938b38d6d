// Package state provides a per-user conversation session store: the current
// FSM state plus temporary data accumulated across turns.
package state

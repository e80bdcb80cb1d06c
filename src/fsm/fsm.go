// Package fsm provides guarded status transitions for any entity with a
// status column. Lifecycle engines declare a Machine per status vocabulary
// and route every status write through Transition; nothing else in the
// codebase mutates a status field.
package fsm

import (
	"slices"

	"etix/src/types"
)

// Table maps each status to the set of statuses reachable from it. A
// status mapped to an empty slice is terminal.
type Table[S ~string] map[S][]S

// StatusWriter persists the new status. The caller supplies a closure bound
// to its repository and transaction so the write happens atomically with
// the rest of the operation.
type StatusWriter[S ~string] func(target S) error

type Machine[S ~string] struct {
	table Table[S]
}

func New[S ~string](table Table[S]) Machine[S] {
	return Machine[S]{table: table}
}

// Known reports whether s belongs to the machine's status vocabulary.
func (m Machine[S]) Known(s S) bool {
	_, ok := m.table[s]
	return ok
}

func (m Machine[S]) Terminal(s S) bool {
	next, ok := m.table[s]
	return ok && len(next) == 0
}

// CanTransition is true for the idempotent no-op (current == target) and
// for any target listed in the table for current.
func (m Machine[S]) CanTransition(current, target S) bool {
	if current == target {
		return true
	}
	return slices.Contains(m.table[current], target)
}

// Transition validates the move and, unless it is a no-op, persists it
// through write. Unknown targets fail with InvalidStatus, disallowed moves
// with IllegalTransition; neither is ever silently ignored.
func (m Machine[S]) Transition(current, target S, write StatusWriter[S]) error {
	if !m.Known(target) {
		return types.NewError(types.ErrInvalidStatus, "unknown status %q", string(target))
	}
	if !m.CanTransition(current, target) {
		return types.NewError(types.ErrIllegalTransition, "cannot transition from %q to %q", string(current), string(target))
	}
	if current == target {
		return nil
	}
	return write(target)
}

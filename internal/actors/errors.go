package actors

import "fmt"

// Deadlock is raised when every actor is Blocked (or settled) and no
// pending message can unblock any of them — a VmError kind at the
// scheduler level rather than inside a single Vm (spec.md §4.1, §4.4).
type Deadlock struct {
	Round int
}

func (e *Deadlock) Error() string {
	return fmt.Sprintf("E_RUNTIME: Deadlock: no actor can make progress at round %d", e.Round)
}

// MaxRoundsExceeded is raised when the scheduler exceeds its
// configured round budget without the system settling.
type MaxRoundsExceeded struct {
	Limit int
}

func (e *MaxRoundsExceeded) Error() string {
	return fmt.Sprintf("E_RUNTIME: MaxRoundsExceeded: scheduler exceeded %d rounds", e.Limit)
}

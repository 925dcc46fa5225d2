package orchestrator

import (
	"fmt"
	"sort"
)

// LockConflict reports that a node's output module is already held by
// another node.
type LockConflict struct {
	Module    string
	HeldBy    string
	Requester string
}

func (e *LockConflict) Error() string {
	return fmt.Sprintf("E_ORCHESTRATOR: module %q locked by %q, requested by %q", e.Module, e.HeldBy, e.Requester)
}

// Scheduler drives a WorkGraph's node lifecycle: topological
// readiness, role-scoped assignment, and a lock table over each
// node's output modules.
type Scheduler struct {
	Graph       WorkGraph
	MaxParallel int

	locks map[string]string // module -> holder node id
}

func NewScheduler(graph WorkGraph, maxParallel int) *Scheduler {
	return &Scheduler{Graph: graph, MaxParallel: maxParallel, locks: make(map[string]string)}
}

// Validate checks the dependency graph is acyclic via Kahn's
// algorithm, reporting how many of the nodes were reachable.
func (s *Scheduler) Validate() error {
	_, err := s.TopologicalOrder()
	return err
}

// TopologicalOrder returns node ids in dependency order, ties broken
// by sorted id for determinism (spec.md §4.7's tie-break rule, reused
// here for the review DAG).
func (s *Scheduler) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(s.Graph.Nodes))
	dependents := make(map[string][]string)
	for _, n := range s.Graph.Nodes {
		if _, ok := inDegree[n.ID]; !ok {
			inDegree[n.ID] = 0
		}
		inDegree[n.ID] += len(n.Dependencies)
		for _, dep := range n.Dependencies {
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		sort.Strings(queue)
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, child := range dependents[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != len(s.Graph.Nodes) {
		return order, fmt.Errorf("E_ORCHESTRATOR: cycle detected: visited %d of %d nodes", len(order), len(s.Graph.Nodes))
	}
	return order, nil
}

// ReadyNodes returns, in id order, the Pending nodes whose
// dependencies have all Passed, bounded by the number of Running
// slots MaxParallel still has free.
func (s *Scheduler) ReadyNodes() []string {
	passed := make(map[string]bool)
	running := 0
	for _, n := range s.Graph.Nodes {
		if n.Status == Passed {
			passed[n.ID] = true
		}
		if n.Status == Running {
			running++
		}
	}
	slots := s.MaxParallel - running
	if slots <= 0 {
		return nil
	}

	var candidates []string
	for _, n := range s.Graph.Nodes {
		if n.Status != Pending {
			continue
		}
		depsOK := true
		for _, dep := range n.Dependencies {
			if !passed[dep] {
				depsOK = false
				break
			}
		}
		if depsOK {
			candidates = append(candidates, n.ID)
		}
	}
	sort.Strings(candidates)
	if len(candidates) > slots {
		candidates = candidates[:slots]
	}
	return candidates
}

// Advance transitions every currently-ready Pending node to Ready and
// returns their ids.
func (s *Scheduler) Advance() []string {
	ready := s.ReadyNodes()
	for _, id := range ready {
		s.Graph.Nodes[s.Graph.nodeIndex(id)].Status = Ready
	}
	return ready
}

// AssignNext advances pending nodes, then picks the first Ready node
// (sorted by id) owned by role, acquires locks on its output modules,
// and moves it to Running. A lock conflict with another live node's
// held module instead moves the node to Blocked and returns the
// conflict.
func (s *Scheduler) AssignNext(role Role) (string, error) {
	s.Advance()

	var candidates []string
	for _, n := range s.Graph.Nodes {
		if n.Status == Ready {
			candidates = append(candidates, n.ID)
		}
	}
	sort.Strings(candidates)

	for _, id := range candidates {
		idx := s.Graph.nodeIndex(id)
		n := &s.Graph.Nodes[idx]
		if n.Status != Ready || n.OwnerRole != role {
			continue
		}

		if conflict := s.tryAcquire(n); conflict != nil {
			n.Status = Blocked
			return "", conflict
		}
		n.Status = Running
		return n.ID, nil
	}
	return "", nil
}

func (s *Scheduler) tryAcquire(n *WorkNode) *LockConflict {
	for _, mod := range n.OutputModules {
		if holder, held := s.locks[mod]; held && holder != n.ID {
			return &LockConflict{Module: mod, HeldBy: holder, Requester: n.ID}
		}
	}
	for _, mod := range n.OutputModules {
		s.locks[mod] = n.ID
	}
	return nil
}

func (s *Scheduler) releaseLocks(n *WorkNode) {
	for _, mod := range n.OutputModules {
		if s.locks[mod] == n.ID {
			delete(s.locks, mod)
		}
	}
}

func (s *Scheduler) setStatus(nodeID string, status NodeStatus) error {
	idx := s.Graph.nodeIndex(nodeID)
	if idx < 0 {
		return fmt.Errorf("E_ORCHESTRATOR: node not found: %s", nodeID)
	}
	s.Graph.Nodes[idx].Status = status
	return nil
}

// MarkPassed marks a node Passed and releases any locks it held — its
// output modules are now available to dependent nodes.
func (s *Scheduler) MarkPassed(nodeID string) error {
	if err := s.setStatus(nodeID, Passed); err != nil {
		return err
	}
	s.releaseLocks(&s.Graph.Nodes[s.Graph.nodeIndex(nodeID)])
	return nil
}

// MarkFailed marks a node Failed and releases its locks.
func (s *Scheduler) MarkFailed(nodeID string) error {
	if err := s.setStatus(nodeID, Failed); err != nil {
		return err
	}
	s.releaseLocks(&s.Graph.Nodes[s.Graph.nodeIndex(nodeID)])
	return nil
}

// MarkBlocked marks a node Blocked without touching its locks.
func (s *Scheduler) MarkBlocked(nodeID string) error {
	return s.setStatus(nodeID, Blocked)
}

// Summary tallies node counts by status.
type Summary struct {
	Total, Pending, Ready, Running, Blocked, Failed, Passed int
}

func (s *Scheduler) Summary() Summary {
	sum := Summary{Total: len(s.Graph.Nodes)}
	for _, n := range s.Graph.Nodes {
		switch n.Status {
		case Pending:
			sum.Pending++
		case Ready:
			sum.Ready++
		case Running:
			sum.Running++
		case Blocked:
			sum.Blocked++
		case Failed:
			sum.Failed++
		case Passed:
			sum.Passed++
		}
	}
	return sum
}

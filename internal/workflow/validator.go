package workflow

import (
	"fmt"
	"sort"

	"boruna/internal/value"
)

// ValidationError reports everything wrong with a WorkflowDef in one
// pass, rather than failing at the first problem — spec.md §4.7 calls
// for a complete diagnostic, not a fail-fast check.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	msg := "E_WORKFLOW: validation failed:"
	for _, p := range e.Problems {
		msg += "\n  - " + p
	}
	return msg
}

// Validate runs all validation rules against def and, if it passes,
// returns the deterministic topological execution order (Kahn's
// algorithm, ties broken by sorted step id).
func Validate(def WorkflowDef, module *value.Module) ([]string, error) {
	var problems []string

	if def.Name == "" {
		problems = append(problems, "workflow name is empty")
	}
	if def.Version == "" {
		problems = append(problems, "workflow version is empty")
	}
	if len(def.Steps) == 0 {
		problems = append(problems, "workflow has no steps")
		return nil, &ValidationError{Problems: problems}
	}

	seen := make(map[string]bool, len(def.Steps))
	for _, s := range def.Steps {
		if s.ID == "" {
			problems = append(problems, "step has empty id")
			continue
		}
		if seen[s.ID] {
			problems = append(problems, fmt.Sprintf("duplicate step id %q", s.ID))
		}
		seen[s.ID] = true
	}

	for _, s := range def.Steps {
		if s.ApprovalGate {
			if s.RequiredRole == "" {
				problems = append(problems, fmt.Sprintf("step %q is an approval gate with no required_role", s.ID))
			}
		} else if s.Path == "" {
			problems = append(problems, fmt.Sprintf("step %q has no source path", s.ID))
		}
	}

	for _, s := range def.Steps {
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				problems = append(problems, fmt.Sprintf("step %q depends on itself", s.ID))
				continue
			}
			if !seen[dep] {
				problems = append(problems, fmt.Sprintf("step %q depends on unknown step %q", s.ID, dep))
			}
		}
	}

	for _, e := range def.Edges {
		if !seen[e.From] {
			problems = append(problems, fmt.Sprintf("edge references unknown step %q", e.From))
		}
		if !seen[e.To] {
			problems = append(problems, fmt.Sprintf("edge references unknown step %q", e.To))
		}
	}
	seenEdges := make(map[Edge]bool, len(def.Edges))
	for _, e := range def.Edges {
		if seenEdges[e] {
			problems = append(problems, fmt.Sprintf("duplicate edge: %s -> %s", e.From, e.To))
		}
		seenEdges[e] = true
	}

	for _, s := range def.Steps {
		if int(s.FuncIdx) >= len(module.Functions) {
			problems = append(problems, fmt.Sprintf("step %q references out-of-range function %d", s.ID, s.FuncIdx))
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	order, resolved, total, ok := topologicalOrder(def)
	if !ok {
		problems = append(problems, fmt.Sprintf("dependency cycle: resolved %d of %d steps", resolved, total))
		return nil, &ValidationError{Problems: problems}
	}
	return order, nil
}

// topologicalOrder implements Kahn's algorithm: repeatedly peel off
// the lowest-id step with in-degree zero, so the order is fully
// deterministic rather than just "a" valid topological order. Edges
// and every step's DependsOn are merged into one edge set, deduped,
// matching the original's all_edges.
func topologicalOrder(def WorkflowDef) (order []string, resolved, total int, ok bool) {
	inDegree := make(map[string]int, len(def.Steps))
	dependents := make(map[string][]string)
	for _, s := range def.Steps {
		if _, exists := inDegree[s.ID]; !exists {
			inDegree[s.ID] = 0
		}
	}

	seenEdge := make(map[Edge]bool)
	addEdge := func(from, to string) {
		e := Edge{From: from, To: to}
		if seenEdge[e] {
			return
		}
		seenEdge[e] = true
		dependents[from] = append(dependents[from], to)
		inDegree[to]++
	}
	for _, s := range def.Steps {
		for _, dep := range s.DependsOn {
			addEdge(dep, s.ID)
		}
	}
	for _, e := range def.Edges {
		addEdge(e.From, e.To)
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, child := range dependents[next] {
			inDegree[child]--
			if inDegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	total = len(def.Steps)
	resolved = len(order)
	return order, resolved, total, resolved == total
}

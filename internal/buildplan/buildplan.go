// Package buildplan turns a solved Selection into a DAG of BuildNodes —
// one per selected package — with "consumer imports producer" edges,
// fingerprints derived bottom-up via internal/cache, and a topological
// execution order. Package internal/cache owns the cache key itself
// (Fingerprint, Environment); this package owns the graph shape and,
// in Run, the bounded worker pool that walks it.
package buildplan

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/cache"
	"github.com/fncraft/flux/internal/pkgid"
)

// DependencyLister resolves a selected summary's declared dependencies.
// internal/index's Index satisfies this directly.
type DependencyLister interface {
	Dependencies(s pkgid.Summary) ([]pkgid.Dependency, error)
}

// SourceDigester returns the content digest of a summary's fetched
// source tree, independent of the filesystem path it landed at.
type SourceDigester interface {
	SourceDigest(s pkgid.Summary) (string, error)
}

// Node is one vertex of a build plan: a selected package together with
// the set of other selected packages it imports and the fingerprint
// that is its cache key.
type Node struct {
	Summary     pkgid.Summary
	Deps        []pkgid.Key
	Fingerprint string
}

// Plan is a build DAG plus a topological visitation order over it.
type Plan struct {
	Nodes map[pkgid.Key]*Node
	Order []pkgid.Key
}

// Build derives a Plan from selection, the map of decided summaries
// keyed by PackageId (a solver.Solution's Decisions, or a lockfile's
// reconstructed equivalent). Edges are restricted to dependencies that
// are themselves present in selection — a dev-only or otherwise pruned
// dependency of a selected package simply contributes no edge.
func Build(selection map[pkgid.Key]pkgid.Summary, deps DependencyLister, src SourceDigester, env cache.Environment) (*Plan, error) {
	nodes := make(map[pkgid.Key]*Node, len(selection))

	for key, sum := range selection {
		declared, err := deps.Dependencies(sum)
		if err != nil {
			return nil, errors.Wrapf(err, "listing dependencies of %s", sum)
		}
		var edges []pkgid.Key
		for _, d := range declared {
			depKey := pkgid.PackageId{Name: d.Name, Resolution: d.Resolution}.Key()
			if _, ok := selection[depKey]; ok {
				edges = append(edges, depKey)
			}
		}
		nodes[key] = &Node{Summary: sum, Deps: edges}
	}

	order, err := topoSort(nodes)
	if err != nil {
		return nil, err
	}

	// Fingerprints are derived bottom-up: by the time a node is
	// processed in topological order, every dependency's fingerprint
	// has already been computed.
	for _, key := range order {
		n := nodes[key]
		digest, err := src.SourceDigest(n.Summary)
		if err != nil {
			return nil, errors.Wrapf(err, "hashing source of %s", n.Summary)
		}
		depFingerprints := make([]string, 0, len(n.Deps))
		for _, dk := range n.Deps {
			depFingerprints = append(depFingerprints, nodes[dk].Fingerprint)
		}
		n.Fingerprint = cache.Fingerprint(digest, depFingerprints, env)
	}

	return &Plan{Nodes: nodes, Order: order}, nil
}

// topoSort returns nodes in dependency-before-consumer order via Kahn's
// algorithm. Ties among ready nodes break by PackageId so the order is
// reproducible across runs even though spec leaves ready-node ordering
// otherwise unspecified. A remaining in-degree after the queue drains
// means the selection DAG has a cycle, which the solver's own
// invariants should make impossible; Build surfaces it rather than
// looping forever.
func topoSort(nodes map[pkgid.Key]*Node) ([]pkgid.Key, error) {
	indegree := make(map[pkgid.Key]int, len(nodes))
	dependents := make(map[pkgid.Key][]pkgid.Key, len(nodes))
	for key := range nodes {
		indegree[key] = 0
	}
	for key, n := range nodes {
		for _, dep := range n.Deps {
			indegree[key]++
			dependents[dep] = append(dependents[dep], key)
		}
	}

	var ready []pkgid.Key
	for key, deg := range indegree {
		if deg == 0 {
			ready = append(ready, key)
		}
	}
	sortKeys(ready, nodes)

	order := make([]pkgid.Key, 0, len(nodes))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var newlyReady []pkgid.Key
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		sortKeys(newlyReady, nodes)
		ready = append(ready, newlyReady...)
		sortKeys(ready, nodes)
	}

	if len(order) != len(nodes) {
		return nil, errors.New("build plan contains a dependency cycle")
	}
	return order, nil
}

func sortKeys(keys []pkgid.Key, nodes map[pkgid.Key]*Node) {
	sort.Slice(keys, func(i, j int) bool {
		return nodes[keys[i]].Summary.PackageId().Less(nodes[keys[j]].Summary.PackageId())
	})
}

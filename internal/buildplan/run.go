package buildplan

import (
	"context"

	"github.com/sdboyer/constext"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/fncraft/flux/internal/cache"
	"github.com/fncraft/flux/internal/pkgid"
)

// NodeBuildFunc prepares one node's artifact inside tmpDir, given the
// node it is building for (its Summary carries the source to fetch and
// compile).
type NodeBuildFunc func(ctx context.Context, n *Node, tmpDir string) error

// Executor runs a Plan's nodes through a content-addressed Builder over
// a bounded worker pool, respecting the plan's topological order: a
// node only starts once every dependency it has an edge to has finished
// successfully.
type Executor struct {
	Builder *cache.Builder
	// Threads bounds the number of build functions running at once.
	// Zero means 1.
	Threads int
}

// Run executes every node in plan, returning the first error from any
// node (via errgroup, which also cancels the shared context so sibling
// and downstream goroutines stop waiting). On cancellation or failure,
// nodes that have not yet started never run; a node already mid-build
// keeps running until its BuildFunc observes ctx and returns, at which
// point internal/cache cleans up its tmp/<fingerprint> directory.
func (e *Executor) Run(ctx context.Context, plan *Plan, build NodeBuildFunc) error {
	threads := e.Threads
	if threads <= 0 {
		threads = 1
	}
	sem := semaphore.NewWeighted(int64(threads))

	done := make(map[pkgid.Key]chan struct{}, len(plan.Nodes))
	for key := range plan.Nodes {
		done[key] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range plan.Order {
		key := key
		n := plan.Nodes[key]
		g.Go(func() error {
			for _, dep := range n.Deps {
				select {
				case <-done[dep]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			// constext merges the errgroup's shared cancellation with a
			// context scoped to this node, so a caller-supplied build
			// function can attach per-node values or deadlines without
			// losing the pool-wide cancellation signal.
			nodeCtx, cancel := constext.Cons(gctx, context.Background())
			defer cancel()

			_, err := e.Builder.Build(nodeCtx, n.Fingerprint, func(bctx context.Context, tmpDir string) error {
				return build(bctx, n, tmpDir)
			})
			if err != nil {
				return err
			}
			close(done[key])
			return nil
		})
	}
	return g.Wait()
}

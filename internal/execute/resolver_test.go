package execute_test

import (
	"context"
	"errors"
	"testing"

	"weave/internal/execute"
)

func valueBuild(v any) execute.BuildFunc {
	return func(ctx context.Context) (any, func(context.Context) error, error) {
		return v, nil, nil
	}
}

func TestScopeResolver_TransientAlwaysRebuilds(t *testing.T) {
	root := execute.NewRoot()
	calls := 0
	build := func(ctx context.Context) (any, func(context.Context) error, error) {
		calls++
		return calls, nil, nil
	}

	for i := 1; i <= 3; i++ {
		v, err := root.Resolve(context.Background(), 0, true, build)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if v != i {
			t.Errorf("expected transient resolve #%d to produce %d, got %v", i, i, v)
		}
	}
}

func TestScopeResolver_ScopedCachesAtOwningLevel(t *testing.T) {
	root := execute.NewRoot()
	root.RegisterSlot(0, execute.LockThread)

	calls := 0
	build := func(ctx context.Context) (any, func(context.Context) error, error) {
		calls++
		return "singleton", nil, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := root.Resolve(context.Background(), 0, false, build); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("expected exactly one build for a Scoped slot, got %d", calls)
	}
}

func TestScopeResolver_ChildResolvesOwnerUpTheParentChain(t *testing.T) {
	root := execute.NewRoot()
	root.RegisterSlot(0, execute.LockThread)
	child := root.Enter(1)

	calls := 0
	build := func(ctx context.Context) (any, func(context.Context) error, error) {
		calls++
		return "from-root", nil, nil
	}

	v1, err := child.Resolve(context.Background(), 0, false, build)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	v2, err := root.Resolve(context.Background(), 0, false, build)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v1 != v2 {
		t.Errorf("expected child and root to observe the same cached root-owned value, got %v and %v", v1, v2)
	}
	if calls != 1 {
		t.Errorf("expected the root-owned slot to build once regardless of which level resolves it, got %d", calls)
	}
}

func TestScopeResolver_UnregisteredScopedSlotErrors(t *testing.T) {
	root := execute.NewRoot()
	_, err := root.Resolve(context.Background(), 7, false, valueBuild("never"))
	if err == nil {
		t.Fatal("expected an error resolving a slot with no owning resolver")
	}
}

func TestScopeResolver_CloseDrainsOwnCleanupOnly(t *testing.T) {
	root := execute.NewRoot()
	child := root.Enter(1)

	var rootClosed, childClosed bool
	root.RegisterSlot(0, execute.LockThread)
	child.RegisterSlot(1, execute.LockThread)

	root.Resolve(context.Background(), 0, false, func(ctx context.Context) (any, func(context.Context) error, error) {
		return "root-val", func(context.Context) error { rootClosed = true; return nil }, nil
	})
	child.Resolve(context.Background(), 1, false, func(ctx context.Context) (any, func(context.Context) error, error) {
		return "child-val", func(context.Context) error { childClosed = true; return nil }, nil
	})

	if err := child.Close(context.Background()); err != nil {
		t.Fatalf("child.Close: %v", err)
	}
	if !childClosed || rootClosed {
		t.Errorf("expected only the child's cleanup to run, got childClosed=%v rootClosed=%v", childClosed, rootClosed)
	}

	if err := root.Close(context.Background()); err != nil {
		t.Fatalf("root.Close: %v", err)
	}
	if !rootClosed {
		t.Error("expected root's own cleanup to run on root.Close")
	}
}

func TestScopeResolver_ResolveAfterCloseReturnsErrClosed(t *testing.T) {
	root := execute.NewRoot()
	if err := root.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := root.Resolve(context.Background(), 0, true, valueBuild("x"))
	if !errors.Is(err, execute.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestScopeResolver_CloseIsIdempotent(t *testing.T) {
	root := execute.NewRoot()
	drains := 0
	root.RegisterSlot(0, execute.LockThread)
	root.Resolve(context.Background(), 0, false, func(ctx context.Context) (any, func(context.Context) error, error) {
		return "v", func(context.Context) error { drains++; return nil }, nil
	})

	if err := root.Close(context.Background()); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := root.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if drains != 1 {
		t.Errorf("expected cleanup drained exactly once across repeated Close calls, got %d", drains)
	}
}

func TestScopeResolver_LevelAndParent(t *testing.T) {
	root := execute.NewRoot()
	child := root.Enter(1)
	if root.Level() != 0 {
		t.Errorf("expected root level 0, got %d", root.Level())
	}
	if child.Level() != 1 {
		t.Errorf("expected child level 1, got %d", child.Level())
	}
	if child.Parent() != root {
		t.Error("expected child's Parent to be root")
	}
	if root.Parent() != nil {
		t.Error("expected root's Parent to be nil")
	}
}

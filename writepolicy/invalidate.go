package writepolicy

// Invalidate is the default policy: target keys go stale and refetch on the next read.
type Invalidate struct{}

func (Invalidate) OnSuccess(t Target, keys []string, _ any) {
	t.Invalidate(keys...)
}

/*
HardClear empties target keys on success, then invalidates them.

Used for "clear all" style mutations where showing the previous value while
the refetch runs would be wrong. The key stays in the cache so observers keep
their subscription and the next read refetches.
*/
type HardClear struct {
	// Empty builds the cleared value, e.g. an empty slice. nil stores a nil value.
	Empty func() any
}

func (h HardClear) OnSuccess(t Target, keys []string, _ any) {
	for _, k := range keys {
		var v any
		if h.Empty != nil {
			v = h.Empty()
		}
		t.Set(k, v)
	}
	t.Invalidate(keys...)
}

// SetResult stores the mutation result under every target key without a refetch.
type SetResult struct{}

func (SetResult) OnSuccess(t Target, keys []string, result any) {
	for _, k := range keys {
		t.Set(k, result)
	}
}

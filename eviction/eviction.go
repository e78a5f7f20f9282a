package eviction

/*
Policy decides which cached key to drop when a shard is over capacity.

Only keys without a mounted observer are handed to the policy. A page that
is on screen never loses its entry to capacity pressure; its entry goes away
when the page releases its mount.
*/
type Policy interface {

	// OnGet is called when a tracked key is served from memory.
	OnGet(string)

	// OnPut is called when a key becomes evictable (created unmounted, or its
	// last observer left without the entry being removed).
	OnPut(string)

	// Remove stops tracking a key (mounted, removed or cleared).
	Remove(string)

	// Evict returns the key to drop, or "" when nothing is tracked.
	Evict() string

	// Len returns how many keys are tracked.
	Len() int
}

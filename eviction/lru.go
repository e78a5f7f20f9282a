package eviction

import "container/list"

// lru evicts the evictable key that was read or created longest ago.
type lru struct {
	// order holds keys, most recent at the front.
	order *list.List

	// pos finds a key's element in O(1).
	pos map[string]*list.Element
}

// NewLRU returns an empty least-recently-used policy. It is not safe for
// concurrent use: the owning shard serializes calls under its mutex.
func NewLRU() Policy {
	return &lru{order: list.New(), pos: make(map[string]*list.Element)}
}

func (l *lru) OnGet(k string) {
	if el, ok := l.pos[k]; ok {
		l.order.MoveToFront(el)
	}
}

func (l *lru) OnPut(k string) {
	if el, ok := l.pos[k]; ok {
		l.order.MoveToFront(el)
		return
	}
	l.pos[k] = l.order.PushFront(k)
}

func (l *lru) Remove(k string) {
	if el, ok := l.pos[k]; ok {
		l.order.Remove(el)
		delete(l.pos, k)
	}
}

func (l *lru) Evict() string {
	el := l.order.Back()
	if el == nil {
		return ""
	}
	k := el.Value.(string)
	l.order.Remove(el)
	delete(l.pos, k)
	return k
}

func (l *lru) Len() int {
	return l.order.Len()
}

package memory

import "container/list"

// pageKey identifies a page of a process address space
type pageKey struct {
	pid  string
	page int
}

// lru keeps pages in access order, most recent at the front.  The index
// makes touch and remove O(1); eviction walks from the back past pinned or
// non-resident pages.
type lru struct {
	order *list.List
	index map[pageKey]*list.Element
}

func newLRU() *lru {
	return &lru{order: list.New(), index: make(map[pageKey]*list.Element)}
}

func (l *lru) touch(key pageKey) {
	if elem, ok := l.index[key]; ok {
		l.order.MoveToFront(elem)
		return
	}
	l.index[key] = l.order.PushFront(key)
}

func (l *lru) remove(key pageKey) {
	if elem, ok := l.index[key]; ok {
		l.order.Remove(elem)
		delete(l.index, key)
	}
}

// oldest returns the least recently used key accepted by eligible
func (l *lru) oldest(eligible func(pageKey) bool) (pageKey, bool) {
	for elem := l.order.Back(); elem != nil; elem = elem.Prev() {
		key := elem.Value.(pageKey)
		if eligible(key) {
			return key, true
		}
	}
	return pageKey{}, false
}

func (l *lru) len() int { return l.order.Len() }

package reconcile

// TrackedCounts reports how many mutations the cache still folds over the
// authoritative list and how many of them still hold a snapshot.
func (c *Cache) TrackedCounts() (tracked, withSnapshot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.tracked {
		if m.snapshot != nil {
			withSnapshot++
		}
	}
	return len(c.tracked), withSnapshot
}

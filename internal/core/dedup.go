package core

// Deduplicator remembers the business keys seen during one run. The first
// row with a key wins; later rows with the same key are in-batch duplicates.
// A Deduplicator belongs to a single run and is not safe for concurrent use.
type Deduplicator struct {
	first map[BusinessKey]int
}

// NewDeduplicator returns an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{first: make(map[BusinessKey]int)}
}

// Seen records key for rowIndex and reports whether the key was already
// claimed, together with the index of the row that claimed it.
func (d *Deduplicator) Seen(key BusinessKey, rowIndex int) (firstIndex int, duplicate bool) {
	if idx, ok := d.first[key]; ok {
		return idx, true
	}
	d.first[key] = rowIndex
	return rowIndex, false
}

// Len returns the number of distinct keys seen.
func (d *Deduplicator) Len() int {
	return len(d.first)
}

package car

import "iter"

// BlockLocation records where one block's raw data lives within the
// container: its byte offset from the start of the file and its length,
// both excluding the block's content identifier. Produced once during
// Scan; never mutated.
type BlockLocation struct {
	Offset uint64
	Length uint64
}

// Index maps content identifiers to block locations. Built during Scan
// and read-only thereafter, so it may be shared across goroutines
// without synchronization.
type Index struct {
	locations map[ContentID]BlockLocation
}

func newIndex() *Index {
	return &Index{locations: make(map[ContentID]BlockLocation)}
}

// add records the location for id. The first occurrence wins: duplicate
// identifiers address byte-identical content, so retaining the earliest
// keeps the index deterministic without affecting what a read returns.
func (idx *Index) add(id ContentID, loc BlockLocation) {
	if _, ok := idx.locations[id]; ok {
		return
	}
	idx.locations[id] = loc
}

// Lookup returns the location of the block identified by id.
func (idx *Index) Lookup(id ContentID) (BlockLocation, bool) {
	loc, ok := idx.locations[id]
	return loc, ok
}

// Len returns the number of indexed blocks.
func (idx *Index) Len() int {
	return len(idx.locations)
}

// Locations iterates over all indexed blocks in unspecified order.
func (idx *Index) Locations() iter.Seq2[ContentID, BlockLocation] {
	return func(yield func(ContentID, BlockLocation) bool) {
		for id, loc := range idx.locations {
			if !yield(id, loc) {
				return
			}
		}
	}
}

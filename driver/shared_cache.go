package driver

import (
	"sync"

	"github.com/larunner/la64vm/emu"
)

// segmentKey identifies an execute segment by its content, not its
// identity: two Machines loading the same binary at the same address get
// the same decoded segment back instead of decoding it twice.
type segmentKey struct {
	begin       uint64
	contentHash uint64
	arenaSize   uint64
}

// SharedSegmentCache is the one resource multiple Machines in the same
// process actually share: decoded ExecSegments, keyed by
// (segment_begin, content_hash, arena_size). It's guarded by a plain
// sync.Mutex rather than anything fancier — lookups happen once per
// Machine construction, never on the hot dispatch path. Segments are not
// reference-counted and are never removed: the map keeps every segment it
// has built for the life of the process.
type SharedSegmentCache struct {
	mu       sync.Mutex
	segments map[segmentKey]*emu.ExecSegment
}

// globalSegmentCache is the process-wide instance every Machine consults.
var globalSegmentCache = &SharedSegmentCache{segments: make(map[segmentKey]*emu.ExecSegment)}

// GetOrBuild returns the cached ExecSegment for key, building (and
// rewriting) a new one from code if this is the first time this exact
// (begin, content, arenaSize) triple has been seen.
func (c *SharedSegmentCache) GetOrBuild(begin, contentHash, arenaSize uint64, code []byte) *emu.ExecSegment {
	key := segmentKey{begin: begin, contentHash: contentHash, arenaSize: arenaSize}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seg, ok := c.segments[key]; ok {
		return seg
	}
	seg := emu.NewExecSegment(code, begin, contentHash)
	emu.RewriteBytecodes(seg)
	c.segments[key] = seg
	return seg
}

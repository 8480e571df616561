// Package pool implements the segment file I/O pool: a capped set of
// open OS file handles keyed by an opaque ID, with least-recently-used eviction
// when the open-file budget would be exceeded. Logical state (path,
// cursor, open flags) survives a transparent close/reopen, so callers
// never see eviction as anything other than latency.
//
// The pool's own bookkeeping is serialized with a mutex; callers driving
// the same entry from multiple goroutines concurrently remain
// responsible for their own serialization.
package pool

import (
	"io"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/evidencekit/ewf/internal/ioerr"
)

// ID identifies an open-or-evictable entry. It stays valid across
// transparent eviction and reopen.
type ID uint64

type entry struct {
	path   string
	flags  int
	perm   os.FileMode
	offset int64
	file   *os.File // nil when evicted
}

// Pool multiplexes many logical file handles under a fixed OS fd budget.
type Pool struct {
	mu      sync.Mutex
	log     *zap.SugaredLogger
	maxOpen int
	nextID  ID
	entries map[ID]*entry
	order   *lru.Cache[ID, struct{}]
}

// New builds a Pool that keeps at most maxOpen files open at once.
// maxOpen < 1 is treated as 1, since the active segment always needs a
// live handle.
func New(maxOpen int, log *zap.SugaredLogger) *Pool {
	if maxOpen < 1 {
		maxOpen = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &Pool{
		log:     log,
		maxOpen: maxOpen,
		entries: make(map[ID]*entry),
	}
	order, _ := lru.NewWithEvict[ID, struct{}](maxOpen, func(id ID, _ struct{}) {
		p.evict(id)
	})
	p.order = order
	return p
}

// evict closes the underlying os.File for id but keeps the logical entry
// (path, offset, flags) alive for a later reopen. Must be called with
// p.mu held (it is only invoked from within the LRU's Add and Remove,
// which this package always calls under the lock).
func (p *Pool) evict(id ID) {
	e, ok := p.entries[id]
	if !ok || e.file == nil {
		return
	}
	if err := e.file.Close(); err != nil {
		p.log.Warnw("pool: error closing evicted file handle", "path", e.path, "error", err)
	}
	p.log.Debugw("pool: evicted handle under fd pressure", "path", e.path, "offset", e.offset)
	e.file = nil
}

// Open registers path with the given os.OpenFile flags/perm and returns
// an ID good for the lifetime of the pool (or until Close(id)). The file
// is not actually opened until first use, matching the "opened lazily"
// contract: callers never hold a raw *os.File across calls.
func (p *Pool) Open(path string, flags int, perm os.FileMode) ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.entries[id] = &entry{path: path, flags: flags, perm: perm}
	return id
}

// ensureOpen returns a live *os.File for id, reopening and seeking to the
// preserved logical offset if it was evicted. Must be called with p.mu held.
func (p *Pool) ensureOpen(id ID) (*entry, error) {
	e, ok := p.entries[id]
	if !ok {
		return nil, ioerr.Errorf(ioerr.KindInvalidArgument, "pool: unknown entry %d", id)
	}
	p.order.Add(id, struct{}{})
	if e.file != nil {
		return e, nil
	}
	f, err := os.OpenFile(e.path, e.flags, e.perm)
	if err != nil {
		return nil, ioerr.Wrap(ioerr.KindIO, err, "pool: open "+e.path)
	}
	// A later reopen after eviction must resume the file as it stands,
	// never recreate or truncate it.
	e.flags &^= os.O_CREATE | os.O_TRUNC
	if e.offset != 0 {
		if _, err := f.Seek(e.offset, io.SeekStart); err != nil {
			f.Close()
			return nil, ioerr.Wrap(ioerr.KindIO, err, "pool: reseek "+e.path)
		}
	}
	e.file = f
	return e, nil
}

// ReadAt reads len(buf) bytes from the entry at the given absolute
// offset, transparently reopening the entry if it was evicted.
func (p *Pool) ReadAt(id ID, offset int64, buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.ensureOpen(id)
	if err != nil {
		return 0, err
	}
	n, err := e.file.ReadAt(buf, offset)
	e.offset = offset + int64(n)
	if err != nil {
		return n, ioerr.Wrap(ioerr.KindIO, err, "pool: read "+e.path)
	}
	return n, nil
}

// WriteAt writes buf to the entry at the given absolute offset.
func (p *Pool) WriteAt(id ID, offset int64, buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.ensureOpen(id)
	if err != nil {
		return 0, err
	}
	n, err := e.file.WriteAt(buf, offset)
	e.offset = offset + int64(n)
	if err != nil {
		return n, ioerr.Wrap(ioerr.KindIO, err, "pool: write "+e.path)
	}
	return n, nil
}

// Append writes buf at the entry's current logical offset (the end of
// whatever has been written through this pool so far) and returns the
// offset the data was written at.
func (p *Pool) Append(id ID, buf []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.ensureOpen(id)
	if err != nil {
		return 0, err
	}
	at := e.offset
	n, err := e.file.WriteAt(buf, at)
	e.offset = at + int64(n)
	if err != nil {
		return at, ioerr.Wrap(ioerr.KindIO, err, "pool: append "+e.path)
	}
	return at, nil
}

// Seek repositions the entry's logical cursor. whence follows io.Seek*
// semantics relative to the entry's own file.
func (p *Pool) Seek(id ID, offset int64, whence int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.ensureOpen(id)
	if err != nil {
		return 0, err
	}
	pos, err := e.file.Seek(offset, whence)
	if err != nil {
		return 0, ioerr.Wrap(ioerr.KindIO, err, "pool: seek "+e.path)
	}
	e.offset = pos
	return pos, nil
}

// Size stats the entry's path for its current on-disk size, without
// disturbing the entry's logical cursor.
func (p *Pool) Size(id ID) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return 0, ioerr.Errorf(ioerr.KindInvalidArgument, "pool: unknown entry %d", id)
	}
	if e.file != nil {
		fi, err := e.file.Stat()
		if err != nil {
			return 0, ioerr.Wrap(ioerr.KindIO, err, "pool: stat "+e.path)
		}
		return fi.Size(), nil
	}
	fi, err := os.Stat(e.path)
	if err != nil {
		return 0, ioerr.Wrap(ioerr.KindIO, err, "pool: stat "+e.path)
	}
	return fi.Size(), nil
}

// Path returns the path an entry was opened with.
func (p *Pool) Path(id ID) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		return e.path
	}
	return ""
}

// Close releases an entry entirely: its handle is closed (if open) and
// its ID becomes invalid.
func (p *Pool) Close(id ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return nil
	}
	p.order.Remove(id)
	delete(p.entries, id)
	if e.file != nil {
		if err := e.file.Close(); err != nil {
			return ioerr.Wrap(ioerr.KindIO, err, "pool: close "+e.path)
		}
	}
	return nil
}

// CloseAll releases every entry in the pool, collecting (not stopping
// on) the first error encountered, matching the "a failed open
// closes any segment already opened" contract.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	ids := make([]ID, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	var first error
	for _, id := range ids {
		if err := p.Close(id); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenCount reports how many entries currently hold a live OS handle,
// for tests and diagnostics.
func (p *Pool) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if e.file != nil {
			n++
		}
	}
	return n
}

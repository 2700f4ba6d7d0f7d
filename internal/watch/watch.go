// Package watch bridges filesystem notifications to deployment change
// signals. Raw fsnotify events are debounced per deployment, so an editor
// save that touches several files inside a deployment surfaces as a single
// change.
package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/congwa/skillmgr/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Add after the bridge has been closed.
var ErrClosed = errors.New("watch bridge closed")

// Change identifies a deployment whose on-disk content changed.
type Change struct {
	DeploymentID string
	Path         string
}

// Bridge watches deployment directories and emits debounced Changes.
type Bridge struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	closed bool
	// roots maps a deployment's directory to its ID, for longest-prefix
	// resolution of event paths.
	roots  map[string]string
	timers map[string]*time.Timer
	// flushes counts scheduled debounce callbacks; Close waits for them
	// before closing the changes channel.
	flushes sync.WaitGroup

	changes chan Change
	done    chan struct{}
}

// New creates a Bridge. A non-positive debounce uses the default.
func New(debounce time.Duration) (*Bridge, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	b := &Bridge{
		watcher:  watcher,
		debounce: debounce,
		roots:    make(map[string]string),
		timers:   make(map[string]*time.Timer),
		changes:  make(chan Change, 16),
		done:     make(chan struct{}),
	}
	go b.run()
	return b, nil
}

// Changes is the stream of debounced deployment changes. Closed when the
// bridge closes.
func (b *Bridge) Changes() <-chan Change {
	return b.changes
}

// Add registers a deployment directory. Subdirectories are watched too,
// since fsnotify does not recurse.
func (b *Bridge) Add(deploymentID, root string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.roots[filepath.Clean(root)] = deploymentID
	b.mu.Unlock()

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return b.watcher.Add(path)
	})
}

// Remove unregisters a deployment directory.
func (b *Bridge) Remove(root string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.roots, filepath.Clean(root))
	_ = b.watcher.Remove(root)
}

// Close stops the bridge. Pending debounce timers are discarded.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for id, t := range b.timers {
		// A timer that already fired releases its own flush count; its
		// entry stays until the callback claims it.
		if t.Stop() {
			delete(b.timers, id)
			b.flushes.Done()
		}
	}
	b.mu.Unlock()

	close(b.done)
	b.flushes.Wait()
	err := b.watcher.Close()
	close(b.changes)
	return err
}

func (b *Bridge) run() {
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleEvent(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("filesystem watcher error", logging.Err(err))
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories inside a watched root must be watched as well.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = b.watcher.Add(event.Name)
		}
	}

	root, depID, ok := b.resolve(event.Name)
	if !ok {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if timer, ok := b.timers[depID]; ok {
		timer.Reset(b.debounce)
		b.mu.Unlock()
		return
	}
	b.flushes.Add(1)
	b.timers[depID] = time.AfterFunc(b.debounce, func() {
		b.flush(depID, root)
	})
	b.mu.Unlock()
}

// resolve maps an event path to its deployment by longest registered
// prefix. Paths outside every registered root are ignored.
func (b *Bridge) resolve(path string) (root, deploymentID string, ok bool) {
	path = filepath.Clean(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	candidates := make([]string, 0, len(b.roots))
	for r := range b.roots {
		candidates = append(candidates, r)
	}
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })

	for _, r := range candidates {
		if path == r || strings.HasPrefix(path, r+string(filepath.Separator)) {
			return r, b.roots[r], true
		}
	}
	return "", "", false
}

func (b *Bridge) flush(deploymentID, root string) {
	b.mu.Lock()
	if _, ok := b.timers[deploymentID]; !ok {
		// Another fire of this timer already claimed the entry, or Close
		// stopped it.
		b.mu.Unlock()
		return
	}
	delete(b.timers, deploymentID)
	closed := b.closed
	b.mu.Unlock()

	defer b.flushes.Done()
	if closed {
		return
	}

	select {
	case b.changes <- Change{DeploymentID: deploymentID, Path: root}:
	case <-b.done:
	}
}

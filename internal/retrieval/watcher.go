package retrieval

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// CorpusWatcher keeps a MemoryIndex current with a knowledge directory.
// Files directly under the root are shared knowledge; files inside a
// subdirectory are scoped to the requester named by that subdirectory.
type CorpusWatcher struct {
	dir     string
	index   *MemoryIndex
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	done    chan struct{}
}

// NewCorpusWatcher scans dir into the index and starts watching for changes.
// If the filesystem watcher cannot be created the initial scan still applies;
// the corpus is then static for the process lifetime.
func NewCorpusWatcher(dir string, index *MemoryIndex, logger *zap.Logger) (*CorpusWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cw := &CorpusWatcher{
		dir:    dir,
		index:  index,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := cw.scan(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("corpus watcher unavailable, serving static corpus", zap.Error(err))
		return cw, nil
	}
	cw.watcher = watcher

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		cw.watcher = nil
		logger.Warn("cannot watch corpus directory", zap.String("dir", dir), zap.Error(err))
		return cw, nil
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.IsDir() {
			_ = watcher.Add(filepath.Join(dir, e.Name()))
		}
	}

	go cw.loop()
	return cw, nil
}

// Close stops the watcher.
func (cw *CorpusWatcher) Close() error {
	close(cw.done)
	if cw.watcher != nil {
		return cw.watcher.Close()
	}
	return nil
}

func (cw *CorpusWatcher) loop() {
	for {
		select {
		case <-cw.done:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handle(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("corpus watch error", zap.Error(err))
		}
	}
}

func (cw *CorpusWatcher) handle(event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// New requester scope directory.
			_ = cw.watcher.Add(event.Name)
			return
		}
		cw.ingest(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		cw.index.Remove(event.Name)
		cw.logger.Debug("corpus document removed", zap.String("path", event.Name))
	}
}

// scan walks the corpus directory and indexes every knowledge file.
func (cw *CorpusWatcher) scan() error {
	return filepath.WalkDir(cw.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		cw.ingest(path)
		return nil
	})
}

func (cw *CorpusWatcher) ingest(path string) {
	if !isKnowledgeFile(path) {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		cw.logger.Warn("cannot read corpus file", zap.String("path", path), zap.Error(err))
		return
	}
	cw.index.Add(Document{
		ID:      path,
		Scope:   cw.scopeFor(path),
		Content: string(data),
	})
	cw.logger.Debug("corpus document indexed", zap.String("path", path))
}

// scopeFor derives the requester scope from the file's position: files in a
// first-level subdirectory belong to that requester, everything else is shared.
func (cw *CorpusWatcher) scopeFor(path string) string {
	rel, err := filepath.Rel(cw.dir, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 1 {
		return parts[0]
	}
	return ""
}

func isKnowledgeFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return true
	default:
		return false
	}
}

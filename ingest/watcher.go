package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher ingests feed files dropped into an inbox directory. Events are
// debounced so a file is only submitted once its writer has gone quiet;
// after a successful submit the inbox copy is removed (the bytes now live in
// the FileStore).
type Watcher struct {
	dir    string
	intake *Intake
	log    *zap.Logger
	fsw    *fsnotify.Watcher
	done   chan struct{}
}

// NewWatcher starts watching dir, creating it if needed.
func NewWatcher(dir string, intake *Intake, log *zap.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{dir: dir, intake: intake, log: log, fsw: fsw, done: make(chan struct{})}, nil
}

// Start runs the debounce loop in the background until Close is called.
// Files already sitting in the inbox at startup are picked up too.
func (w *Watcher) Start() {
	go w.loop()
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := map[string]time.Time{}
	if entries, err := os.ReadDir(w.dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && isFeedFile(e.Name()) {
				pending[e.Name()] = time.Now()
			}
		}
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				name := filepath.Base(ev.Name)
				if isFeedFile(name) {
					pending[name] = time.Now()
				}
			}
		case <-ticker.C:
			now := time.Now()
			for name, last := range pending {
				if now.Sub(last) > 500*time.Millisecond { // writer gone quiet
					delete(pending, name)
					w.submit(name)
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("inbox watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) submit(name string) {
	path := filepath.Join(w.dir, name)
	f, err := os.Open(path)
	if err != nil {
		w.log.Warn("cannot open inbox file", zap.String("file", name), zap.Error(err))
		return
	}
	res, err := w.intake.Submit(name, f)
	f.Close()
	if err != nil {
		w.log.Error("inbox submit failed", zap.String("file", name), zap.Error(err))
		return
	}
	if err := os.Remove(path); err != nil {
		w.log.Warn("cannot remove ingested inbox file", zap.String("file", name), zap.Error(err))
	}
	w.log.Info("inbox file queued",
		zap.String("file", name),
		zap.Uint("upload_id", res.Upload.ID),
		zap.Bool("reused", res.Reused))
}

func isFeedFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return true
	}
	return false
}

// Package capture feeds the enhancement pipeline from a drop directory.
// A transcription tool (or the user) drops plain-text files into the
// inbox; each new file becomes one captured note and the file is archived
// under processed/.
package capture

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

// processedDir is the archive subdirectory inside the inbox. Files moved
// there are never picked up again.
const processedDir = "processed"

// Submitter accepts raw note text for asynchronous enhancement.
type Submitter interface {
	Submit(rawText string) (*models.NoteRecord, error)
}

// Watcher tails an inbox directory and submits every dropped transcript
// exactly once. Content checksums guard against editors that fire
// multiple write events, and against the same transcript being dropped
// twice.
type Watcher struct {
	root string
	subm Submitter
	log  *slog.Logger

	seen map[string]struct{}
}

// NewWatcher creates a watcher for the given inbox directory. The
// directory and its processed/ archive are created if missing.
func NewWatcher(root string, subm Submitter, logger *slog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(filepath.Join(root, processedDir), 0o755); err != nil {
		return nil, err
	}
	return &Watcher{
		root: root,
		subm: subm,
		log:  logger,
		seen: make(map[string]struct{}),
	}, nil
}

// Run sweeps any files already waiting in the inbox, then watches for new
// ones until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}

	w.log.Info("capture: watching inbox", slog.String("root", w.root))
	w.sweep()

	// Write events can arrive while the producer is still flushing; a
	// short debounce lets the file settle before it is read.
	pending := make(map[string]struct{})
	var settle *time.Timer
	var settleCh <-chan time.Time

	schedule := func(path string) {
		pending[path] = struct{}{}
		if settle == nil {
			settle = time.NewTimer(200 * time.Millisecond)
			settleCh = settle.C
		} else {
			settle.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			w.log.Info("capture: stopped")
			return nil

		case <-settleCh:
			for path := range pending {
				delete(pending, path)
				w.ingest(path)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !transcriptFile(ev.Name) {
				continue
			}
			schedule(ev.Name)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("capture: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// sweep ingests files that were dropped while the watcher was not
// running.
func (w *Watcher) sweep() {
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.root {
				return fs.SkipDir
			}
			return nil
		}
		if transcriptFile(path) {
			w.ingest(path)
		}
		return nil
	})
}

// ingest reads, deduplicates, submits, and archives one inbox file.
func (w *Watcher) ingest(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Create events for files moved away before we got here.
		if !os.IsNotExist(err) {
			w.log.Warn("capture: read failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}
	if strings.TrimSpace(string(data)) == "" {
		w.log.Debug("capture: skipping empty file", slog.String("path", path))
		w.archive(path)
		return
	}

	cs := checksum.Sum(data)
	if _, dup := w.seen[cs]; dup {
		w.log.Debug("capture: duplicate transcript", slog.String("path", path))
		w.archive(path)
		return
	}

	rec, err := w.subm.Submit(string(data))
	if err != nil {
		w.log.Warn("capture: submit failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	w.seen[cs] = struct{}{}
	w.log.Info("capture: transcript captured",
		slog.String("path", filepath.Base(path)),
		slog.String("id", rec.ID))
	w.archive(path)
}

// archive moves a handled file into processed/, falling back to removal
// when the rename collides with an existing archive entry.
func (w *Watcher) archive(path string) {
	dst := filepath.Join(w.root, processedDir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(w.root, processedDir,
			time.Now().UTC().Format("20060102T150405")+"-"+filepath.Base(path))
	}
	if err := os.Rename(path, dst); err != nil {
		w.log.Warn("capture: archive failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func transcriptFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

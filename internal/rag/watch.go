package rag

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches bursts of filesystem events into one re-ingest.
const watchDebounce = 500 * time.Millisecond

// Watch re-ingests the corpus whenever files under the document directory
// change, calling onUpdate with the fresh index after each successful run. It
// blocks until ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context, onUpdate func(*MemoryIndex, IngestSummary)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(p.cfg.DocumentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if shouldExclude(path, p.cfg.ExcludeGlobs) && path != p.cfg.DocumentDir {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch document directory: %w", err)
	}

	p.logger.Event("watching %s for corpus changes", p.cfg.DocumentDir)

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !p.relevantEvent(event) {
				continue
			}
			p.logger.Debug("corpus change: %s", event)
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(watchDebounce)
			pending = true
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("watch error: %v", err)
		case <-timer.C:
			pending = false
			index, summary, err := p.Ingest(ctx)
			if err != nil {
				p.logger.Error("re-ingest after corpus change failed: %v", err)
				continue
			}
			if onUpdate != nil {
				onUpdate(index, summary)
			}
		}
	}
}

// relevantEvent filters out events that cannot change the corpus, such as
// chmod noise or files with disallowed extensions.
func (p *Pipeline) relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if shouldExclude(event.Name, p.cfg.ExcludeGlobs) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext == "" {
		// Likely a directory event.
		return true
	}
	if len(p.cfg.AllowedExtensions) == 0 {
		return true
	}
	for _, allowed := range p.cfg.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

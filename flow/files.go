package flow

import (
	"container/list"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	transportfile "github.com/quyenlv/snmpdump/transport/file"
)

// fileCache bounds how many flow output files are open at once, evicting
// the least recently used file when a new flow needs a slot. An evicted
// flow's file is closed without writing a footer; if that flow is written
// to again later, it is reopened in append mode, since ever-opened flows
// must not lose earlier content.
//
// Each flow's underlying file is a transport/file.RotatingFile so that
// MaxBytes (when non-zero) rotates an individual flow file the same way the
// teacher's transport layer rotates its single output file.
type fileCache struct {
	dir, prefix string
	sink        Sink
	maxOpen     int
	maxBytes    int64
	logger      *slog.Logger

	order      *list.List               // MRU at Front, LRU at Back
	open       map[string]*list.Element // flow name -> list element
	everOpened map[string]bool
}

type openFile struct {
	name string
	f    *transportfile.RotatingFile
}

func newFileCache(dir, prefix string, sink Sink, maxOpen int, maxBytes int64, logger *slog.Logger) *fileCache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &fileCache{
		dir: dir, prefix: prefix, sink: sink, maxOpen: maxOpen, maxBytes: maxBytes, logger: logger,
		order:      list.New(),
		open:       make(map[string]*list.Element),
		everOpened: make(map[string]bool),
	}
}

func (c *fileCache) path(name string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s-%s%s", c.prefix, name, c.sink.Extension()))
}

// acquire returns the writer for name, opening (or reopening) it as needed
// and marking it most recently used. The caller must not close the returned
// writer directly; fileCache owns its lifetime.
func (c *fileCache) acquire(name string) (io.Writer, error) {
	if el, ok := c.open[name]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*openFile).f, nil
	}

	if c.order.Len() >= c.maxOpen {
		if err := c.evictLRU(); err != nil {
			return nil, err
		}
	}

	first := !c.everOpened[name]
	f, err := transportfile.NewRotatingFile(transportfile.RotateConfig{
		FilePath: c.path(name),
		MaxBytes: c.maxBytes,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("flow: open %s: %w", c.path(name), err)
	}
	if first {
		if err := c.sink.Begin(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("flow: write header for %s: %w", name, err)
		}
	}

	c.everOpened[name] = true
	el := c.order.PushFront(&openFile{name: name, f: f})
	c.open[name] = el
	return f, nil
}

// evictLRU closes (without writing a footer) the least recently used open
// file to free a slot. No footer is written here because the flow may
// receive more packets later in the run, reopened in append mode; only
// closeAll, at the end of the run, knows a flow has truly seen its last
// packet.
func (c *fileCache) evictLRU() error {
	back := c.order.Back()
	if back == nil {
		return nil
	}
	of := back.Value.(*openFile)
	c.order.Remove(back)
	delete(c.open, of.name)

	if err := of.f.Close(); err != nil {
		c.logger.Warn("flow: close on evict failed", "flow", of.name, "error", err.Error())
		return fmt.Errorf("flow: close %s: %w", of.name, err)
	}
	return nil
}

// closeAll writes every ever-opened flow's footer exactly once: currently
// open flows get it written directly; flows closed earlier by eviction are
// reopened in append mode just long enough to append it.
func (c *fileCache) closeAll() error {
	var firstErr error
	done := make(map[string]bool, len(c.everOpened))

	for c.order.Len() > 0 {
		back := c.order.Back()
		of := back.Value.(*openFile)
		c.order.Remove(back)
		delete(c.open, of.name)
		done[of.name] = true

		if err := c.sink.End(of.f); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flow: write footer for %s: %w", of.name, err)
		}
		if err := of.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flow: close %s: %w", of.name, err)
		}
	}

	for name := range c.everOpened {
		if done[name] {
			continue
		}
		f, err := transportfile.NewRotatingFile(transportfile.RotateConfig{
			FilePath: c.path(name),
			MaxBytes: c.maxBytes,
		}, c.logger)
		if err != nil {
			c.logger.Warn("flow: reopen for footer failed", "flow", name, "error", err.Error())
			if firstErr == nil {
				firstErr = fmt.Errorf("flow: reopen %s: %w", name, err)
			}
			continue
		}
		if err := c.sink.End(f); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flow: write footer for %s: %w", name, err)
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flow: close %s: %w", name, err)
		}
	}

	return firstErr
}

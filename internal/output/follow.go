package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Follow calls fn for every complete line appended to path until ctx is
// done. With fromStart the existing content is replayed first; otherwise
// following begins at the current end of the file.
func Follow(ctx context.Context, path string, fromStart bool, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if !fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seek %s: %w", path, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Directory watches survive editors and loggers that recreate the file.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	t := &tail{r: bufio.NewReader(f), fn: fn}
	if err := t.drain(); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) {
				continue
			}
			if err := t.drain(); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}

// tail delivers whole lines and holds a trailing partial line until its
// newline arrives.
type tail struct {
	r       *bufio.Reader
	partial strings.Builder
	fn      func(line string)
}

func (t *tail) drain() error {
	for {
		chunk, err := t.r.ReadString('\n')
		t.partial.WriteString(chunk)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		t.fn(strings.TrimRight(t.partial.String(), "\r\n"))
		t.partial.Reset()
	}
}

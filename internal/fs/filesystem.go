package fs

import (
	"os"
	"path"
	"path/filepath"
)

// Walker is a resumable, depth-first cursor over the regular files below a
// root directory. Directory entries are visited in name order, so two walkers
// over an unchanged tree yield the same sequence. Directories, symlinks and
// other special files are never yielded.
type Walker struct {
	root    string
	ignore  *IgnoreMatcher
	onError func(relativePath string, err error)
	stack   []*walkFrame
	started bool
}

type walkFrame struct {
	rel     string
	entries []os.DirEntry
	next    int
}

// NewWalker creates a walker rooted at root. ignore may be nil. onError is
// called for every directory that cannot be read; the walk continues with
// whatever entries were read before the failure.
func NewWalker(root string, ignore *IgnoreMatcher, onError func(relativePath string, err error)) *Walker {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Walker{
		root:    root,
		ignore:  ignore,
		onError: onError,
	}
}

// Next returns the slash-separated, root-relative path of the next regular
// file. ok is false once the walk is exhausted.
func (w *Walker) Next() (relativePath string, ok bool) {
	if !w.started {
		w.started = true
		w.push("")
	}

	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		if top.next >= len(top.entries) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}

		entry := top.entries[top.next]
		top.next++

		rel := path.Join(top.rel, entry.Name())
		if w.ignore.Match(rel) {
			continue
		}

		switch {
		case entry.IsDir():
			w.push(rel)
		case entry.Type().IsRegular():
			return rel, true
		}
	}

	return "", false
}

// push reads a directory (sorted by name) and makes it the current frame.
func (w *Walker) push(rel string) {
	entries, err := os.ReadDir(filepath.Join(w.root, filepath.FromSlash(rel)))
	if err != nil {
		w.onError(rel, err)
	}
	if len(entries) == 0 {
		return
	}
	w.stack = append(w.stack, &walkFrame{rel: rel, entries: entries})
}

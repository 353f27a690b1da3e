// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fileserver serves files to and from the file-exchange agent.
//
// Dir exposes a local directory read-only, so FileURI parts can point at
// it. Downloads keeps the documents an agent produced and serves them as
// attachments.
package fileserver

import (
	"bytes"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Dir serves the regular files below root. Directory listings, hidden
// files and paths escaping root answer 404.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "serve", Path: abs, Err: os.ErrInvalid}
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Root() string { return d.root }

// Routes mounts GET /* on a chi router.
func (d *Dir) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/*", d.serve)
	return r
}

func (d *Dir) serve(w http.ResponseWriter, r *http.Request) {
	path, ok := d.resolve(chi.URLParam(r, "*"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	slog.Debug("Serving file", "path", path, "size", info.Size())
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// resolve maps a request path below root. It rejects traversal and
// hidden path elements.
func (d *Dir) resolve(name string) (string, bool) {
	if name == "" || strings.Contains(name, "\\") {
		return "", false
	}
	for _, elem := range strings.Split(name, "/") {
		if elem == ".." || strings.HasPrefix(elem, ".") {
			return "", false
		}
	}

	path := filepath.Join(d.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(d.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return path, true
}

// Download is one stored document.
type Download struct {
	Name     string
	MimeType string
	Content  []byte
	Modified time.Time
}

// Downloads keeps the latest document per name in memory.
type Downloads struct {
	mu    sync.RWMutex
	files map[string]Download
}

func NewDownloads() *Downloads {
	return &Downloads{files: make(map[string]Download)}
}

// Put stores content under name, replacing an older version.
func (d *Downloads) Put(name string, content []byte, mime string) {
	if mime == "" {
		mime = "application/octet-stream"
	}
	cp := make([]byte, len(content))
	copy(cp, content)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[name] = Download{Name: name, MimeType: mime, Content: cp, Modified: time.Now()}
}

func (d *Downloads) Get(name string) (Download, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.files[name]
	return f, ok
}

// Handler serves the document stored under name as an attachment.
func (d *Downloads) Handler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := d.Get(name)
		if !ok {
			http.Error(w, "no file available yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", f.MimeType)
		w.Header().Set("Content-Disposition", "attachment; filename="+f.Name)
		http.ServeContent(w, r, f.Name, f.Modified, bytes.NewReader(f.Content))
	})
}

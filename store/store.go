// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package store saves rendered QR codes as files next to content.

Files live in parent directories under a root.  Each file has a YAML
sidecar, the file name with ".yml" appended, holding its identity,
template, content fields, creator and creation time.  Save never
replaces an existing file unless forced, and a replaced file gets a new
ID and media URL.
*/
package store // import "github.com/unixdj/qrkit/store"

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

var (
	ErrExists     = errors.New("store: file exists")
	ErrName       = errors.New("store: invalid name")
	ErrNoMetadata = errors.New("store: file has no metadata")
)

// SystemActor is the creator recorded when SaveOptions.Actor is empty.
const SystemActor = "system"

// sidecarExt is appended to file names to name their metadata.
const sidecarExt = ".yml"

// A File describes a stored file.
type File struct {
	ID       string            `yaml:"id"`
	Name     string            `yaml:"-"`
	Path     string            `yaml:"-"` // path on disk
	Parent   string            `yaml:"-"` // parent directory, slash separated
	MIME     string            `yaml:"mime"`
	Template string            `yaml:"template,omitempty"`
	Content  map[string]string `yaml:"content,omitempty"`
	Creator  string            `yaml:"creator"`
	Created  time.Time         `yaml:"created"`
	MediaURL string            `yaml:"-"`
}

// SaveOptions control Save.
type SaveOptions struct {
	Template string            // template name stored with the file
	Content  map[string]string // content fields stored with the file
	Actor    string            // acting user, SystemActor if empty
	MIME     string            // MIME type, by extension if empty
	Force    bool              // replace an existing file
}

// A Store keeps files under a root directory.
type Store struct {
	root      string
	log       *zap.Logger
	now       func() time.Time
	MediaBase string // URL path prefix of media URLs
}

// New returns a Store rooted at root.  A nil log discards messages.
func New(root string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		root:      root,
		log:       log.Named("store"),
		now:       time.Now,
		MediaBase: "/media",
	}
}

var slugFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// slug lowercases s, strips diacritics and replaces runs of characters
// other than ASCII letters, digits, '@', '.', '_' and '-' with '-'.
func slug(s string) string {
	if t, _, err := transform.String(slugFold, s); err == nil {
		s = t
	}
	s = strings.ToLower(s)
	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9',
			r == '@', r == '.', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-.")
}

// SafeName returns name reduced to a safe file name: the last path
// element, lowercased, without diacritics, with unsafe characters
// replaced.  It returns ErrName if nothing is left of the name before
// the extension.
func SafeName(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := path.Ext(base)
	stem := slug(base[:len(base)-len(ext)])
	if ext = slug(ext); ext != "" {
		ext = "." + ext
	}
	if stem == "" || strings.HasSuffix(stem+ext, sidecarExt) {
		return "", fmt.Errorf("%w %q", ErrName, name)
	}
	return stem + ext, nil
}

// dir returns the directory of parent.
func (s *Store) dir(parent string) (string, error) {
	if parent == "" || parent == "." {
		return s.root, nil
	}
	p := filepath.FromSlash(parent)
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("%w: parent %q", ErrName, parent)
	}
	return filepath.Join(s.root, p), nil
}

func (s *Store) file(parent, name, dir string) *File {
	parent = path.Clean("/" + filepath.ToSlash(parent))[1:]
	return &File{
		Name:   name,
		Path:   filepath.Join(dir, name),
		Parent: parent,
	}
}

func (s *Store) mediaURL(f *File) string {
	return path.Join(s.MediaBase, f.Parent, f.ID, f.Name)
}

/*
Save stores data as file name in directory parent and returns its
description.  The name is reduced by SafeName.

If the file exists, Save returns ErrExists unless opt.Force is set, in
which case the file is replaced and gets a new ID and media URL.  A
file without a sidecar counts as existing.  Data and metadata are
written to temporary files in the same directory and moved in place,
so readers never see a partial file; if the metadata cannot be moved
in place, the previous file is restored.
*/
func (s *Store) Save(ctx context.Context, parent, name string, data []byte, opt SaveOptions) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	safe, err := SafeName(name)
	if err != nil {
		return nil, err
	}
	dir, err := s.dir(parent)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	f := s.file(parent, safe, dir)
	f.ID = uuid.NewString()
	f.MIME = opt.MIME
	if f.MIME == "" {
		if f.MIME = mime.TypeByExtension(path.Ext(safe)); f.MIME == "" {
			f.MIME = "application/octet-stream"
		}
	}
	f.Template = opt.Template
	f.Content = opt.Content
	f.Creator = opt.Actor
	if f.Creator == "" {
		f.Creator = SystemActor
	}
	f.Created = s.now().UTC().Truncate(time.Second)
	f.MediaURL = s.mediaURL(f)

	old, err := s.read(f.Path)
	exists := err == nil || errors.Is(err, ErrNoMetadata)
	if err != nil && !exists && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if exists && !opt.Force {
		return nil, fmt.Errorf("%w: %s; overwriting needs force "+
			"and changes the file ID and media URL", ErrExists, f.Path)
	}
	oldID := ""
	if old != nil {
		oldID = old.ID
	}

	meta, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	tmp, err := writeTemp(ctx, dir, safe, data)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)
	mtmp, err := writeTemp(ctx, dir, safe+sidecarExt, meta)
	if err != nil {
		return nil, err
	}
	defer os.Remove(mtmp)

	done, err := publish(tmp, f.Path, opt.Force)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(mtmp, f.Path+sidecarExt); err != nil {
		done(false)
		return nil, fmt.Errorf("store: metadata: %w", err)
	}
	done(true)

	if exists {
		s.log.Info("replaced file",
			zap.String("path", f.Path),
			zap.String("old_id", oldID),
			zap.String("id", f.ID),
			zap.String("actor", f.Creator))
	} else {
		s.log.Info("saved file",
			zap.String("path", f.Path),
			zap.String("id", f.ID),
			zap.Int("size", len(data)),
			zap.String("actor", f.Creator))
	}
	return f, nil
}

// publish moves the temporary file tmp to p.  Unless force is set, p
// must not exist.  The returned function keeps the new file if ok is
// true, and otherwise restores p as it was.
func publish(tmp, p string, force bool) (func(ok bool), error) {
	if !force {
		// link fails if the file appeared meanwhile
		if err := os.Link(tmp, p); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return nil, fmt.Errorf("%w: %s", ErrExists, p)
			}
			return nil, fmt.Errorf("store: %w", err)
		}
		return func(ok bool) {
			if !ok {
				os.Remove(p)
			}
		}, nil
	}

	// the replaced file stays linked until the metadata is in place
	bak := tmp + ".old"
	if err := os.Link(p, bak); errors.Is(err, fs.ErrNotExist) {
		bak = ""
	} else if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		if bak != "" {
			os.Remove(bak)
		}
		return nil, fmt.Errorf("store: %w", err)
	}
	return func(ok bool) {
		switch {
		case ok:
			if bak != "" {
				os.Remove(bak)
			}
		case bak != "":
			os.Rename(bak, p)
		default:
			os.Remove(p)
		}
	}, nil
}

// writeTemp writes data to a new temporary file in dir and returns
// its name.
func writeTemp(ctx context.Context, dir, name string, data []byte) (string, error) {
	t, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	_, err = t.Write(data)
	if err == nil {
		err = t.Sync()
	}
	if cerr := t.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(t.Name())
		return "", fmt.Errorf("store: %w", err)
	}
	return t.Name(), nil
}

// Lookup returns the description of file name in directory parent.
// It returns an error matching fs.ErrNotExist if there is none, and
// ErrNoMetadata if the file has no sidecar.
func (s *Store) Lookup(ctx context.Context, parent, name string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	safe, err := SafeName(name)
	if err != nil {
		return nil, err
	}
	dir, err := s.dir(parent)
	if err != nil {
		return nil, err
	}
	f := s.file(parent, safe, dir)
	meta, err := s.read(f.Path)
	if err != nil {
		return nil, err
	}
	meta.Name, meta.Path, meta.Parent = f.Name, f.Path, f.Parent
	meta.MediaURL = s.mediaURL(meta)
	return meta, nil
}

// read returns the metadata of the file at p.  It returns
// ErrNoMetadata if the file exists without a sidecar.
func (s *Store) read(p string) (*File, error) {
	if _, err := os.Stat(p); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p + sidecarExt)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoMetadata, p)
	}
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("store: %s%s: %w", p, sidecarExt, err)
	}
	return &f, nil
}

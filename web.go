// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrAttr is returned by HTML for an invalid attribute name.
var ErrAttr = errors.New("qr: invalid HTML attribute name")

// Render returns the code encoded in the format chosen by the
// extension of name, and the format.
func (c *Code) Render(name string) ([]byte, Format, error) {
	f, err := FormatOf(name)
	if err != nil {
		return nil, 0, err
	}
	var b bytes.Buffer
	if err := c.Encode(&b, f); err != nil {
		return nil, 0, err
	}
	return b.Bytes(), f, nil
}

// DataURI returns the code as a data URI in the format chosen by the
// extension of name.
func (c *Code) DataURI(name string) (string, error) {
	data, f, err := c.Render(name)
	if err != nil {
		return "", err
	}
	mime := f.MIME()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," +
		base64.StdEncoding.EncodeToString(data), nil
}

// HTML returns an <img> tag embedding the code as a data URI, in the
// format chosen by the extension of name.  Attributes are sorted by
// name and values are escaped; a "src" attribute in attrs is replaced.
// Names must start with an ASCII letter, '_' or ':' followed by
// letters, digits, '-', '_', ':' or '.', else HTML returns ErrAttr.
func (c *Code) HTML(name string, attrs map[string]string) (string, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if !attrName(k) {
			return "", fmt.Errorf("%w: %q", ErrAttr, k)
		}
		if !strings.EqualFold(k, "src") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	src, err := c.DataURI(name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("<img")
	for _, k := range keys {
		b.WriteString(" " + k + `="` +
			html.EscapeString(attrs[k]) + `"`)
	}
	b.WriteString(` src="` + src + `">`)
	return b.String(), nil
}

func attrName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', c == '_', c == ':':
		case i > 0 && ('0' <= c && c <= '9' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// Download writes the code to w as an HTTP attachment named name, in
// the format chosen by the extension of name.  Nothing is written on
// error.
func (c *Code) Download(w http.ResponseWriter, name string) error {
	data, f, err := c.Render(name)
	if err != nil {
		return err
	}
	h := w.Header()
	h.Set("Content-Type", f.MIME())
	h.Set("Content-Disposition",
		"attachment; filename="+strconv.Quote(path.Base(name)))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(data)
	return err
}

// Token returns a token for download routes identifying id, valid on
// the day of t in t's location: the hex SHA-1 of secret, "qrcode", id
// and the date as yymmdd.
func Token(secret, id string, t time.Time) string {
	h := sha1.New()
	h.Write([]byte(secret + "qrcode" + id + t.Format("060102")))
	return hex.EncodeToString(h.Sum(nil))
}

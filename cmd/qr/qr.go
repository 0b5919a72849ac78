// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command qr writes QR codes.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pborman/getopt/v2"
	"go.uber.org/zap"

	qr "github.com/unixdj/qrkit"
	"github.com/unixdj/qrkit/coding"
	"github.com/unixdj/qrkit/internal/config"
	"github.com/unixdj/qrkit/internal/logger"
	"github.com/unixdj/qrkit/split"
	"github.com/unixdj/qrkit/store"
)

var g = struct {
	cx      int    // randr source X coordinate index in inc
	inc     [2]int // randr source X,Y coordinate increments
	rev     bool   // reverse colours
	upper   bool   // uppercase
	fn      string // output filename
	save    string // store parent directory
	force   bool   // overwrite saved file
	tmpl    string // template of saved file
	actor   string // acting user
	html    bool   // print <img> tag
	token   string // print download token for id
	verbose bool   // debug logging
}{
	inc: [2]int{1, 1},
}

func printUsage(w io.Writer) {
	cl := getopt.CommandLine
	prog := cl.Program()
	ul := make([]string, 1, 4)
	ul[0] = cl.UsageLine() + " [string ...]"
	ml := max(70-len("Usage: ")-1-len(prog), 0)
	for i := 0; len(ul[i]) > ml; i++ {
		s := ul[i]
		n := ml - 1
		for n > 0 && (s[n] != ' ' || s[n+1] != '[') {
			n--
		}
		if n <= 0 {
			break
		}
		ul = append(ul, s[n+1:])
		ul[i] = s[:n]
		ml = 60
	}
	fmt.Fprint(w, "QR code generator\nUsage: ", prog, " ",
		strings.Join(ul, "\n          "), `
If no string is given, data is read from standard input and the final
newline is stripped.  Defaults come from the configuration file, the
.env file and QR_* environment variables, in that order; flags
override them.

`)
	cl.PrintOptions(w)
}

type opt func()

func (opt) String() string                    { return "" }
func (o opt) Set(string, getopt.Option) error { o(); return nil }

func usage() {
	printUsage(os.Stderr)
	os.Exit(2)
}

func help() {
	printUsage(os.Stdout)
	os.Exit(0)
}

func version() {
	fmt.Println(`qr version 0.9.0
Copyright (c) 2011 The Go Authors
Copyright (c) 2024 Vadim Vygonets`)
	os.Exit(0)
}

func flip() {
	g.inc[0] = -g.inc[0]
}

func rotate() {
	g.cx ^= 1
	m := g.inc[0] * g.inc[1]
	g.inc[0] *= m
	g.inc[1] *= -m
}

// textFlag is a getopt.Value setting an encoding.TextUnmarshaler.
type textFlag struct {
	v interface {
		UnmarshalText([]byte) error
		MarshalText() ([]byte, error)
	}
}

func (f textFlag) String() string {
	b, _ := f.v.MarshalText()
	return string(b)
}

func (f textFlag) Set(s string, _ getopt.Option) error {
	return f.v.UnmarshalText([]byte(s))
}

// parseFlags loads the configuration and applies flags over it.
func parseFlags() *config.Config {
	var (
		cfgFile = "qr.yml"
		envFile = ".env"
		flags   config.Config
		fg, bg  qr.Color
	)
	getopt.SetUsage(usage)
	getopt.Flag(opt(help), 'h', "show this help").SetFlag()
	getopt.Flag(opt(version), 'V', "print version and copyright").SetFlag()
	getopt.FlagLong(&cfgFile, "config", 'C', "configuration file", "file")
	getopt.FlagLong(&envFile, "env", 0, "environment file", "file")
	getopt.FlagLong(textFlag{&bg}, "background", 'B',
		"background colour; see -F", "RGB[A]|name")
	getopt.FlagLong(textFlag{&fg}, "foreground", 'F',
		"foreground colour as 3, 4, 6 or 8 hex digits or a colour "+
			"name; not for types pbm, utf8 and ascii", "RGB[A]|name")
	getopt.Flag(opt(flip), 'f', `flip code horizontally; `+
		`to flip vertically, use "-frr"`).SetFlag()
	getopt.Flag(opt(rotate), 'r', `rotate code 90° counterclockwise; `+
		`-r and -f may be given multiple times, `+
		`order matters: "-fr" = "-rfrr" = "-rrrf"`).SetFlag()
	getopt.Flag(&flags.NoKanji, 'K', "disable kanji mode")
	latin1 := getopt.Bool('1', "encode byte mode segments as Latin-1")
	getopt.FlagLong(textFlag{&flags.Mode}, "mode", 'M',
		"encode entire data in one mode: numeric, alphanumeric, "+
			"byte, kanji or latin-1", "mode")
	getopt.Flag(&g.upper, 'i', `ignore case, convert input to uppercase`)
	getopt.Flag(&flags.Margin, 'm', `quiet zone modules [4]`, "margin")
	getopt.Flag(&g.fn, 'o', `output file, or "-" for standard output`,
		"file")
	getopt.Flag(&flags.ECI, 'e', "encode ECI segment naming the "+
		"byte mode charset")
	getopt.Flag(&flags.Boost, 'b', "raise the error correction level "+
		"while the data fits")
	getopt.FlagLong(&flags.AllowEmpty, "allow-empty", 0, "encode empty input")
	getopt.FlagLong(&flags.MinRun, "min-run", 'R', "shortest digit or "+
		"alphanumeric run worth a mode switch", "runes")
	ver := getopt.Unsigned('v', 0, &getopt.UnsignedLimit{Base: 0, Bits: 8, Min: 0, Max: 40},
		"minimum QR code version", "ver")
	getopt.FlagLong(textFlag{&flags.Level}, "level", 'l',
		"error correction level, lowest to highest", "l|m|q|h")
	getopt.Flag(&flags.Size, 's',
		`image pixels (type eps: points) per QR module; `+
			`ignored for types utf8 and ascii`, "scale")
	getopt.Flag(&g.rev, 'I', "invert colours")
	getopt.Flag(&flags.Format, 't', `output format, one of: `+
		`png, bmp, svg, pbm, eps, utf8, ascii; `+
		`if no -o is given and standard output is a TTY, `+
		`default is utf8, otherwise the type of the -o suffix or png`,
		"type")
	getopt.FlagLong(&g.save, "save", 'S', "save to the store under the "+
		"given parent directory, named by -o", "parent")
	getopt.FlagLong(&g.force, "force", 0, "with -S, overwrite an "+
		"existing file; this changes its ID and media URL")
	getopt.FlagLong(&g.tmpl, "template", 0, "with -S, template name", "name")
	getopt.FlagLong(&g.actor, "actor", 0, "with -S, acting user", "user")
	getopt.FlagLong(&g.html, "html", 0, `print an <img> tag embedding `+
		`the code in the format of the -o suffix`)
	getopt.FlagLong(&g.token, "token", 0, "print the download token "+
		"for id and exit", "id")
	getopt.Flag(&g.verbose, 'd', "debug logging")

	getopt.Parse()

	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, f := range []struct {
		name rune
		set  func()
	}{
		{'B', func() { cfg.Background = &bg }},
		{'F', func() { cfg.Foreground = &fg }},
		{'K', func() { cfg.NoKanji = flags.NoKanji }},
		{'M', func() { cfg.Mode = flags.Mode }},
		{'m', func() { cfg.Margin = flags.Margin }},
		{'e', func() { cfg.ECI = flags.ECI }},
		{'b', func() { cfg.Boost = flags.Boost }},
		{'R', func() { cfg.MinRun = flags.MinRun }},
		{'l', func() { cfg.Level = flags.Level }},
		{'s', func() { cfg.Size = flags.Size }},
		{'t', func() { cfg.Format = flags.Format }},
		{'v', func() { cfg.MinVersion = coding.Version(*ver) }},
		{'1', func() {
			if *latin1 {
				cfg.Charset = split.ISO8859_1
			}
		}},
	} {
		if getopt.IsSet(f.name) {
			f.set()
		}
	}
	if getopt.IsSet("allow-empty") {
		cfg.AllowEmpty = flags.AllowEmpty
	}
	if g.fn == "-" {
		g.fn = ""
	}
	if g.save != "" && g.fn == "" {
		fmt.Fprintln(os.Stderr, "-S needs a file name given by -o")
		usage()
	}
	if err := cfg.Options.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}

// format returns the output format.
func format(cfg *config.Config) (qr.Format, error) {
	switch {
	case cfg.Format != "":
		return qr.ParseFormat(cfg.Format)
	case g.fn != "":
		if f, err := qr.FormatOf(g.fn); err == nil {
			return f, nil
		}
		return qr.PNG, nil
	case isatty.IsTerminal(uintptr(syscall.Stdout)) && g.save == "" && !g.html:
		return qr.UTF8, nil
	}
	return qr.PNG, nil
}

func main() {
	cfg := parseFlags()
	level := cfg.LogLevel
	if g.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Production: cfg.LogJSON})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	if err := run(cfg, log); err != nil {
		log.Error("failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if g.token != "" {
		if cfg.Secret == "" {
			return errors.New("no secret configured for tokens")
		}
		fmt.Println(qr.Token(cfg.Secret, g.token, time.Now()))
		return nil
	}

	var s string
	if args := getopt.Args(); len(args) != 0 {
		s = strings.Join(args, " ")
	} else {
		var b strings.Builder
		if _, err := io.Copy(&b, os.Stdin); err != nil {
			return err
		}
		s, _ = strings.CutSuffix(
			strings.ReplaceAll(b.String(), "\r\n", "\n"), "\n")
	}
	if g.upper {
		s = strings.ToUpper(s)
	}

	c, err := qr.EncodeText(s, &cfg.Options)
	if err != nil {
		return err
	}
	log.Debug("encoded",
		zap.Stringer("version", c.Version),
		zap.Stringer("level", c.Level),
		zap.Int("mask", c.Mask),
		zap.Int("segments", len(c.Segments)))
	c = randr(c)
	c.Reverse = g.rev

	f, err := format(cfg)
	if err != nil {
		return err
	}
	if g.html {
		name := g.fn
		if name == "" {
			name = "qr" + f.Ext()
		}
		tag, err := c.HTML(name, map[string]string{"alt": s})
		if err != nil {
			return err
		}
		fmt.Println(tag)
		return nil
	}

	if g.save != "" {
		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()
		var b bytes.Buffer
		if err := c.Encode(&b, f); err != nil {
			return err
		}
		st := store.New(cfg.StoreRoot, log)
		st.MediaBase = cfg.MediaBase
		file, err := st.Save(ctx, g.save, g.fn, b.Bytes(), store.SaveOptions{
			Template: g.tmpl,
			Content:  map[string]string{"text": s},
			Actor:    g.actor,
			MIME:     f.MIME(),
			Force:    g.force,
		})
		if err != nil {
			return err
		}
		fmt.Println(file.MediaURL)
		return nil
	}

	w := os.Stdout
	if g.fn != "" {
		if w, err = os.Create(g.fn); err != nil {
			return err
		}
	}
	err = c.Encode(w, f)
	if g.fn != "" {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// randr rotates and reflects c.
func randr(c *qr.Code) *qr.Code {
	cx, inc := g.cx, g.inc
	if cx == 0 && inc == [2]int{1, 1} {
		return c
	}
	b := make([]byte, 0, len(c.Bitmap))
	var coord [2]int
	siz := c.Size
	coord[cx^1] = (siz - 1) & inc[1]
	for y := 0; y < siz; y++ {
		coord[cx] = (siz - 1) & inc[0]
		var bb byte
		for x := 0; x < siz; x++ {
			bb <<= 1
			if c.Black(coord[0], coord[1]) {
				bb |= 1
			}
			if x&7 == 7 {
				b = append(b, bb)
			}
			coord[cx] += inc[0]
		}
		if siz&7 != 0 {
			b = append(b, bb<<(8-siz&7))
		}
		coord[cx^1] += inc[1]
	}
	c.Bitmap = b
	return c
}

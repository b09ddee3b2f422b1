package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wagiedev/formlink-go/internal/monitor"
)

// File is the TOML representation of Options.
//
//	executable = "tform -w4"
//	layout = "pipe-fd"
//	handshake = true
//	init_file = "/usr/share/formlink/init.frm"
//	read_timeout = "30s"
//	log_scrollback = 200
//
//	[[diagnostic]]
//	contains = "--> Warning"
//	class = "warning"
type File struct {
	Executable          string            `toml:"executable"`
	Args                []string          `toml:"args"`
	InitFile            string            `toml:"init_file"`
	Layout              string            `toml:"layout"`
	Cwd                 string            `toml:"cwd"`
	Env                 map[string]string `toml:"env"`
	Handshake           bool              `toml:"handshake"`
	LogScrollback       int               `toml:"log_scrollback"`
	ReadTimeout         string            `toml:"read_timeout"`
	StartTimeout        string            `toml:"start_timeout"`
	ShutdownTimeout     string            `toml:"shutdown_timeout"`
	ReplaceDefaultRules bool              `toml:"replace_default_rules"`
	Diagnostics         []RuleEntry       `toml:"diagnostic"`

	meta toml.MetaData
}

// RuleEntry is one [[diagnostic]] table. Exactly one of Contains and Regexp
// must be set.
type RuleEntry struct {
	Contains string `toml:"contains"`
	Regexp   string `toml:"regexp"`
	Class    string `toml:"class"`
}

// LoadFile reads a TOML config file.
func LoadFile(path string) (*File, error) {
	var f File

	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	f.meta = meta

	if err := f.checkUndecoded(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	return &f, nil
}

// ParseFile decodes TOML config text.
func ParseFile(data string) (*File, error) {
	var f File

	meta, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	f.meta = meta

	if err := f.checkUndecoded(); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &f, nil
}

func (f *File) checkUndecoded() error {
	undecoded := f.meta.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	keys := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		keys = append(keys, k.String())
	}

	return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
}

// Apply overlays the keys present in the file onto o.
func (f *File) Apply(o *Options) error {
	if f.meta.IsDefined("executable") {
		o.Executable = strings.TrimSpace(f.Executable)
	}

	if f.meta.IsDefined("args") {
		o.Args = append([]string(nil), f.Args...)
	}

	if f.meta.IsDefined("init_file") {
		o.InitFile = strings.TrimSpace(f.InitFile)
	}

	if f.meta.IsDefined("layout") {
		layout, err := ParseLayout(f.Layout)
		if err != nil {
			return err
		}

		o.Layout = layout
	}

	if f.meta.IsDefined("cwd") {
		o.Cwd = f.Cwd
	}

	if f.meta.IsDefined("env") {
		o.Env = f.Env
	}

	if f.meta.IsDefined("handshake") {
		o.Handshake = f.Handshake
	}

	if f.meta.IsDefined("log_scrollback") {
		o.LogScrollback = f.LogScrollback
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"read_timeout", f.ReadTimeout, &o.ReadTimeout},
		{"start_timeout", f.StartTimeout, &o.StartTimeout},
		{"shutdown_timeout", f.ShutdownTimeout, &o.ShutdownTimeout},
	}

	for _, d := range durations {
		if !f.meta.IsDefined(d.key) {
			continue
		}

		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}

		if v < 0 {
			return fmt.Errorf("%s: negative duration %s", d.key, v)
		}

		*d.dst = v
	}

	if f.meta.IsDefined("replace_default_rules") {
		o.ReplaceDefaultRules = f.ReplaceDefaultRules
	}

	for i, entry := range f.Diagnostics {
		rule, err := entry.Rule()
		if err != nil {
			return fmt.Errorf("diagnostic[%d]: %w", i, err)
		}

		o.DiagnosticRules = append(o.DiagnosticRules, rule)
	}

	return nil
}

// Rule converts the entry into a classifier rule.
func (e RuleEntry) Rule() (monitor.Rule, error) {
	class, err := monitor.ParseClass(e.Class)
	if err != nil {
		return monitor.Rule{}, err
	}

	switch {
	case e.Contains != "" && e.Regexp != "":
		return monitor.Rule{}, fmt.Errorf("set only one of contains and regexp")
	case e.Regexp != "":
		re, err := regexp.Compile(e.Regexp)
		if err != nil {
			return monitor.Rule{}, fmt.Errorf("regexp: %w", err)
		}

		return monitor.Rule{Regexp: re, Class: class}, nil
	case e.Contains != "":
		return monitor.Rule{Contains: e.Contains, Class: class}, nil
	default:
		return monitor.Rule{}, fmt.Errorf("one of contains and regexp is required")
	}
}

// ParseLayout parses a layout name as written in config files.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stdio":
		return LayoutStdio, nil
	case "pipe-fd", "pipefd", "pipe":
		return LayoutPipeFD, nil
	default:
		return LayoutStdio, fmt.Errorf("unknown layout %q", s)
	}
}

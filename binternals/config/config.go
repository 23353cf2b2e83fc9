// Package config reads the user-level bazaar configuration file
// (bazaar.conf). Only the options the tools in this repository consume
// are exposed; everything else is reachable through GetUserOption.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

// defaultLoadOption contains the params used to load the config files.
// bazaar.conf tolerates lines other tools put there, so unknown lines
// are skipped rather than rejected.
//
//nolint:gochecknoglobals // treat this as a const
var defaultLoadOption = ini.LoadOptions{
	SkipUnrecognizableLines: true,
}

// defaultSection is the section bazaar.conf keeps the user options in.
const defaultSection = "DEFAULT"

// GlobalConfig gives access to the options of a bazaar.conf file.
type GlobalConfig struct {
	file *ini.File
}

// DefaultPath returns the conventional location of bazaar.conf:
// $BZR_HOME/.bazaar/bazaar.conf, with $BZR_HOME falling back to $HOME.
func DefaultPath() string {
	home := os.Getenv("BZR_HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".bazaar", "bazaar.conf")
}

// LoadGlobal loads the bazaar.conf file at path. A missing file is not
// an error: every option falls back to its zero value, matching how the
// original tools behave when the user never created a configuration.
func LoadGlobal(fs afero.Fs, path string) (*GlobalConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{file: ini.Empty(defaultLoadOption)}, nil
		}
		return nil, xerrors.Errorf("could not read %s: %w", path, err)
	}
	file, err := ini.LoadSources(defaultLoadOption, data)
	if err != nil {
		return nil, xerrors.Errorf("could not parse %s: %w", path, err)
	}
	return &GlobalConfig{file: file}, nil
}

// GetUserOption returns the named option from the DEFAULT section, or ""
// if not set.
func (c *GlobalConfig) GetUserOption(name string) string {
	return c.file.Section(defaultSection).Key(name).String()
}

// Email returns the configured user identity ("Name <email>" form).
func (c *GlobalConfig) Email() string {
	return c.GetUserOption("email")
}

// DebugFlags returns the configured debug flags as a list. The option
// holds a comma-separated set of subsystem names whose debug output the
// user wants.
func (c *GlobalConfig) DebugFlags() []string {
	raw := c.GetUserOption("debug_flags")
	if raw == "" {
		return nil
	}
	var flags []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			flags = append(flags, f)
		}
	}
	return flags
}

// HasDebugFlag tells whether the given subsystem is listed in
// debug_flags.
func (c *GlobalConfig) HasDebugFlag(name string) bool {
	for _, f := range c.DebugFlags() {
		if f == name {
			return true
		}
	}
	return false
}

package codegen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const configFile = "fxevents.toml"

// Options are the generator knobs, settable through the [generate]
// section of an fxevents.toml next to the working directory.
type Options struct {
	// Output is the name of the generated file in each package
	// directory.
	Output string `toml:"output"`
	// Tag is the struct-tag key carrying per-field directives.
	Tag string `toml:"tag"`
}

func (o Options) withDefaults() Options {
	if o.Output == "" {
		o.Output = "fx_events_gen.go"
	}
	if o.Tag == "" {
		o.Tag = "fx"
	}
	return o
}

// LoadOptions reads the optional fxevents.toml in dir. A missing file
// yields the defaults.
func LoadOptions(dir string) (Options, error) {
	var file struct {
		Generate Options `toml:"generate"`
	}

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if errors.Is(err, os.ErrNotExist) {
		return Options{}.withDefaults(), nil
	}
	if err != nil {
		return Options{}, err
	}

	md, err := toml.Decode(string(data), &file)
	if err != nil {
		return Options{}, fmt.Errorf("%s: %w", configFile, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Options{}, fmt.Errorf("%s: unknown key %q", configFile, undecoded[0].String())
	}

	return file.Generate.withDefaults(), nil
}

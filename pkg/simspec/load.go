package simspec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/iti/rngstream"
	"gopkg.in/yaml.v3"

	"github.com/netsimkit/ifsim/pkg/sim"
	"github.com/netsimkit/ifsim/pkg/util"
)

// Load reads and decodes a scenario file. Decoding is strict: unknown keys
// are errors, so a typoed field fails loudly instead of silently taking its
// default.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes scenario YAML.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("scenario is empty: %w", util.ErrInvalidConfig)
		}
		return nil, err
	}
	return &f, nil
}

// Options materializes the engine block. The zero block yields the engine
// defaults.
func (f *File) Options() (sim.Options, error) {
	e := f.Engine

	b := &util.ValidationBuilder{}
	b.Add(e.TickInterval >= 0, "engine: tick_interval must not be negative")
	b.Add(e.HistorySize >= 0, "engine: history_size must not be negative")
	b.Add(e.RandomEvents.Probability >= 0 && e.RandomEvents.Probability <= 1,
		"engine: random_events.probability must be in [0,1]")
	b.Add(e.ErrorRateThreshold >= 0, "engine: error_rate_threshold must not be negative")

	opts := sim.Options{
		TickInterval: e.TickInterval,
		HistorySize:  e.HistorySize,
		RandomEvents: sim.RandomEventConfig{
			Enabled:     e.RandomEvents.Enabled,
			Probability: e.RandomEvents.Probability,
		},
		ErrorRateThreshold: e.ErrorRateThreshold,
	}
	if e.Seed != "" {
		opts.Rand = rngstream.New(e.Seed)
	}
	if e.Location != "" {
		loc, err := time.LoadLocation(e.Location)
		if err != nil {
			b.AddErrorf("engine: unknown location %q", e.Location)
		} else {
			opts.Location = loc
		}
	}
	if err := b.Build(); err != nil {
		return sim.Options{}, err
	}
	return opts, nil
}

// Validate dry-runs the scenario against a throwaway engine, so it reports
// exactly what Apply would reject: bad engine settings, bad pattern configs,
// bad interface definitions, duplicate indexes or names.
func (f *File) Validate() error {
	opts, err := f.Options()
	if err != nil {
		return err
	}
	if _, err := f.Apply(sim.New(opts)); err != nil {
		return err
	}
	return nil
}

// Apply defines the scenario's custom patterns on e and registers its
// interfaces, returning the handles in file order.
func (f *File) Apply(e *sim.Engine) ([]*sim.Interface, error) {
	if len(f.Interfaces) == 0 {
		return nil, fmt.Errorf("scenario defines no interfaces: %w", util.ErrInvalidConfig)
	}

	names := make([]string, 0, len(f.Patterns))
	for name := range f.Patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.Patterns().Define(name, f.Patterns[name].Config()); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", name, err)
		}
	}

	ifaces := make([]*sim.Interface, 0, len(f.Interfaces))
	for _, decl := range f.Interfaces {
		def, err := decl.definition()
		if err != nil {
			return nil, fmt.Errorf("interface %d (%s): %w", decl.Index, decl.Name, err)
		}
		iface, err := e.RegisterInterface(def)
		if err != nil {
			return nil, fmt.Errorf("interface %d (%s): %w", decl.Index, decl.Name, err)
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

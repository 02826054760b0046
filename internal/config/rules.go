package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/red-tetris-backend/internal/engine"
	"github.com/DoyleJ11/red-tetris-backend/internal/match"
	"github.com/DoyleJ11/red-tetris-backend/internal/player"
)

//go:embed defaults/rules.yaml
var defaultRulesYAML []byte

// Rules are the game constants shared by the server and headless clients.
type Rules struct {
	SequenceLength     int          `yaml:"sequence_length"`
	DefaultCapacity    int          `yaml:"default_capacity"`
	Spawn              engine.Spawn `yaml:"spawn"`
	GravityMS          int          `yaml:"gravity_ms"`
	SoftDropMS         int          `yaml:"soft_drop_ms"`
	LockDelayMS        int          `yaml:"lock_delay_ms"`
	MaxLockResets      int          `yaml:"max_lock_resets"`
	FrameMS            int          `yaml:"frame_ms"`
	SpectrumIntervalMS int          `yaml:"spectrum_interval_ms"`
}

func DefaultRules() Rules {
	r, err := decodeRules(Rules{}, defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("config: embedded rules: %v", err))
	}
	return r
}

// LoadRules overlays the YAML file at path on the defaults. An empty path
// returns the defaults.
func LoadRules(path string) (Rules, error) {
	base := DefaultRules()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("config: read rules: %w", err)
	}
	r, err := decodeRules(base, data)
	if err != nil {
		return Rules{}, fmt.Errorf("config: parse rules %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func decodeRules(base Rules, data []byte) (Rules, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&base); err != nil && !errors.Is(err, io.EOF) {
		return Rules{}, err
	}
	return base, nil
}

// Validate reports every out-of-range field, not just the first.
func (r Rules) Validate() error {
	var err error
	if r.SequenceLength < 1 {
		err = multierr.Append(err, fmt.Errorf("sequence_length must be positive, got %d", r.SequenceLength))
	}
	if r.DefaultCapacity < match.MinCapacity || r.DefaultCapacity > match.MaxCapacity {
		err = multierr.Append(err, fmt.Errorf("default_capacity must be %d-%d, got %d", match.MinCapacity, match.MaxCapacity, r.DefaultCapacity))
	}
	if r.Spawn.X < 0 || r.Spawn.X >= engine.Width {
		err = multierr.Append(err, fmt.Errorf("spawn.x out of the well: %d", r.Spawn.X))
	}
	if r.Spawn.Y < -2 || r.Spawn.Y >= engine.Height {
		err = multierr.Append(err, fmt.Errorf("spawn.y out of the well: %d", r.Spawn.Y))
	}
	for name, v := range map[string]int{
		"gravity_ms":           r.GravityMS,
		"soft_drop_ms":         r.SoftDropMS,
		"lock_delay_ms":        r.LockDelayMS,
		"frame_ms":             r.FrameMS,
		"spectrum_interval_ms": r.SpectrumIntervalMS,
	} {
		if v <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if r.MaxLockResets < 0 {
		err = multierr.Append(err, fmt.Errorf("max_lock_resets must not be negative, got %d", r.MaxLockResets))
	}
	if err != nil {
		return fmt.Errorf("config: invalid rules: %w", err)
	}
	return nil
}

func (r Rules) Match() match.Rules {
	return match.Rules{SequenceLength: r.SequenceLength, Spawn: r.Spawn}
}

func (r Rules) Timing() player.Timing {
	return player.Timing{
		Gravity:          ms(r.GravityMS),
		SoftDrop:         ms(r.SoftDropMS),
		LockDelay:        ms(r.LockDelayMS),
		MaxLockResets:    r.MaxLockResets,
		Frame:            ms(r.FrameMS),
		SpectrumInterval: ms(r.SpectrumIntervalMS),
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package wheel

import (
	"fmt"
	"time"
)

type SpinMode string

const (
	ModeRandom SpinMode = "random"
	ModeExact  SpinMode = "exact"
)

const (
	minTurns   = 5
	maxTurns   = 8
	exactTurns = 5

	minDuration   = 3 * time.Second
	durationRange = 2 * time.Second
)

// Plan describes how the browser should animate a spin. Rotation is the
// total rotation in degrees; it is also what the winner is resolved from.
type Plan struct {
	Mode     SpinMode      `json:"mode"`
	Rotation float64       `json:"rotation"`
	Duration time.Duration `json:"-"`
}

func ParseSpinMode(s string) (SpinMode, error) {
	switch SpinMode(s) {
	case "", ModeRandom:
		return ModeRandom, nil
	case ModeExact:
		return ModeExact, nil
	}

	return "", fmt.Errorf("unknown spin mode %q", s)
}

// NewPlan draws a spin. Random spins turn the wheel between five and eight
// times over three to five seconds; exact spins always turn it five times
// over three seconds.
func NewPlan(mode SpinMode, src Source) Plan {
	if mode == ModeExact {
		return Plan{
			Mode:     ModeExact,
			Rotation: exactTurns * 360,
			Duration: minDuration,
		}
	}

	turns := minTurns + src.Float64()*(maxTurns-minTurns)

	return Plan{
		Mode:     ModeRandom,
		Rotation: turns * 360,
		Duration: minDuration + time.Duration(src.Float64()*float64(durationRange)),
	}
}

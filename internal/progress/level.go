// AngelaMos | 2026
// level.go

package progress

import (
	"fmt"

	"github.com/carterperez-dev/coursegate/internal/core"
)

// Curve maps cumulative XP to a level. thresholds[i] is the XP needed for
// level i+1. Past the table the last step repeats.
type Curve struct {
	thresholds []int64
}

func NewCurve(thresholds []int64) (Curve, error) {
	if len(thresholds) < 2 {
		return Curve{}, fmt.Errorf("level curve needs two thresholds: %w", core.ErrInvalidInput)
	}
	if thresholds[0] != 0 {
		return Curve{}, fmt.Errorf("level curve must start at 0: %w", core.ErrInvalidInput)
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return Curve{}, fmt.Errorf(
				"level curve not ascending at %d: %w",
				i,
				core.ErrInvalidInput,
			)
		}
	}
	return Curve{thresholds: append([]int64(nil), thresholds...)}, nil
}

type Level struct {
	Level         int
	Floor         int64
	Next          int64
	XPProgress    int64
	XPToNextLevel int64
}

func (c Curve) At(xp int64) Level {
	if xp < 0 {
		xp = 0
	}

	n := len(c.thresholds)
	last := c.thresholds[n-1]

	if xp >= last {
		step := last - c.thresholds[n-2]
		extra := (xp - last) / step
		floor := last + extra*step
		return Level{
			Level:         n + int(extra),
			Floor:         floor,
			Next:          floor + step,
			XPProgress:    xp - floor,
			XPToNextLevel: floor + step - xp,
		}
	}

	i := 0
	for i+1 < n && xp >= c.thresholds[i+1] {
		i++
	}
	return Level{
		Level:         i + 1,
		Floor:         c.thresholds[i],
		Next:          c.thresholds[i+1],
		XPProgress:    xp - c.thresholds[i],
		XPToNextLevel: c.thresholds[i+1] - xp,
	}
}

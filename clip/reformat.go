package clip

import (
	"fmt"
	"math"

	"github.com/animblob/animblob/errs"
	"github.com/animblob/animblob/format"
)

// Reformat converts every rotation sample to the selected on-disk variant
// (spec.md §4.2). Full quaternion formats are left untouched; drop-W
// formats flip the sign of any sample whose w < 0 so the decoder's
// reconstruction w = sqrt(max(0, 1-x²-y²-z²)) recovers the correct value.
// Must run while the context is in StageRaw, before range extraction.
func Reformat(c *Context) error {
	if err := c.requireStage(StageRaw); err != nil {
		return err
	}

	dropsW := c.Settings.RotationFormat.DropsW()
	tol := c.Settings.RotationTolerance

	for bi, bs := range c.Bones {
		for si, comp := range bs.Rotation.Samples {
			length := float32(math.Sqrt(float64(comp[0]*comp[0] + comp[1]*comp[1] + comp[2]*comp[2] + comp[3]*comp[3])))
			if absf32(length-1) > tol {
				return fmt.Errorf("%w: bone %d sample %d length %f", errs.ErrNonUnitQuaternion, bi, si, length)
			}

			if dropsW && comp[3] < 0 {
				comp[0], comp[1], comp[2], comp[3] = -comp[0], -comp[1], -comp[2], -comp[3]
			}
		}
	}

	return nil
}

func absf32(f float32) float32 {
	if f < 0 {
		return -f
	}

	return f
}

// rotationFormatComponents returns how many of the 4 internal rotation
// components are actually carried on disk for the given format.
func rotationFormatComponents(f format.RotationFormat) int {
	if f.DropsW() {
		return 3
	}

	return 4
}

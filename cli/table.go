package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v2"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/interp"
)

// TableAction evaluates a correction table at the point given on the command line.
func TableAction(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	t, err := interp.LoadTable(c.Args().First())
	if err != nil {
		return err
	}
	args := c.Args().Tail()
	if len(args) != t.Dims() {
		return errors.Errorf("table has %d dimensions, got %d coordinates", t.Dims(), len(args))
	}
	point := make([]float64, len(args))
	for i, arg := range args {
		if point[i], err = cast.ToFloat64E(arg); err != nil {
			return errors.Wrapf(err, "coordinate %d", i+1)
		}
	}
	fmt.Fprintln(c.App.Writer, t.Evaluate(point...))
	return nil
}

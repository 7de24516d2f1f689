package cli

import (
	"strings"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

// ParamsAction lists every tunable parameter of the vehicle, after applying any --set overrides.
func ParamsAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closer := newLogger(c, cfg)
	defer func() {
		err = multierr.Combine(err, closer.Close())
	}()

	v, err := newVehicle(cfg, logger, r3.Vector{Z: 1}, nil)
	if err != nil {
		return err
	}
	for _, assignment := range c.StringSlice(paramsFlagSet) {
		name, value, ok := strings.Cut(assignment, "=")
		if !ok {
			return errors.Errorf("expected GROUP.NAME=VALUE, got %q", assignment)
		}
		if err := v.params.Set(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return err
		}
	}

	values := v.params.Snapshot()
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Parameter", "Value"})
	for _, name := range v.params.Names() {
		t.AppendRow(table.Row{name, values[name]})
	}
	t.Render()
	return nil
}

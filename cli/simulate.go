package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/control"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/ftdc"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/sim"
	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// geometricFlipLength is how long, in timescale units, the closed loop flip reference is tracked
// before returning to position hold.
const geometricFlipLength = 0.9

// channel is one recorded series summarized after a simulation.
type channel struct {
	name   string
	sample func(q sim.Stats, tel control.Telemetry) float64
	values stats.Float64Data
}

func summaryChannels() []*channel {
	return []*channel{
		{name: "altitude (m)", sample: func(q sim.Stats, _ control.Telemetry) float64 { return q.Position.Z }},
		{name: "drift (m)", sample: func(q sim.Stats, _ control.Telemetry) float64 {
			return r3.Vector{X: q.Position.X, Y: q.Position.Y}.Norm()
		}},
		{name: "roll (deg)", sample: func(q sim.Stats, _ control.Telemetry) float64 { return utils.RadToDeg(q.Euler.Roll) }},
		{name: "pitch (deg)", sample: func(q sim.Stats, _ control.Telemetry) float64 { return utils.RadToDeg(q.Euler.Pitch) }},
		{name: "attitude error", sample: func(_ sim.Stats, tel control.Telemetry) float64 { return tel.Psi }},
		{name: "thrust (N)", sample: func(q sim.Stats, _ control.Telemetry) float64 { return q.Thrust }},
	}
}

// SimulateAction flies the configured vehicle in simulation, records telemetry and prints a
// summary.
func SimulateAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closer := newLogger(c, cfg)
	defer func() {
		err = multierr.Combine(err, closer.Close())
	}()

	duration := c.Float64(simulateFlagDuration)
	if duration <= 0 {
		return errors.Errorf("duration must be positive, got %v", duration)
	}
	flipKind := c.String(simulateFlagFlipKind)
	if flipKind != flipKindGeometric && flipKind != flipKindFeedForward {
		return errors.Errorf("unknown flip kind %q, expected %s or %s", flipKind, flipKindGeometric, flipKindFeedForward)
	}

	channels := summaryChannels()
	epoch := time.Unix(0, 0)
	var (
		recorder  *ftdc.Recorder
		recordErr error
		v         *vehicle
	)
	onTick := func(tick uint32, _ control.ControlCommand) {
		if recorder != nil && recordErr == nil {
			recordErr = recorder.Record(epoch.Add(time.Duration(tick) * time.Millisecond))
		}
		q, err := utils.AssertType[sim.Stats](v.quad.Stats())
		if err != nil {
			recordErr = multierr.Append(recordErr, err)
			return
		}
		tel := v.geom.Telemetry()
		for _, ch := range channels {
			ch.values = append(ch.values, ch.sample(q, tel))
		}
	}
	v, err = newVehicle(cfg, logger, r3.Vector{Z: c.Float64(simulateFlagAltitude)}, onTick)
	if err != nil {
		return err
	}

	output := c.Path(simulateFlagOutput)
	if output == "" {
		output = cfg.Resolve(cfg.Telemetry.Path)
	}
	if output != "" {
		recorder = ftdc.NewFileRecorder(output, cfg.Telemetry.MaxSizeMB, logger.Sublogger("ftdc"))
		defer func() {
			err = multierr.Combine(err, recorder.Close())
		}()
		for name, statser := range map[string]ftdc.Statser{"geom": v.geom, "motors": v.dist, "sim": v.quad} {
			if err := recorder.Add(name, statser); err != nil {
				return err
			}
		}
	}

	if err := fly(c.Context, v, duration, c.Float64(simulateFlagFlipAt), flipKind, cfg.Gains.Timescale); err != nil {
		return err
	}
	if recordErr != nil {
		return errors.Wrap(recordErr, "recording telemetry")
	}

	if reason := v.StopReason(); reason != "" {
		color.New(color.FgRed, color.Bold).Fprintf(c.App.Writer, "emergency stop: %s\n", reason)
	}
	if recorder != nil {
		fmt.Fprintf(c.App.Writer, "recorded %d samples to %s\n", recorder.Samples(), output)
	}
	if c.Bool(simulateFlagSummarize) {
		return printSummary(c, channels)
	}
	return nil
}

// fly steps the loop and the simulator in lock step for `duration` simulated seconds.
func fly(ctx context.Context, v *vehicle, duration, flipAt float64, flipKind string, timescale float64) error {
	steps := int(duration * utils.MainLoopRate)
	flipped := false
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := float64(i) / utils.MainLoopRate
		if flipAt >= 0 && !flipped && now >= flipAt {
			flipped = true
			if flipKind == flipKindFeedForward {
				v.flip.StartFlip()
			} else {
				v.geom.SetMode(control.ModeFlip)
			}
		}
		if v.geom.Mode() == control.ModeFlip && v.geom.Time() >= geometricFlipLength*timescale {
			v.geom.SetMode(control.ModePositionHold)
		}
		if err := v.loop.Tick(ctx); err != nil {
			return err
		}
		v.quad.Step()
	}
	return nil
}

func printSummary(c *cli.Context, channels []*channel) error {
	rows := make([]table.Row, 0, len(channels))
	for _, ch := range channels {
		if len(ch.values) == 0 {
			continue
		}
		row, err := summarize(ch)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Channel", "Min", "Max", "Mean", "Std dev"})
	t.AppendRows(rows)
	t.Render()
	return nil
}

func summarize(ch *channel) (table.Row, error) {
	var errs error
	get := func(f func(stats.Float64Data) (float64, error)) float64 {
		v, err := f(ch.values)
		errs = multierr.Append(errs, err)
		return v
	}
	values := []float64{
		get(stats.Min),
		get(stats.Max),
		get(stats.Mean),
		get(stats.StandardDeviation),
	}
	if errs != nil {
		return nil, errors.Wrapf(errs, "summarizing %s", ch.name)
	}
	return append(table.Row{ch.name}, lo.Map(values, func(v float64, _ int) interface{} {
		return fmt.Sprintf("%.4f", v)
	})...), nil
}

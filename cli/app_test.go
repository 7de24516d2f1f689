package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/ftdc"
)

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"geomctl"}, args...))
	return out.String(), errOut.String(), err
}

func TestParams(t *testing.T) {
	out, _, err := runApp(t, "params")
	test.That(t, err, test.ShouldBeNil)
	for _, name := range []string{"ctrlGeom.kr_xy", "ctrlFlip.T1", "powerDist.isFF"} {
		test.That(t, out, test.ShouldContainSubstring, name)
	}

	out, _, err = runApp(t, "params", "--set", "ctrlGeom.timescale=2.5", "--set", "powerDist.m1 = 100")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "2.5")
	test.That(t, out, test.ShouldContainSubstring, "100")

	_, _, err = runApp(t, "params", "--set", "ctrlGeom.timescale")
	test.That(t, err, test.ShouldBeError, `expected GROUP.NAME=VALUE, got "ctrlGeom.timescale"`)

	_, _, err = runApp(t, "params", "--set", "ctrlGeom.nope=1")
	test.That(t, err, test.ShouldBeError, `unknown parameter "ctrlGeom.nope"`)

	_, _, err = runApp(t, "params", "--set", "ctrlGeom.mass=-1")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTable(t *testing.T) {
	path := filepath.Join("..", "interp", "testdata", "roll_correction.yaml")

	out, _, err := runApp(t, "table", path, "-0.05", "-1", "-0.2", "-0.2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "-0.02\n")

	_, _, err = runApp(t, "table", path, "0", "0")
	test.That(t, err, test.ShouldBeError, "table has 4 dimensions, got 2 coordinates")

	_, _, err = runApp(t, "table", path, "0", "zero", "0", "0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "coordinate 2")

	_, _, err = runApp(t, "table", path)
	test.That(t, err, test.ShouldBeError, "table needs at least 2 arguments, got 1")
}

func TestPlot(t *testing.T) {
	output := filepath.Join(t.TempDir(), "plots", "flip.png")
	out, _, err := runApp(t, "plot", "--output", output, "--timescale", "1.5")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, output)

	info, err := os.Stat(output)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	_, _, err = runApp(t, "plot", "--output", output, "--timescale", "0")
	test.That(t, err, test.ShouldBeError, "timescale must be positive, got 0")
}

func TestSimulateHover(t *testing.T) {
	output := filepath.Join(t.TempDir(), "hover.ftdc")
	out, _, err := runApp(t, "simulate", "--duration", "0.5", "--output", output)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "recorded 250 samples")
	test.That(t, out, test.ShouldContainSubstring, "altitude (m)")
	test.That(t, out, test.ShouldNotContainSubstring, "emergency stop")

	f, err := os.Open(output)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	data, err := ftdc.Parse(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldHaveLength, 250)

	altitude, ok := data[len(data)-1].Value("sim.Position.Z")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, altitude, test.ShouldAlmostEqual, 1, 0.1)
}

func TestSimulateFlips(t *testing.T) {
	for _, kind := range []string{flipKindGeometric, flipKindFeedForward} {
		t.Run(kind, func(t *testing.T) {
			_, _, err := runApp(t, "simulate", "--duration", "1.5", "--flip-at", "0.5", "--flip-kind", kind, "--summarize=false")
			test.That(t, err, test.ShouldBeNil)
		})
	}
}

func TestSimulateErrors(t *testing.T) {
	_, _, err := runApp(t, "simulate", "--duration", "0")
	test.That(t, err, test.ShouldBeError, "duration must be positive, got 0")

	_, _, err = runApp(t, "simulate", "--flip-kind", "barrel")
	test.That(t, err, test.ShouldBeError, `unknown flip kind "barrel", expected geometric or feedforward`)

	_, _, err = runApp(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "simulate")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot read config file")
}

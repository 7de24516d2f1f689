// Package main is the geomctl command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SPDX-License-Identifier: EPL-2.0

// Command audmix renders a mix session described in YAML to an audio file.
//
//	audmix -config mix.yaml
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/fx"

	"github.com/ik5/audmix/internal/config"
	"github.com/ik5/audmix/internal/logging"
	"github.com/ik5/audmix/sink"
)

func main() {
	path := flag.String("config", "mix.yaml", "mix session configuration")
	list := flag.Bool("formats", false, "list supported input and output formats and exit")
	flag.Parse()

	if *list {
		fmt.Println("input: ", strings.Join(newRegistry().Formats(), " "))
		fmt.Println("output:", strings.Join(sink.Extensions(), " "))
		return
	}

	app := fx.New(
		fx.Supply(config.Path(*path)),
		config.Module,
		logging.Module,
		fx.WithLogger(logging.NewFxLogger),
		Module,
	)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "audmix:", err)
		os.Exit(1)
	}
	app.Run()
}

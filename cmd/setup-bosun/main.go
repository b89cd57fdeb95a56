package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/naveego/setup-bosun/internal/cli"
	"github.com/naveego/setup-bosun/internal/env"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCmd(version, cli.DefaultServices)
	if err := root.ExecuteContext(ctx); err != nil {
		logrus.SetOutput(os.Stderr)
		logrus.Error(err)
		env.NewExporter(os.Stdout).Fail(err.Error())
		stop()
		os.Exit(1)
	}
}

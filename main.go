package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/go-lpc/cmd"
	"github.com/tphakala/go-lpc/internal/buildinfo"
	"github.com/tphakala/go-lpc/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := cmd.RootCommand(conf.NewContext(buildinfo.NewContext(version, buildDate)))
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

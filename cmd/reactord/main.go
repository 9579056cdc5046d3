// Command reactord runs the reactor core as a standalone process, using
// the reference demo's defaults (port 10000, mode 5, 60s idle timeout,
// linger off, 12 workers) unless overridden on the command line.
package main

import (
	"fmt"
	"os"

	"github.com/yourusername/reactord/internal/config"
	"github.com/yourusername/reactord/internal/logging"
	"github.com/yourusername/reactord/pkg/reactord"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.New(logging.DefaultConfig())

	srv, err := reactord.New(cfg, log)
	if err != nil {
		log.Errorf("startup failed: %v", err)
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		log.Errorf("server exited: %v", err)
		os.Exit(1)
	}
}

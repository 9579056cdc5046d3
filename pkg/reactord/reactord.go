// Package reactord is the public entry point for embedding the reactor
// core in another program. cmd/reactord is a thin wrapper over this
// package; internal/reactor holds the actual event loop.
package reactord

import (
	"github.com/yourusername/reactord/internal/config"
	"github.com/yourusername/reactord/internal/logging"
	"github.com/yourusername/reactord/internal/reactor"
)

// Config re-exports internal/config.Config so callers outside this
// module never need to import an internal package.
type Config = config.Config

// Logger re-exports internal/logging.Logger.
type Logger = logging.Logger

// DefaultConfig returns the reference demo configuration (port 10000,
// mode 5 clamped to 3, 60s idle timeout, linger off, 12 workers).
func DefaultConfig() *Config { return config.Default() }

// NewLogger builds a Logger from cfg; a nil cfg logs Info+ to stderr.
func NewLogger(cfg *logging.Config) *Logger { return logging.New(cfg) }

// Server is the running reactor core: one listen socket, one event loop,
// a fixed worker pool, and the supporting buffer/timer/parser/responder
// subsystems described in DESIGN.md.
type Server struct {
	r *reactor.Reactor
}

// New constructs a Server bound to cfg. It does not bind the listen
// socket until Run is called.
func New(cfg *Config, log *Logger) (*Server, error) {
	r, err := reactor.New(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Server{r: r}, nil
}

// Run binds the listen socket and runs the event loop until Close is
// called or a fatal startup error occurs. It blocks until the loop
// exits.
func (s *Server) Run() error { return s.r.Run() }

// Close requests the event loop stop after its current wait returns.
func (s *Server) Close() { s.r.Close() }

// Ready is closed once Run has bound the listen socket and entered the
// event loop.
func (s *Server) Ready() <-chan struct{} { return s.r.Ready() }

package admin

import (
	"github.com/joeycumines/logiface"
	"github.com/prometheus/client_golang/prometheus"
)

// config holds the resolved construction parameters for an Admin,
// populated by applying Option values over a set of defaults.
//
// Grounded on joeycumines-go-utilpkg/eventloop/options.go's
// loopOptions/LoopOption/resolveLoopOptions idiom: an unexported config
// struct, a functional-option interface wrapping a closure, and a
// resolver that starts from defaults and applies options in order.
type config struct {
	addr            string
	backlog         int
	nevent          int
	timeoutMillis   int
	useTLS          bool
	acceptorFactory AcceptorFactory
	version         string
	registerer      prometheus.Registerer
	logger          *logiface.Logger[*event]
	logDrain        LogDrain
	signalIn        Receiver
	signalOut       Fanout
}

// Option configures an Admin at construction time.
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(c *config) error { return f(c) }

// WithAddr sets the bind address (spec.md §6's admin.socket_addr).
func WithAddr(addr string) Option {
	return optionFunc(func(c *config) error {
		c.addr = addr
		return nil
	})
}

// WithBacklog sets the kernel listen backlog.
func WithBacklog(n int) Option {
	return optionFunc(func(c *config) error {
		c.backlog = n
		return nil
	})
}

// WithNevent sets the initial capacity of the event slice Run collects
// each poll's events into (spec.md §6's admin.nevent). It does not bound
// the batch: each Poller.Wait returns at most 256 events, the size of the
// poller's own kernel event buffer, whatever n is.
func WithNevent(n int) Option {
	return optionFunc(func(c *config) error {
		c.nevent = n
		return nil
	})
}

// WithTimeout sets the poll timeout in milliseconds (spec.md §6's
// admin.timeout; §4.1 suggests 100ms as typical).
func WithTimeout(millis int) Option {
	return optionFunc(func(c *config) error {
		c.timeoutMillis = millis
		return nil
	})
}

// WithTLS marks the listener as requiring TLS and supplies the acceptor
// factory that wraps each accepted fd (spec.md §6's admin.use_tls and
// tls.*; TLS primitive construction itself is out of scope — see
// transport.go's AcceptorFactory doc).
func WithTLS(factory AcceptorFactory) Option {
	return optionFunc(func(c *config) error {
		c.useTLS = true
		c.acceptorFactory = factory
		return nil
	})
}

// WithVersion sets the string returned by the "version" admin command.
func WithVersion(version string) Option {
	return optionFunc(func(c *config) error {
		c.version = version
		return nil
	})
}

// WithRegisterer overrides the Prometheus registerer metrics are
// registered against (default: a fresh prometheus.NewRegistry(), not the
// process-wide default, so multiple Admin instances never collide).
func WithRegisterer(reg prometheus.Registerer) Option {
	return optionFunc(func(c *config) error {
		c.registerer = reg
		return nil
	})
}

// WithLogger sets the structured logger and its LogDrain (see
// logging.go's NewLogger). Defaults to a logger that discards output.
func WithLogger(logger *logiface.Logger[*event], drain LogDrain) Option {
	return optionFunc(func(c *config) error {
		c.logger = logger
		c.logDrain = drain
		return nil
	})
}

// WithSignals wires the inbound signal Receiver and outbound Fanout
// (spec.md §4.5). Defaults to NewNoopReceiver()/NewNoopFanout() if left
// unset, suitable for a single-process deployment with no siblings.
func WithSignals(in Receiver, out Fanout) Option {
	return optionFunc(func(c *config) error {
		c.signalIn = in
		c.signalOut = out
		return nil
	})
}

// resolveConfig applies opts over a set of defaults, mirroring
// eventloop/options.go's resolveLoopOptions.
func resolveConfig(opts []Option) (*config, error) {
	logger, drain := NewLogger(discardWriter{}, logiface.LevelInformational)
	c := &config{
		addr:          ":11299",
		backlog:       128,
		nevent:        1024,
		timeoutMillis: 100,
		version:       "0.0.0",
		logger:        logger,
		logDrain:      drain,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(c); err != nil {
			return nil, err
		}
	}
	if c.useTLS && c.acceptorFactory == nil {
		return nil, ErrNoTLSAcceptor
	}
	if c.registerer == nil {
		c.registerer = prometheus.NewRegistry()
	}
	if c.signalIn == nil {
		c.signalIn = NewNoopReceiver()
	}
	if c.signalOut == nil {
		c.signalOut = NewNoopFanout()
	}
	return c, nil
}

// discardWriter is an io.Writer that discards everything, used as the
// default logging destination when no handler is configured.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

package core

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	pathpkg "path"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/encodeous/metric"
	"github.com/encodeous/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/sync/errgroup"

	"github.com/encodeous/icntm/bus"
	"github.com/encodeous/icntm/perf"
	"github.com/encodeous/icntm/state"
)

// Options configures one TM or RM process.
type Options struct {
	Process  state.Process
	Topology *state.Topology
	TM       state.TMConfig
	RM       state.RMConfig
	LogLevel slog.Level
	// Bus is shared with other processes when set, otherwise an in-memory bus is created.
	Bus bus.Bus
	// Registry collects the telemetry metrics, a fresh registry is used when nil.
	Registry *prometheus.Registry
	// Ready is called from Start once every module is initialised.
	Ready func(s *state.State)
	// Context stops the process when cancelled, defaults to context.Background.
	Context context.Context
}

func newLogger(level slog.Level, prefix, logPath string) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: prefix,
			TimeFormat:   "15:04:05.000",
		}))

	if logPath != "" {
		err := os.MkdirAll(pathpkg.Dir(logPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start runs a TM or RM process until it is cancelled or receives SIGINT/SIGTERM.
func Start(opts Options) error {
	if opts.Topology == nil {
		return errors.New("no topology loaded")
	}
	t := opts.Topology
	self := t.Label(t.TM)
	logPath, debugAddr := opts.TM.LogPath, opts.TM.DebugAddr
	if opts.Process == state.ProcessRM {
		self = t.Label(t.RM)
		logPath, debugAddr = opts.RM.LogPath, opts.RM.DebugAddr
	}
	logger, err := newLogger(opts.LogLevel, string(opts.Process), logPath)
	if err != nil {
		return err
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(context.Canceled)
	dispatch := make(chan func(env *state.State) error, 128)

	s := state.State{
		Modules:  make(map[string]state.NyModule),
		Topology: t,
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			Process:         opts.Process,
			Self:            self,
			TMCfg:           opts.TM,
			RMCfg:           opts.RM,
			Log:             logger,
		},
	}

	s.Log.Info("init modules")
	err = initModules(&s, opts)
	if err != nil {
		Stop(&s)
		return err
	}
	s.Log.Info("init modules complete")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return Get[*Transport](&s).Run(gctx)
	})
	if debugAddr != "" {
		g.Go(func() error {
			return serveDebug(gctx, &s, debugAddr, opts.Registry)
		})
	}

	s.Log.Info("control plane has been initialized. To gracefully exit, send SIGINT or Ctrl+C.", "process", opts.Process, "self", self)
	if opts.Ready != nil {
		opts.Ready(&s)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
			return
		}
	}()

	err = MainLoop(&s, dispatch)
	if gerr := g.Wait(); gerr != nil && err == nil {
		err = gerr
	}
	return err
}

func initModules(s *state.State, opts Options) error {
	var modules []state.NyModule
	modules = append(modules, &Transport{Bus: opts.Bus})
	switch s.Process {
	case state.ProcessTM:
		modules = append(modules, &TopologyManager{Registry: opts.Registry})
	case state.ProcessRM:
		modules = append(modules, &ResilienceManager{})
	default:
		return fmt.Errorf("unknown process %q", s.Process)
	}

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.DispatchWarnAfter {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	if s.DispatchChannel != nil {
		close(s.DispatchChannel)
		s.DispatchChannel = nil
	}
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}

func serveDebug(ctx context.Context, s *state.State, addr string, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/topology", func(w http.ResponseWriter, r *http.Request) {
		serveTopology(s, w, r)
	})
	if s.Process == state.ProcessTM {
		mux.HandleFunc("/debug/changes", func(w http.ResponseWriter, r *http.Request) {
			serveChanges(s, w, r)
		})
	}

	srv := &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.Log.Info("serving debug endpoints", "addr", ln.Addr().String())
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

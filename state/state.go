package state

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type NyModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on a single Goroutine
type State struct {
	*Env
	// Topology is the arena every routing decision reads. Only the main loop touches it.
	Topology *Topology
	Modules  map[string]NyModule
}

type Process string

const (
	ProcessTM Process = "tm"
	ProcessRM Process = "rm"
)

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	Process         Process
	// Self is the label this process runs as.
	Self     Label
	TMCfg    TMConfig
	RMCfg    RMConfig
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger
	Started  atomic.Bool
	Stopping atomic.Bool
}

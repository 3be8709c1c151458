package runner

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Runner interface {
	Run(ctx context.Context) error
	Stop() error
	State() State
}

// Hooks run around the serving phase. A failing OnStart aborts Run after
// draining whatever it already started.
type Hooks struct {
	OnStart func(ctx context.Context) error
	OnStop  func()
}

// Drainer finishes in-flight work before the process exits.
type Drainer interface {
	Drain(ctx context.Context) error
}

// DrainerFunc adapts a function to Drainer.
type DrainerFunc func(ctx context.Context) error

func (f DrainerFunc) Drain(ctx context.Context) error { return f(ctx) }

const Version = "dev"

// BannerOutput receives the startup banner; tests silence it.
var BannerOutput io.Writer = os.Stdout

func PrintBanner() {
	tpl := "{{ .Title \"SAMPARK\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(BannerOutput, true, false, bytes.NewBufferString(tpl))
}

package reason

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type executorKind int

const (
	executorProcess executorKind = iota
	executorContainer
	executorRemote
)

// executor is the concrete place the model server runs: an owned local
// process, an owned container, or a remote endpoint. It is shared read-only
// across clones of a Reason; the last release terminates the owned resource
// exactly once.
type executor struct {
	kind executorKind

	// process variant
	cmd    *exec.Cmd
	exited chan struct{}

	// container variant
	id      string
	runtime string

	model string // model path for local variants
	url   string // base URL for the remote variant

	port int

	refs     atomic.Int32
	shutdown sync.Once
	logger   zerolog.Logger
}

// newProcessExecutor takes ownership of a started llama-server process. The
// exit watcher lets the boot health poll observe an early death.
func newProcessExecutor(cmd *exec.Cmd, model string, port int, logger zerolog.Logger) *executor {
	e := &executor{
		kind:   executorProcess,
		cmd:    cmd,
		exited: make(chan struct{}),
		model:  model,
		port:   port,
		logger: logger.With().Str("component", "executor").Logger(),
	}
	e.refs.Store(1)

	go func() {
		err := cmd.Wait()
		e.logger.Debug().Err(err).Msg("llama-server process exited")
		close(e.exited)
	}()

	return e
}

func newContainerExecutor(id, runtime, model string, port int, logger zerolog.Logger) *executor {
	e := &executor{
		kind:    executorContainer,
		id:      id,
		runtime: runtime,
		model:   model,
		port:    port,
		logger:  logger.With().Str("component", "executor").Logger(),
	}
	e.refs.Store(1)
	return e
}

func newRemoteExecutor(url string, logger zerolog.Logger) *executor {
	e := &executor{
		kind:   executorRemote,
		url:    strings.TrimRight(url, "/"),
		logger: logger.With().Str("component", "executor").Logger(),
	}
	e.refs.Store(1)
	return e
}

// baseURL is the executor's HTTP base address.
func (e *executor) baseURL() string {
	if e.kind == executorRemote {
		return e.url
	}
	return fmt.Sprintf("http://localhost:%d", e.port)
}

func (e *executor) retain() {
	e.refs.Add(1)
}

// release drops one reference. The last reference terminates the owned
// process or container; remote executors own nothing.
func (e *executor) release() {
	if e.refs.Add(-1) > 0 {
		return
	}

	e.shutdown.Do(func() {
		switch e.kind {
		case executorProcess:
			if e.cmd.Process != nil {
				e.logger.Debug().Int("pid", e.cmd.Process.Pid).Msg("Killing llama-server process")
				_ = e.cmd.Process.Kill()
			}

		case executorContainer:
			// Best-effort, fire-and-forget. A container that refuses to
			// stop is not worth escalating during teardown.
			e.logger.Debug().Str("container", e.id).Msg("Stopping container")
			stop := exec.Command(e.runtime, "stop", e.id)
			if err := stop.Start(); err != nil {
				e.logger.Warn().Err(err).Str("container", e.id).Msg("Failed to issue container stop")
				return
			}
			go func() {
				_ = stop.Wait()
			}()
		}
	})
}

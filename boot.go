package reason

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/icebreaker-llm/reason/config"
)

// BootOperation is an in-flight executor boot. Progress and executor log
// lines are delivered on Events; Wait resolves to the ready client handle.
type BootOperation struct {
	op *operation[BootEvent, *Reason]
}

// Events returns the boot notification stream. The channel is closed when
// the boot resolves.
func (b *BootOperation) Events() <-chan BootEvent {
	return b.op.events
}

// Wait blocks until the boot resolves, discarding any undrained
// notifications.
func (b *BootOperation) Wait(ctx context.Context) (*Reason, error) {
	return b.op.wait(ctx)
}

// Boot detects and launches a local executor for the model at modelPath and
// resolves once it reports healthy. A local llama-server binary is preferred;
// a container runtime is the fallback. Cancelling ctx releases any process
// or container acquired so far.
func Boot(ctx context.Context, modelPath string, backend Backend) *BootOperation {
	return BootWith(ctx, modelPath, backend, config.Default(), zerolog.Nop())
}

// BootWith is Boot with an explicit executor configuration and logger.
func BootWith(
	ctx context.Context,
	modelPath string,
	backend Backend,
	cfg config.Executor,
	logger zerolog.Logger,
) *BootOperation {
	op := newOperation[BootEvent, *Reason]()

	go func() {
		op.resolve(boot(ctx, modelPath, backend, cfg, logger, op))
	}()

	return &BootOperation{op: op}
}

func boot(
	ctx context.Context,
	modelPath string,
	backend Backend,
	cfg config.Executor,
	logger zerolog.Logger,
	op *operation[BootEvent, *Reason],
) (*Reason, error) {
	logger = logger.With().Str("component", "boot").Logger()
	name := modelName(modelPath)

	op.send(ctx, progressed("Detecting executor...", 0))

	var (
		server  *executor
		stdout  io.Reader
		stderr  io.Reader
		logsCmd *exec.Cmd
	)

	if version, err := exec.CommandContext(ctx, cfg.Binary, "--version").Output(); err == nil {
		logger.Info().Str("binary", cfg.Binary).Msg("Local inference binary found")
		op.send(ctx, logged(fmt.Sprintf("Local %s binary found!", cfg.Binary)))

		scanner := bufio.NewScanner(bytes.NewReader(version))
		for scanner.Scan() {
			op.send(ctx, logged(scanner.Text()))
		}

		op.send(ctx, progressed("Launching assistant...", 99))
		op.send(ctx, logged(fmt.Sprintf("Launching %s with local %s...", name, cfg.Binary)))

		server, stdout, stderr, err = launchProcess(modelPath, backend, cfg, logger)
		if err != nil {
			return nil, err
		}
	} else if _, err := exec.CommandContext(ctx, cfg.Runtime, "version").Output(); err == nil {
		logger.Info().Str("runtime", cfg.Runtime).Msg("Container runtime found")
		op.send(ctx, logged(fmt.Sprintf("Launching %s with %s...", name, cfg.Runtime)))
		op.send(ctx, progressed("Preparing container...", 0))

		id, err := createContainer(ctx, modelPath, backend, cfg, logger, op)
		if err != nil {
			return nil, err
		}

		op.send(ctx, progressed("Launching assistant...", 99))

		if _, err := exec.CommandContext(ctx, cfg.Runtime, "start", id).Output(); err != nil {
			return nil, newIOError("failed to start container", err)
		}

		logsCmd = exec.Command(cfg.Runtime, "logs", "-f", id)
		logsOut, err := logsCmd.StdoutPipe()
		if err != nil {
			return nil, newIOError("failed to pipe container logs", err)
		}
		logsErr, err := logsCmd.StderrPipe()
		if err != nil {
			return nil, newIOError("failed to pipe container logs", err)
		}
		if err := logsCmd.Start(); err != nil {
			return nil, newIOError("failed to follow container logs", err)
		}

		server = newContainerExecutor(id, cfg.Runtime, modelPath, cfg.Port, logger)
		stdout, stderr = logsOut, logsErr
	} else {
		return nil, newNoExecutorError()
	}

	ready := false
	defer func() {
		if !ready {
			server.release()
		}
	}()

	// Multiplex the executor's output into Logged notifications until
	// readiness. Only per-stream order is preserved.
	logCtx, cancelLogs := context.WithCancel(ctx)
	defer cancelLogs()

	go forwardLines(logCtx, stdout, op)
	go forwardLines(logCtx, stderr, op)

	if logsCmd != nil {
		go func() {
			<-logCtx.Done()
			if logsCmd.Process != nil {
				_ = logsCmd.Process.Kill()
			}
			_ = logsCmd.Wait()
		}()
	}

	if err := pollHealth(ctx, server, cfg.HealthInterval()); err != nil {
		return nil, err
	}

	cancelLogs()
	logger.Info().Str("model", name).Str("address", server.baseURL()).Msg("Executor is ready")

	ready = true
	return &Reason{name: name, server: server, logger: logger}, nil
}

// launchProcess spawns the local inference binary with the model, the fixed
// loopback endpoint, and accelerator offloading for GPU backends.
func launchProcess(
	modelPath string,
	backend Backend,
	cfg config.Executor,
	logger zerolog.Logger,
) (*executor, io.Reader, io.Reader, error) {
	args := []string{
		"--jinja",
		"--model", modelPath,
		"--port", strconv.Itoa(cfg.Port),
		"--host", "127.0.0.1",
	}
	if backend.UsesGPU() {
		args = append(args, "--gpu-layers", strconv.Itoa(cfg.GPULayers))
	}

	cmd := exec.Command(cfg.Binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, newIOError("failed to pipe executor output", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, newIOError("failed to pipe executor output", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, newIOError("failed to spawn "+cfg.Binary, err)
	}

	return newProcessExecutor(cmd, modelPath, cfg.Port, logger), stdout, stderr, nil
}

// createContainer runs the runtime's create command and returns the new
// container id, forwarding the runtime's progress output as log events.
func createContainer(
	ctx context.Context,
	modelPath string,
	backend Backend,
	cfg config.Executor,
	logger zerolog.Logger,
	op *operation[BootEvent, *Reason],
) (string, error) {
	volume := filepath.Dir(modelPath)
	filename := filepath.Base(modelPath)
	publish := fmt.Sprintf("%d:80", cfg.Port)
	layers := strconv.Itoa(cfg.ContainerGPULayers)

	var args []string
	switch backend {
	case BackendCUDA:
		args = []string{
			"create", "--rm", "--gpus", "all",
			"-p", publish, "-v", volume + ":/models",
			cfg.Images.CUDA,
			"--jinja", "--model", "/models/" + filename,
			"--port", "80", "--host", "0.0.0.0",
			"--gpu-layers", layers,
		}
	case BackendROCm:
		args = []string{
			"create", "--rm",
			"-p", publish, "-v", volume + ":/models",
			"--device=/dev/kfd", "--device=/dev/dri",
			"--security-opt", "seccomp=unconfined", "--group-add", "video",
			cfg.Images.ROCm,
			"--model", "/models/" + filename,
			"--port", "80", "--host", "0.0.0.0",
			"--gpu-layers", layers,
		}
	default:
		args = []string{
			"create", "--rm",
			"-p", publish, "-v", volume + ":/models",
			cfg.Images.CPU,
			"--jinja", "--model", "/models/" + filename,
			"--port", "80", "--host", "0.0.0.0",
		}
	}

	logger.Debug().Strs("args", args).Msg("Creating container")

	create := exec.CommandContext(ctx, cfg.Runtime, args...)

	createOut, err := create.StdoutPipe()
	if err != nil {
		return "", newIOError("failed to pipe container creation output", err)
	}
	createErr, err := create.StderrPipe()
	if err != nil {
		return "", newIOError("failed to pipe container creation output", err)
	}

	if err := create.Start(); err != nil {
		return "", newIOError("failed to run "+cfg.Runtime, err)
	}

	// Image pull progress arrives on stderr while create runs. Both pipes
	// must be read to EOF before Wait, which closes them.
	pulls := &sync.WaitGroup{}
	pulls.Add(1)
	go func() {
		defer pulls.Done()
		forwardLines(ctx, createErr, op)
	}()

	// The runtime prints exactly one line on success: the container id.
	var id string
	scanner := bufio.NewScanner(createOut)
	if scanner.Scan() {
		id = strings.TrimSpace(scanner.Text())
	}
	for scanner.Scan() {
	}

	pulls.Wait()

	if err := create.Wait(); err != nil {
		return "", newDockerError("failed to create container")
	}
	if id == "" {
		return "", newDockerError("no container id returned by " + cfg.Runtime)
	}

	return id, nil
}

// forwardLines re-emits each line of an executor output stream as a Logged
// notification until the stream ends or ctx is cancelled.
func forwardLines(ctx context.Context, stream io.Reader, op *operation[BootEvent, *Reason]) {
	scanner := bufio.NewScanner(stream)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		op.send(ctx, logged(scanner.Text()))
	}
}

// pollHealth probes the executor's health endpoint at a constant interval
// until the first 2xx response. There is no overall timeout: readiness is
// bounded only by ctx and, for local processes, by the process staying
// alive.
func pollHealth(ctx context.Context, server *executor, interval time.Duration) error {
	address := server.baseURL() + "/health"

	check := func() error {
		if server.kind == executorProcess {
			select {
			case <-server.exited:
				return backoff.Permanent(newExecutorError("llama-server exited unexpectedly"))
			default:
			}
		}

		request, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
		if err != nil {
			return backoff.Permanent(newRequestError("failed to build health request", err))
		}

		response, err := http.DefaultClient.Do(request)
		if err != nil {
			return err
		}
		defer response.Body.Close()

		if response.StatusCode < 200 || response.StatusCode > 299 {
			return fmt.Errorf("health endpoint returned status %d", response.StatusCode)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	return backoff.Retry(check, policy)
}

// modelName derives the assistant name from the model file's base name.
func modelName(modelPath string) string {
	base := filepath.Base(modelPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

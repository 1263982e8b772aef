package reason

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const connectAttemptTimeout = 5 * time.Second

// Reason is a ready client handle: a model name bound to the executor
// serving it. Handles are created only by Boot, BootWith, or Connect, are
// immutable, and are cheap to clone. Clones share the executor, and the
// last handle to close releases it.
type Reason struct {
	name   string
	server *executor
	logger zerolog.Logger
}

// Connect attaches to an already-running inference server at host and waits
// for it to answer its model listing. It retries once per second, with a
// bounded per-attempt timeout, until the endpoint responds; it fails only on
// a malformed URL or a cancelled ctx.
func Connect(ctx context.Context, host, model string) (*Reason, error) {
	return ConnectWith(ctx, host, model, zerolog.Nop())
}

// ConnectWith is Connect with an explicit logger.
func ConnectWith(ctx context.Context, host, model string, logger zerolog.Logger) (*Reason, error) {
	parsed, err := url.Parse(host)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, newRequestError("invalid host URL: "+host, err)
	}

	logger = logger.With().Str("component", "connect").Logger()
	base := strings.TrimRight(parsed.String(), "/")
	client := &http.Client{Timeout: connectAttemptTimeout}

	check := func() error {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/models", nil)
		if err != nil {
			return backoff.Permanent(newRequestError("failed to build readiness request", err))
		}

		response, err := client.Do(request)
		if err != nil {
			logger.Debug().Err(err).Msg("Remote endpoint not ready yet")
			return err
		}
		defer response.Body.Close()

		if response.StatusCode < 200 || response.StatusCode > 299 {
			return newRequestError("readiness probe failed", nil)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(time.Second), ctx)
	if err := backoff.Retry(check, policy); err != nil {
		return nil, err
	}

	logger.Info().Str("host", base).Str("model", model).Msg("Connected to remote executor")

	return &Reason{
		name:   model,
		server: newRemoteExecutor(base, logger),
		logger: logger,
	}, nil
}

// Name returns the model name the handle was created with.
func (r *Reason) Name() string {
	return r.name
}

// Source describes where the model being served comes from: a local model
// file, or a remote endpoint.
type Source struct {
	// Model is the local model path; empty for remote executors.
	Model string

	// URL is the remote base URL; empty for local executors.
	URL string
}

// Source reports where the handle's model is served from.
func (r *Reason) Source() Source {
	if r.server.kind == executorRemote {
		return Source{URL: r.server.url}
	}
	return Source{Model: r.server.model}
}

// Clone returns a new handle sharing this handle's executor.
func (r *Reason) Clone() *Reason {
	r.server.retain()
	return &Reason{name: r.name, server: r.server, logger: r.logger}
}

// Close releases the handle. The last close terminates an owned local
// process or container; closing a remote handle releases nothing.
func (r *Reason) Close() {
	r.server.release()
}

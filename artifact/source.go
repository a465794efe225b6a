package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/wippyai/wasm-devhost/errors"
)

// Source is an addressable binary artifact the loader can fetch. A fetch
// returns the full module bytes; instantiation is the engine's job.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Location() string
}

// FileSource reads the artifact from the local filesystem, typically the
// bundler's build output directory.
type FileSource struct {
	Path string
}

func (s FileSource) Location() string {
	return s.Path
}

func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.PhaseFetch, errors.KindNotFound).
				Module(s.Path).
				Cause(err).
				Detail("artifact not found").
				Build()
		}
		return nil, errors.Fetch("read artifact", err)
	}
	return validate(s.Path, data)
}

// HTTPSource fetches the artifact from a dev-server address.
type HTTPSource struct {
	URL string

	// Client overrides http.DefaultClient, e.g. to bound fetch latency.
	Client *http.Client
}

func (s HTTPSource) Location() string {
	return s.URL
}

func (s HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, errors.Fetch("build request", err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Fetch("fetch artifact", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.New(errors.PhaseFetch, errors.KindNotFound).
			Module(s.URL).
			Detail("artifact not found").
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Fetch(fmt.Sprintf("unexpected status %s", resp.Status), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Fetch("read response body", err)
	}
	return validate(s.URL, data)
}

// validate rejects artifacts the engine cannot instantiate before they
// reach it: truncated files, non-wasm bytes, and Component Model binaries
// (layer 1), which this harness does not run.
func validate(location string, data []byte) ([]byte, error) {
	if len(data) < 8 || string(data[:4]) != "\x00asm" {
		return nil, errors.New(errors.PhaseFetch, errors.KindInvalidData).
			Module(location).
			Detail("not a wasm binary").
			Build()
	}
	if data[6] == 0x01 {
		return nil, errors.Unsupported(errors.PhaseFetch, "component model binaries are not supported")
	}
	return data, nil
}

package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/faults"
)

const (
	NoUpdate    = "No new software available"
	FetchFailed = "Failed to fetch the update"
	Applied     = "Update installed, restarting"
)

// Fetcher downloads a replacement binary and swaps it in when it differs
// from Target.
type Fetcher struct {
	URL     string
	Target  string
	Restart func(reason string)

	client *http.Client
}

func New(url, target string, restart func(reason string)) *Fetcher {
	return &Fetcher{
		URL:     url,
		Target:  target,
		Restart: restart,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Apply returns a status line for the operator. It only returns after a
// successful swap when Restart returns.
func (f *Fetcher) Apply(ctx context.Context) string {
	if f.URL == "" {
		return "Error: no update URL configured"
	}
	log.Info().Str("url", f.URL).Msg("Checking for updates")

	changed, err := f.fetch(ctx)
	switch {
	case errors.Is(err, errBadStatus):
		log.Warn().Err(faults.New(faults.UpdateError, "fetch", err)).Msg("Update fetch failed")
		return FetchFailed
	case err != nil:
		log.Error().Err(faults.New(faults.UpdateError, "apply", err)).Msg("Update failed")
		return "Error: " + err.Error()
	case !changed:
		log.Info().Msg("No updates found")
		return NoUpdate
	}

	log.Info().Str("target", f.Target).Msg("Update installed, restarting")
	if f.Restart != nil {
		f.Restart("update")
	}
	return Applied
}

var errBadStatus = errors.New("unexpected status")

func (f *Fetcher) fetch(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return false, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: %d", errBadStatus, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Target), ".update-*")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return false, fmt.Errorf("download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	remote, err := os.ReadFile(tmp.Name())
	if err != nil {
		return false, err
	}
	local, err := os.ReadFile(f.Target)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if bytes.Equal(remote, local) {
		return false, nil
	}

	if err := os.Chmod(tmp.Name(), 0755); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), f.Target); err != nil {
		return false, fmt.Errorf("install: %w", err)
	}
	return true, nil
}

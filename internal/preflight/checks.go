package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"bisub/internal/config"
	"bisub/internal/deps"
	"bisub/internal/translation"
)

const translationCheckName = "Translation endpoint"

// CheckTranslationCredentials reports whether translation credentials are
// configured. Missing credentials are advisory: jobs still complete with
// source-only subtitles.
func CheckTranslationCredentials(cfg config.Translation) Result {
	if cfg.AppID == "" || cfg.AppKey == "" {
		return Result{Name: "Translation credentials", Advisory: true,
			Detail: "app_id/app_key missing; subtitles degrade to source text"}
	}
	return Result{Name: "Translation credentials", Passed: true, Advisory: true, Detail: "configured"}
}

// CheckTranslation sends a one-line request to the translation endpoint to
// verify reachability and credentials. It uses a 10-second timeout and a
// single attempt.
func CheckTranslation(ctx context.Context, cfg config.Translation) Result {
	if cfg.AppID == "" || cfg.AppKey == "" {
		return Result{Name: translationCheckName, Advisory: true, Detail: "credentials missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	transport := translation.NewBaiduTransport(cfg.Endpoint, cfg.AppID, cfg.AppKey, nil)
	out, err := transport.Translate(checkCtx, translation.Request{Source: "en", Target: "zh", Texts: []string{"hello"}})
	if err != nil {
		return Result{Name: translationCheckName, Advisory: true, Detail: summarizeTranslationError(err)}
	}
	if len(out) != 1 {
		return Result{Name: translationCheckName, Advisory: true, Detail: "unexpected response"}
	}
	return Result{Name: translationCheckName, Passed: true, Advisory: true, Detail: "reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon and the CLI status command use this.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func summarizeTranslationError(err error) string {
	var apiErr *translation.APIError
	if errors.As(err, &apiErr) {
		if hint := apiErr.Hint(); hint != "" {
			return fmt.Sprintf("%s (%s)", apiErr.Error(), hint)
		}
		return apiErr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (endpoint unreachable)"
	}
	return err.Error()
}

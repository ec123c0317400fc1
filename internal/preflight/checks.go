package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"sttbatch/internal/objectstore"
	"sttbatch/internal/services"
	"sttbatch/internal/services/watson"
)

const checkTimeout = 15 * time.Second

// HealthChecker is satisfied by the Watson client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckWatson verifies the endpoint is reachable, the key is accepted and the
// model exists. It makes a single request with no retries.
func CheckWatson(ctx context.Context, client HealthChecker, model string) Result {
	const name = "Watson STT"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	err := client.HealthCheck(checkCtx)
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("model %s available", model)}
	case errors.Is(err, services.ErrConfiguration):
		return Result{Name: name, Detail: err.Error()}
	case errors.Is(err, services.ErrNotFound):
		return Result{Name: name, Detail: fmt.Sprintf("model %s not found", model)}
	}
	switch watson.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	case 0:
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", watson.StatusCode(err))}
	}
}

// CheckBucket verifies the configured bucket can be listed.
func CheckBucket(ctx context.Context, bucket Bucket) Result {
	const name = "S3 bucket"
	if bucket == nil {
		return Result{Name: name, Detail: "object store not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	err := bucket.Ping(checkCtx)
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (list ok)", bucket.Bucket())}
	case errors.Is(err, objectstore.ErrBucketNotFound):
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: bucket does not exist)", bucket.Bucket())}
	case errors.Is(err, objectstore.ErrAccessDenied):
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: access denied)", bucket.Bucket())}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bucket.Bucket(), err)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable,
// and writable when write is set.
func CheckDirectoryAccess(name, path string, write bool) Result {
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
	mode := uint32(unix.R_OK | unix.X_OK)
	label := "read ok"
	if write {
		mode |= unix.W_OK
		label = "read/write ok"
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, label)}
}

// CheckSQLiteTarget verifies the archive's directory is writable. The file
// itself is created on first open.
func CheckSQLiteTarget(path string) Result {
	result := CheckDirectoryAccess("Transcript archive", filepath.Dir(path), true)
	if result.Passed {
		result.Detail = fmt.Sprintf("%s (directory writable)", path)
	}
	return result
}

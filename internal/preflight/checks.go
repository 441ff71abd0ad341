package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"hashreview/internal/config"
	"hashreview/internal/services/hasher"
)

// minFreeBytes is the free-space floor for the data directory. The SQLite
// databases are small; this guards against filling a nearly-full disk with
// WAL segments.
const minFreeBytes = 256 * 1024 * 1024

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

// CheckDiskSpace verifies the filesystem holding path has headroom for the
// queue and index databases.
func CheckDiskSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %d MiB free, need %d MiB)",
			path, free/(1024*1024), minFreeBytes/(1024*1024))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MiB free)", path, free/(1024*1024))}
}

// CheckHasher verifies the hashing service answers requests.
func CheckHasher(ctx context.Context, cfg *config.Config) Result {
	const name = "Hashing service"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := hasher.NewClient(hasher.Config{
		BaseURL:        cfg.Hasher.BaseURL,
		TimeoutSeconds: 5,
	})
	if !client.Healthy(checkCtx) {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable", cfg.Hasher.BaseURL)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

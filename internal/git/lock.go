package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/raphi011/gitgrip/internal/log"
)

const (
	lockInitialWait = 200 * time.Millisecond
	lockMaxWait     = 5 * time.Second
	lockAttempts    = 5
)

var errIndexLocked = errors.New("index.lock exists")

// lockBackOff builds the retry schedule of the lock probe. Tests replace it.
var lockBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(lockInitialWait),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(lockMaxWait),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithMaxRetries(b, lockAttempts-1)
}

// IndexLockPath returns the index.lock path of the working tree at path.
func IndexLockPath(path string) (string, error) {
	dir, err := gitDir(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "index.lock"), nil
}

// WaitForIndexLock returns once no index.lock exists for the working tree
// at path. A lock that survives every retry yields KindRepositoryLocked.
func WaitForIndexLock(ctx context.Context, path string) error {
	lockPath, err := IndexLockPath(path)
	if err != nil {
		return &Error{Kind: KindNotARepo, Op: "lock probe", Path: path, Err: err}
	}

	probe := func() error {
		if _, err := os.Stat(lockPath); err == nil {
			return errIndexLocked
		}
		return nil
	}
	notify := func(_ error, wait time.Duration) {
		log.FromContext(ctx).Debug("index locked, retrying", "path", path, "wait", wait)
	}

	err = backoff.RetryNotify(probe, backoff.WithContext(lockBackOff(), ctx), notify)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &Error{
		Kind: KindRepositoryLocked,
		Op:   "lock probe",
		Path: path,
		Msg:  fmt.Sprintf("repository is locked (%s exists); another git process may be running", lockPath),
		Err:  err,
	}
}

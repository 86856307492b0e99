//go:build !unix

package manifest

import "context"

// fileLock is a no-op where flock is unavailable; Store's mutex still
// serializes writers within the process.
type fileLock struct{}

func acquireLock(ctx context.Context, _ string) (*fileLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fileLock{}, nil
}

func (l *fileLock) release() {}

package launch

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// imageInUse reports whether another qemu process holds the disk image open
// on the host.
func imageInUse(ctx context.Context, r Runner, remotePath string) (bool, error) {
	output, err := r.Output(ctx, "pgrep -a qemu-system-x86_64 || true")
	if err != nil {
		return false, err
	}
	return strings.Contains(output, remotePath), nil
}

// EnsureImage makes sure the disk image exists on the host, copying the
// local image up when the remote one is missing or overwrite is requested.
// An image held open by a running qemu process is an error.
func EnsureImage(ctx context.Context, r Runner, localPath, remotePath string, overwrite bool) error {
	if remotePath == "" {
		return fmt.Errorf("'remote_disk_image_path' is required")
	}

	exists, err := r.FileExists(ctx, remotePath)
	if err != nil {
		return fmt.Errorf("cannot check disk image %s: %w", remotePath, err)
	}

	if exists {
		inUse, err := imageInUse(ctx, r, remotePath)
		if err != nil {
			return fmt.Errorf("cannot check disk image %s: %w", remotePath, err)
		}
		if inUse {
			return fmt.Errorf("disk image %s is currently in use by another qemu process", remotePath)
		}
	}

	if !overwrite && exists {
		return nil
	}

	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("local disk image %s does not exist to copy to %s", localPath, remotePath)
	}

	if err := r.Upload(ctx, localPath, remotePath); err != nil {
		return fmt.Errorf("failed to copy disk image: %w", err)
	}

	return nil
}

package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Publish uploads every visible regular file directly inside dir under
// prefix and returns the object URLs in file name order. Hidden files,
// including lock and temporary files, are skipped.
func Publish(ctx context.Context, st Storage, dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	urls := make([]string, 0, len(names))
	for _, name := range names {
		url, err := uploadFile(ctx, st, filepath.Join(dir, name), path.Join(prefix, name))
		if err != nil {
			return urls, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func uploadFile(ctx context.Context, st Storage, file, key string) (string, error) {
	rc, err := st.LoadFile(ctx, file)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	url, err := st.UploadToS3(ctx, key, rc)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", key, err)
	}
	return url, nil
}

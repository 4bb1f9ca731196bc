package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SharedObjectExt is the file extension Discover looks for.
const SharedObjectExt = ".so"

// Discover walks dirs recursively and maps each shared object's file stem to
// its path. Missing directories are skipped. When two files share a stem the
// first one found wins.
func Discover(ctx context.Context, dirs ...string) (map[string]string, error) {
	found := make(map[string]string)
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if entry.IsDir() || filepath.Ext(entry.Name()) != SharedObjectExt {
				return nil
			}
			stem := strings.TrimSuffix(entry.Name(), SharedObjectExt)
			if stem == "" || strings.HasPrefix(stem, "_") {
				return nil
			}
			if _, dup := found[stem]; !dup {
				found[stem] = path
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	return found, nil
}

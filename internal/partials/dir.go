package partials

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

// Extension marks partial template files
const Extension = ".cel"

// LoadDir registers every partial file found in fsys and returns how many
// were loaded
func LoadDir(fsys fs.FS, env *render.Environment) (int, error) {
	count := 0
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != Extension {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read partial %s: %w", p, err)
		}

		env.RegisterPartial(strings.TrimSuffix(p, Extension), string(data))
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to load partials: %w", err)
	}

	return count, nil
}

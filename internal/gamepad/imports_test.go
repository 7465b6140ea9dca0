package gamepad

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The SDL bindings dlopen libSDL3 at init, so nothing below main may import
// them: the core has to load on hosts without SDL.
func TestCoreDoesNotImportSDL(t *testing.T) {
	dirs := []string{".", "../mapping", "../engine", "../store", "../channels", "../server", "../sink", "../shell", "../hub", "../ipc", "../tray", "../config"}
	for _, dir := range dirs {
		files, err := filepath.Glob(filepath.Join(dir, "*.go"))
		require.NoError(t, err)
		require.NotEmpty(t, files, dir)
		for _, path := range files {
			f, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.ImportsOnly)
			require.NoError(t, err, path)
			for _, imp := range f.Imports {
				p, _ := strconv.Unquote(imp.Path.Value)
				assert.False(t, strings.Contains(p, "purego-sdl3") || strings.HasSuffix(p, "/sdlcapture"),
					"%s imports %s", path, p)
			}
		}
	}
}

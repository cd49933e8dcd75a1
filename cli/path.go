package cli

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/ardnew/cairn/pkg"
)

// configBase is the base name of the configuration file.
const configBase = "config.yaml"

var dirMode os.FileMode = 0o700

var debugBin = regexp.MustCompile(`^__debug_bin\d*$`)

// appName is the executable base name without extension or leading dots.
// Debugger builds map to the project name.
var appName = sync.OnceValue(func() string {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.TrimLeft(name, ".")

	if name == "" || debugBin.MatchString(name) {
		return pkg.Name
	}

	return name
})

// userDir joins appName to the first directory base yields, falling back to
// home/fallback and then the working directory.
func userDir(base func() (string, error), fallback string) string {
	dir, err := base()
	if err != nil {
		if home, herr := os.UserHomeDir(); herr == nil {
			dir = filepath.Join(home, fallback)
		} else if dir, err = os.Getwd(); err != nil {
			dir = "."
		}
	}

	return filepath.Join(dir, appName())
}

var (
	configDir = sync.OnceValue(func() string { return userDir(os.UserConfigDir, ".config") })
	cacheDir  = sync.OnceValue(func() string { return userDir(os.UserCacheDir, ".cache") })
)

// configPath joins elem to the configuration directory.
func configPath(elem ...string) string {
	return filepath.Join(append([]string{configDir()}, elem...)...)
}

func mkdirs() error {
	for _, dir := range []string{configDir(), cacheDir()} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return err
		}
	}

	return nil
}

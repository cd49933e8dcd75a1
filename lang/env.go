package lang

// System globals installed by WithSystemGlobals. The table is built once per
// process and each engine receives its own copy.

import (
	"io/fs"
	"maps"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ardnew/mung"
)

// modeChecks are the file predicates available as file.<name> and as the
// check argument of mung.prefixif.
var modeChecks = map[string]struct {
	lstat bool
	ok    func(fs.FileMode) bool
}{
	"exists":    {ok: func(fs.FileMode) bool { return true }},
	"isDir":     {ok: fs.FileMode.IsDir},
	"isRegular": {ok: fs.FileMode.IsRegular},
	"isSymlink": {lstat: true, ok: func(m fs.FileMode) bool { return m&fs.ModeSymlink != 0 }},
}

// checkAliases are the short check names accepted by mung.prefixif.
var checkAliases = map[string]string{
	"dir":     "isDir",
	"file":    "isRegular",
	"symlink": "isSymlink",
}

func fileCheck(name string) func(string) bool {
	if alias, ok := checkAliases[name]; ok {
		name = alias
	}

	c, ok := modeChecks[name]
	if !ok {
		c = modeChecks["exists"]
	}

	return func(path string) bool {
		stat := os.Stat
		if c.lstat {
			stat = os.Lstat
		}

		info, err := stat(path)

		return err == nil && c.ok(info.Mode())
	}
}

var systemGlobals = sync.OnceValue(func() map[string]any {
	host := hostPlatform()

	file := map[string]any{}
	for name := range modeChecks {
		file[name] = fileCheck(name)
	}

	return map[string]any{
		"platform": host,
		"target":   host.gnu(),
		"hostname": hostname(),
		"user":     username(),
		"shell":    loginShell(),
		"cwd":      workDir,
		"env":      envOr,
		"file":     file,
		"path": map[string]any{
			"abs":  absPath,
			"cat":  filepath.Join,
			"rel":  relPath,
			"base": filepath.Base,
			"dir":  filepath.Dir,
			"ext":  filepath.Ext,
		},
		"mung": map[string]any{
			"prefix": func(list string, items ...string) string {
				return prefixList(list, nil, items)
			},
			"prefixif": func(list, check string, items ...string) string {
				return prefixList(list, fileCheck(check), items)
			},
		},
	}
})

// WithSystemGlobals exposes host information, environment variables and
// path helpers to templates:
//
//	{{ platform.OS }}/{{ platform.Arch }}
//	{{ env('HOME') }}
//	{{ path.cat(cwd(), 'build') }}
//	{{ mung.prefixif(env('PATH'), 'dir', '/opt/bin') }}
func WithSystemGlobals() Option {
	return func(e *Engine) { maps.Copy(e.globals, maps.Clone(systemGlobals())) }
}

// SystemGlobalNames returns the names WithSystemGlobals installs, with the
// members of each namespace as "name.member".
func SystemGlobalNames() []string {
	globals := systemGlobals()

	var names []string

	for _, k := range sortedKeys(globals) {
		names = append(names, k)

		if ns, ok := globals[k].(map[string]any); ok {
			for _, member := range sortedKeys(ns) {
				names = append(names, k+"."+member)
			}
		}
	}

	return names
}

// platform is an operating system and architecture pair.
type platform struct {
	OS   string
	Arch string
}

func (p platform) String() string { return p.OS + "/" + p.Arch }

// gnuArch maps Go architecture names to GCC/LLVM triple names.
var gnuArch = map[string]string{
	"386":    "i386",
	"amd64":  "x86_64",
	"arm64":  "aarch64",
	"mipsle": "mipsel",
}

// gnu renames the architecture the way GCC and LLVM target triples do.
func (p platform) gnu() platform {
	switch {
	case p.Arch == "arm64" && p.OS == "darwin":
		// Apple toolchains keep arm64.
	case p.Arch == "arm":
		switch v, _, _ := strings.Cut(os.Getenv("GOARM"), ","); v {
		case "5", "6", "7":
			p.Arch = "armv" + v
		}
	default:
		if name, ok := gnuArch[p.Arch]; ok {
			p.Arch = name
		}
	}

	return p
}

// hostPlatform honors GOHOSTOS/GOOS and GOHOSTARCH/GOARCH overrides.
func hostPlatform() platform {
	return platform{
		OS:   firstEnv(runtime.GOOS, "GOHOSTOS", "GOOS"),
		Arch: firstEnv(runtime.GOARCH, "GOHOSTARCH", "GOARCH"),
	}
}

func firstEnv(fallback string, keys ...string) string {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			return v
		}
	}

	return fallback
}

func hostname() string {
	name, _ := os.Hostname()

	return name
}

func username() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}

	return os.Getenv("USER")
}

// loginShell reads $SHELL, then the user's entry in /etc/passwd.
func loginShell() string {
	if sh, ok := os.LookupEnv("SHELL"); ok {
		return sh
	}

	name := username()
	if name == "" {
		return ""
	}

	passwd, err := os.ReadFile("/etc/passwd")
	if err != nil {
		return ""
	}

	for line := range strings.Lines(string(passwd)) {
		field := strings.Split(strings.TrimRight(line, "\n"), ":")
		if len(field) >= 7 && field[0] == name {
			return field[6]
		}
	}

	return ""
}

func workDir() string {
	if dir, err := os.Getwd(); err == nil {
		return dir
	}

	return absPath(".")
}

// envOr returns the variable key, or the first fallback when it is unset.
func envOr(key string, fallback ...string) string {
	if v, ok := os.LookupEnv(key); ok || len(fallback) == 0 {
		return v
	}

	return fallback[0]
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}

	return path
}

func relPath(from, to string) string {
	if rel, err := filepath.Rel(absPath(from), absPath(to)); err == nil {
		return rel
	}

	return filepath.Join(from, to)
}

// prefixList prepends items to a PATH-like list without duplicates. A
// non-nil keep drops the items it rejects.
func prefixList(list string, keep func(string) bool, items []string) string {
	if keep == nil {
		keep = func(string) bool { return true }
	}

	return mung.Make(
		mung.WithSubjectItems(list),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(items...),
		mung.WithFilter(keep),
	).String()
}

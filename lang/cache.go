package lang

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/zeebo/xxh3"
)

// Template returns the template called name, loading, parsing and
// optimizing it on first use. A cached template is reused until the
// loader reports a different modification time. Concurrent requests for
// the same uncached name share one load.
func (e *Engine) Template(name string) (*Template, error) {
	ctx := context.Background()

	modTime, err := e.loader.ModTime(name)
	if err != nil {
		return nil, err
	}

	if t := e.cached(name, modTime); t != nil {
		e.logger.TraceContext(ctx, "template cache hit", slog.String("template", name))

		return t, nil
	}

	v, err, shared := e.group.Do(name, func() (any, error) {
		if t := e.cached(name, modTime); t != nil {
			return t, nil
		}

		t, err := e.load(ctx, name)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		e.templates[name] = t
		e.mu.Unlock()

		return t, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.TraceContext(ctx, "template cache miss",
		slog.String("template", name),
		slog.Bool("shared", shared),
	)

	return v.(*Template), nil
}

func (e *Engine) cached(name string, modTime time.Time) *Template {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if t, ok := e.templates[name]; ok && t.modTime.Equal(modTime) {
		return t
	}

	return nil
}

// Forget drops name from the template cache.
func (e *Engine) Forget(name string) {
	e.mu.Lock()
	delete(e.templates, name)
	e.mu.Unlock()
}

// load reads a template and builds its tree, from a fresh artifact when
// one exists.
func (e *Engine) load(ctx context.Context, name string) (*Template, error) {
	src, err := e.loader.Load(name)
	if err != nil {
		return nil, err
	}

	if root, path, ok := e.loadArtifact(ctx, name, src); ok {
		t := newTemplate(e, name, root, src)
		t.restored = true
		t.artifact = path

		return t, nil
	}

	root, err := e.Parse(src.Text)
	if err != nil {
		e.logger.DebugContext(ctx, "parse failed", slog.String("template", name), errAttr(err))

		return nil, err
	}

	Optimize(root, e.logger)

	return newTemplate(e, name, root, src), nil
}

// artifact is the on-disk form of a compiled template: its optimized tree
// plus what is needed to tell whether it is still current.
type artifact struct {
	Name    string   `yaml:"name"`
	Version int      `yaml:"version"`
	ModTime int64    `yaml:"modtime"`
	Hash    string   `yaml:"hash"`
	Options string   `yaml:"options"`
	Root    *nodeDoc `yaml:"root"`
}

const artifactVersion = 1

func (e *Engine) artifactPath(name string) string {
	sum := xxh3.HashString(name)

	return filepath.Join(e.cacheDir, strconv.FormatUint(sum, 36)+".yaml")
}

// optionsKey identifies the engine settings that change how a template
// parses.
func (e *Engine) optionsKey() string {
	key := "trim=" + strconv.FormatBool(e.trimBlocks) +
		",lstrip=" + strconv.FormatBool(e.lstripBlocks)

	return key
}

func sourceHash(text string) string {
	return strconv.FormatUint(xxh3.HashString(text), 36)
}

// loadArtifact restores the tree of name from the cache directory. Any
// problem means the artifact is ignored.
func (e *Engine) loadArtifact(ctx context.Context, name string, src Source) (*Root, string, bool) {
	if e.cacheDir == "" {
		return nil, "", false
	}

	path := e.artifactPath(name)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", false
	}

	fallback := func(reason string, attrs ...slog.Attr) (*Root, string, bool) {
		e.logger.DebugContext(ctx, "artifact fallback", append([]slog.Attr{
			slog.String("template", name),
			slog.String("path", path),
			slog.String("reason", reason),
		}, attrs...)...)

		return nil, "", false
	}

	var a artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return fallback("decode", errAttr(err))
	}

	switch {
	case a.Version != artifactVersion:
		return fallback("version")
	case a.Name != name:
		return fallback("name")
	case a.ModTime != src.ModTime.UnixNano():
		return fallback("stale")
	case a.Hash != sourceHash(src.Text):
		return fallback("hash")
	case a.Options != e.optionsKey():
		return fallback("options")
	}

	node, err := e.decodeNode(a.Root)
	if err != nil {
		return fallback("tree", errAttr(err))
	}

	root, ok := node.(*Root)
	if !ok {
		return fallback("root")
	}

	e.logger.TraceContext(ctx, "artifact reused",
		slog.String("template", name),
		slog.String("path", path),
	)

	return root, path, true
}

// storeArtifact writes the compiled tree of t to the cache directory.
func (e *Engine) storeArtifact(t *Template) (string, bool) {
	if e.cacheDir == "" || t.name == "<string>" {
		return "", false
	}

	ctx := context.Background()

	doc, err := encodeNode(t.root)
	if err != nil {
		e.logger.DebugContext(ctx, "artifact encode failed", errAttr(err))

		return "", false
	}

	data, err := yaml.Marshal(artifact{
		Name:    t.name,
		Version: artifactVersion,
		ModTime: t.modTime.UnixNano(),
		Hash:    sourceHash(t.source),
		Options: e.optionsKey(),
		Root:    doc,
	})
	if err != nil {
		e.logger.DebugContext(ctx, "artifact encode failed", errAttr(err))

		return "", false
	}

	path := e.artifactPath(t.name)

	if err := os.MkdirAll(e.cacheDir, 0o755); err != nil {
		e.logger.DebugContext(ctx, "artifact write failed", errAttr(err))

		return "", false
	}

	// Readers only ever see a complete artifact.
	tmp, err := os.CreateTemp(e.cacheDir, ".artifact-*")
	if err != nil {
		e.logger.DebugContext(ctx, "artifact write failed", errAttr(err))

		return "", false
	}

	_, werr := tmp.Write(data)
	cerr := tmp.Close()

	if werr != nil || cerr != nil {
		_ = os.Remove(tmp.Name())

		e.logger.DebugContext(ctx, "artifact write failed",
			slog.String("path", path))

		return "", false
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		e.logger.DebugContext(ctx, "artifact write failed", errAttr(err))

		return "", false
	}

	e.logger.TraceContext(ctx, "artifact stored",
		slog.String("template", t.name),
		slog.String("path", path),
	)

	return path, true
}

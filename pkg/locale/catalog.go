package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed bundles/*.yaml
var builtin embed.FS

// Catalog holds the bundles of every supported language.
// The first language added is the default used when nothing else matches.
type Catalog struct {
	bundles map[string]*Bundle
	tags    []language.Tag
	keys    []string
	matcher language.Matcher
}

// Match describes which bundle serves a requested language.
type Match struct {
	Bundle *Bundle

	// Exact is false when the requested language has no bundle of its own and
	// the default bundle was picked: the caller should translate the output.
	Exact bool
}

// NewCatalog builds a catalog from bundles. The first bundle is the default.
func NewCatalog(bundles ...*Bundle) (*Catalog, error) {
	if len(bundles) == 0 {
		return nil, fmt.Errorf("catalog: at least one bundle is required")
	}
	c := &Catalog{bundles: make(map[string]*Bundle)}
	for _, b := range bundles {
		if err := c.add(b); err != nil {
			return nil, err
		}
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

func (c *Catalog) add(b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	tag, err := language.Parse(b.Language)
	if err != nil {
		return fmt.Errorf("bundle %s: invalid language tag: %w", b.Language, err)
	}
	key := tag.String()
	if _, exists := c.bundles[key]; exists {
		// Later bundles override earlier ones for the same language.
		c.bundles[key] = b
		return nil
	}
	c.bundles[key] = b
	c.tags = append(c.tags, tag)
	c.keys = append(c.keys, key)
	return nil
}

// Default returns the default bundle.
func (c *Catalog) Default() *Bundle {
	return c.bundles[c.keys[0]]
}

// Languages returns the languages with a bundle, default first.
func (c *Catalog) Languages() []string {
	return append([]string(nil), c.keys...)
}

// Lookup picks the bundle for a language tag such as "es", "es-MX" or "pt-BR".
func (c *Catalog) Lookup(lang string) Match {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return Match{Bundle: c.Default(), Exact: lang == "" || strings.EqualFold(lang, c.keys[0])}
	}
	_, idx, confidence := c.matcher.Match(tag)
	if confidence < language.High {
		return Match{Bundle: c.Default(), Exact: idx == 0 && confidence == language.Exact}
	}
	return Match{Bundle: c.bundles[c.keys[idx]], Exact: true}
}

// ParseBundle decodes one YAML bundle.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Builtin returns the catalog of the bundles shipped with the binary ("en" first).
func Builtin() (*Catalog, error) {
	bundles, err := loadFS(builtin, "bundles")
	if err != nil {
		return nil, err
	}
	return NewCatalog(bundles...)
}

// MustBuiltin is like Builtin but panics on error. The embedded bundles are covered by tests.
func MustBuiltin() *Catalog {
	c, err := Builtin()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadDir returns the built-in catalog extended (or overridden) by the *.yaml bundles in dir.
// A missing directory is not an error.
func LoadDir(dir string) (*Catalog, error) {
	bundles, err := loadFS(builtin, "bundles")
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			extra, err := loadFS(os.DirFS(filepath.Clean(dir)), ".")
			if err != nil {
				return nil, err
			}
			bundles = append(bundles, extra...)
		} else if !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("failed to read locale dir: %w", statErr)
		}
	}
	return NewCatalog(bundles...)
}

func loadFS(fsys fs.FS, dir string) ([]*Bundle, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	// "en" first so it becomes the default, the rest alphabetically.
	sort.Slice(names, func(i, j int) bool {
		if names[i] == "en.yaml" || names[j] == "en.yaml" {
			return names[i] == "en.yaml"
		}
		return names[i] < names[j]
	})

	bundles := make([]*Bundle, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read bundle %s: %w", name, err)
		}
		b, err := ParseBundle(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/schema"
)

// Stem couples a provisioned root directory with the schema file
// describing what lives beneath it.
type Stem struct {
	Name       string
	Root       filesystem.Root
	SchemaPath string
}

// Config is the resolved runtime configuration: the stem table, the
// schema cache behind it and the owner and group name mappings applied
// during traversal.
type Config struct {
	stems    []Stem
	cache    *SchemaCache
	Usermap  NameMap
	Groupmap NameMap
}

// NewConfig returns an empty [Config] loading schemas through the
// given provider.
func NewConfig(osHandler osProvider) *Config {
	return &Config{
		cache:    NewSchemaCache(osHandler),
		Usermap:  make(NameMap),
		Groupmap: make(NameMap),
	}
}

// Load reads and resolves a TOML configuration file. Relative schema
// paths resolve against the schema directory, which itself defaults to
// the directory holding the configuration file.
func Load(path string, osHandler osProvider) (*Config, error) {
	data, err := osHandler.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("(config) failed to read configuration %q: %w", path, err)
	}

	file, err := ParseFile(data)
	if err != nil {
		return nil, err
	}

	if len(file.Stems) == 0 {
		return nil, fmt.Errorf("(config) %q: %w", path, ErrNoStems)
	}

	baseDir := filepath.Dir(path)

	schemaDir := file.SchemaDirectory
	switch {
	case schemaDir == "":
		schemaDir = baseDir
	case !filepath.IsAbs(schemaDir):
		schemaDir = filepath.Join(baseDir, schemaDir)
	}

	config := NewConfig(osHandler)

	names := make([]string, 0, len(file.Stems))
	for name := range file.Stems {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stem := file.Stems[name]

		root, err := filesystem.NewRoot(stem.Root)
		if err != nil {
			return nil, fmt.Errorf("(config) stem %q: %w", name, err)
		}

		schemaPath := stem.Schema
		if !filepath.IsAbs(schemaPath) {
			schemaPath = filepath.Join(schemaDir, schemaPath)
		}

		if err := config.AddStem(name, root, schemaPath); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// AddStem registers a stem. Roots must be unique across stems.
func (c *Config) AddStem(name string, root filesystem.Root, schemaPath string) error {
	for _, stem := range c.stems {
		if stem.Root == root {
			return fmt.Errorf("(config) stem %q and stem %q: %w", name, stem.Name, ErrDuplicateRoot)
		}
	}

	c.stems = append(c.stems, Stem{Name: name, Root: root, SchemaPath: schemaPath})

	return nil
}

// AddParsedStem registers a stem with an already parsed schema,
// bypassing the file read.
func (c *Config) AddParsedStem(name string, root filesystem.Root, node *schema.Node) error {
	schemaPath := "memory://" + name

	if err := c.AddStem(name, root, schemaPath); err != nil {
		return err
	}
	c.cache.Inject(schemaPath, node)

	return nil
}

// SchemaFor resolves the deepest stem whose root covers the path and
// returns its parsed schema together with that root.
func (c *Config) SchemaFor(path string) (*schema.Node, filesystem.Root, error) {
	var (
		found bool
		best  Stem
	)

	for _, stem := range c.stems {
		if stem.Root.Contains(path) && (!found || len(stem.Root.Path()) > len(best.Root.Path())) {
			found = true
			best = stem
		}
	}

	if !found {
		roots := strings.Join(c.rootPaths(), ", ")
		if roots == "" {
			roots = "none"
		}

		return nil, "", fmt.Errorf("(config) no root covers %q (configured roots: %s): %w",
			path, roots, ErrNoStemForPath)
	}

	node, err := c.cache.Load(best.SchemaPath)
	if err != nil {
		return nil, "", err
	}

	return node, best.Root, nil
}

// Stems returns the configured stems in name order.
func (c *Config) Stems() []Stem {
	return append([]Stem(nil), c.stems...)
}

// MapUser translates an owner name through the user mapping.
func (c *Config) MapUser(name string) string {
	return c.Usermap.Map(name)
}

// MapGroup translates a group name through the group mapping.
func (c *Config) MapGroup(name string) string {
	return c.Groupmap.Map(name)
}

func (c *Config) rootPaths() []string {
	paths := make([]string, 0, len(c.stems))
	for _, stem := range c.stems {
		paths = append(paths, stem.Root.Path())
	}

	return paths
}

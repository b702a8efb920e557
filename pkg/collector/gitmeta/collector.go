package gitmeta

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"gopkg.in/yaml.v3"

	"mercator-hq/atlas/pkg/collector"
	"mercator-hq/atlas/pkg/registry"
)

// Config contains the catalog repository settings.
type Config struct {
	// Repository is the catalog repository URL.
	Repository string `yaml:"repository"`

	// Branch is the branch to track. Default: "main".
	Branch string `yaml:"branch"`

	// LocalPath is where the catalog is cloned. Default: a directory
	// under the OS temp dir.
	LocalPath string `yaml:"local_path"`

	// Token is an optional bearer token for HTTPS remotes.
	Token string `yaml:"token"`
}

// manifest is the per-service service.yaml in the catalog repository.
type manifest struct {
	Name      string `yaml:"name"`
	Owner     string `yaml:"owner"`
	Language  string `yaml:"language"`
	Framework string `yaml:"framework"`
	Runtime   string `yaml:"runtime"`
	Created   string `yaml:"created"`
}

// Collector implements collector.Collector over the catalog repository.
type Collector struct {
	config Config
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// New creates a catalog collector. The repository is not touched until the
// first Fetch.
func New(cfg Config, logger *slog.Logger) (*Collector, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("gitmeta: repository URL is required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(os.TempDir(), "atlas-catalog")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		config: cfg,
		logger: logger.With("component", "collector.gitmeta"),
	}, nil
}

// SourceID implements collector.Collector.
func (c *Collector) SourceID() string { return registry.SourceGitMeta }

// Fields implements collector.Collector.
func (c *Collector) Fields() []string {
	return []string{
		registry.FieldOwner,
		registry.FieldCreatedAt,
		registry.FieldRepoURL,
		registry.FieldLanguage,
		registry.FieldFramework,
		registry.FieldRuntimeVersion,
	}
}

// Fetch syncs the catalog and reads every service manifest into a
// snapshot. A credential rejection maps to *collector.AuthError, any other
// transport failure to *collector.UnavailableError.
func (c *Collector) Fetch(ctx context.Context) (registry.SourceSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sync(ctx); err != nil {
		return registry.SourceSnapshot{}, c.classify(err)
	}

	worktree, err := c.repo.Worktree()
	if err != nil {
		return registry.SourceSnapshot{}, c.classify(err)
	}
	root := worktree.Filesystem.Root()

	services, err := c.readManifests(root)
	if err != nil {
		return registry.SourceSnapshot{}, c.classify(err)
	}

	return registry.SourceSnapshot{
		SourceID:  registry.SourceGitMeta,
		FetchedAt: time.Now(),
		Services:  services,
	}, nil
}

// sync clones the catalog on first use and pulls afterwards.
func (c *Collector) sync(ctx context.Context) error {
	if c.repo == nil {
		repo, err := gogit.PlainOpen(c.config.LocalPath)
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			c.logger.Info("cloning service catalog",
				"repository", c.config.Repository, "branch", c.config.Branch)
			repo, err = gogit.PlainCloneContext(ctx, c.config.LocalPath, false, &gogit.CloneOptions{
				URL:           c.config.Repository,
				ReferenceName: plumbing.NewBranchReferenceName(c.config.Branch),
				SingleBranch:  true,
				Auth:          c.auth(),
			})
		}
		if err != nil {
			return err
		}
		c.repo = repo
	}

	worktree, err := c.repo.Worktree()
	if err != nil {
		return err
	}
	err = worktree.PullContext(ctx, &gogit.PullOptions{
		ReferenceName: plumbing.NewBranchReferenceName(c.config.Branch),
		SingleBranch:  true,
		Auth:          c.auth(),
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// readManifests walks the catalog worktree for <service>/service.yaml
// files and converts each into a fact map.
func (c *Collector) readManifests(root string) (map[string]registry.ServiceFacts, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	services := make(map[string]registry.ServiceFacts)
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == ".git" {
			continue
		}
		path := filepath.Join(root, entry.Name(), "service.yaml")
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var m manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			c.logger.Warn("skipping unparseable service manifest", "path", path, "error", err)
			continue
		}
		name := m.Name
		if name == "" {
			name = entry.Name()
		}
		services[name] = c.facts(m)
	}
	return services, nil
}

// facts maps a manifest to the collector's field set. A field the manifest
// does not declare is reported explicitly unknown, which is what lets the
// reconciler distinguish "the catalog does not say" from "no source says".
func (c *Collector) facts(m manifest) registry.ServiceFacts {
	facts := registry.ServiceFacts{
		registry.FieldRepoURL: registry.Known(c.config.Repository),
	}
	set := func(field, value string) {
		if value != "" {
			facts[field] = registry.Known(value)
		} else {
			facts[field] = registry.Unknown()
		}
	}
	set(registry.FieldOwner, m.Owner)
	set(registry.FieldCreatedAt, m.Created)
	set(registry.FieldLanguage, m.Language)
	set(registry.FieldFramework, m.Framework)
	set(registry.FieldRuntimeVersion, m.Runtime)
	return facts
}

// auth returns transport credentials for HTTPS remotes, nil when no token
// is configured.
func (c *Collector) auth() transport.AuthMethod {
	if c.config.Token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "atlas", Password: c.config.Token}
}

// classify maps go-git errors onto the collector error kinds.
func (c *Collector) classify(err error) error {
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return &collector.AuthError{Source: registry.SourceGitMeta, Message: err.Error()}
	}
	return &collector.UnavailableError{Source: registry.SourceGitMeta, Cause: err}
}

package gitmeta

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"mercator-hq/atlas/pkg/registry"
)

// initCatalog creates a local catalog repository with the given service
// manifests and returns its path.
func initCatalog(t *testing.T, manifests map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	for svc, manifest := range manifests {
		if err := os.MkdirAll(filepath.Join(dir, svc), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, svc, "service.yaml"), []byte(manifest), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := worktree.Add(filepath.Join(svc, "service.yaml")); err != nil {
			t.Fatal(err)
		}
	}

	_, err = worktree.Commit("seed catalog", &gogit.CommitOptions{
		Author: &object.Signature{Name: "platform", Email: "platform@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestCollector_ReadsCatalogManifests(t *testing.T) {
	catalog := initCatalog(t, map[string]string{
		"billing": "name: billing\nowner: team-billing\nlanguage: go\nframework: gin\nruntime: \"21-LTS\"\ncreated: \"2024-06-01\"\n",
		"search":  "name: search\nlanguage: java\n",
	})

	c, err := New(Config{
		Repository: catalog,
		Branch:     "master",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	snap, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.SourceID != registry.SourceGitMeta {
		t.Errorf("wrong source id %q", snap.SourceID)
	}

	billing := snap.Services["billing"]
	if billing == nil {
		t.Fatal("billing manifest not collected")
	}
	if got := billing[registry.FieldOwner]; got.Value != "team-billing" {
		t.Errorf("owner = %q, want team-billing", got.Value)
	}
	if got := billing[registry.FieldRuntimeVersion]; got.Value != "21-LTS" {
		t.Errorf("runtime_version = %q, want 21-LTS", got.Value)
	}

	search := snap.Services["search"]
	if got := search[registry.FieldOwner]; got.Known {
		t.Error("undeclared owner must be explicitly unknown")
	}
	if got := search[registry.FieldLanguage]; got.Value != "java" {
		t.Errorf("language = %q, want java", got.Value)
	}
}

func TestCollector_SecondFetchPulls(t *testing.T) {
	catalog := initCatalog(t, map[string]string{
		"billing": "name: billing\nowner: team-billing\n",
	})

	c, err := New(Config{
		Repository: catalog,
		Branch:     "master",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}

	// An unchanged upstream must not break the second cycle.
	snap, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second fetch (pull, already up to date) failed: %v", err)
	}
	if _, ok := snap.Services["billing"]; !ok {
		t.Error("billing missing after pull cycle")
	}
}

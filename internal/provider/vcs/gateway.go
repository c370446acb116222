// Package vcs opens, merges and cleans up the pull requests that carry a
// realm's infrastructure-as-code definition.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"github.com/google/go-github/v66/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"realmsteward.io/steward/internal/config"
	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/pkg/logger"
)

var (
	// ErrProvisioning wraps every failed provisioning sub-step.
	ErrProvisioning = errors.New("provisioning failed")
	// ErrBranchExists is returned when the realm's branch is already present.
	// It wraps ErrProvisioning.
	ErrBranchExists = fmt.Errorf("%w: realm branch already exists", ErrProvisioning)
)

// Provisioner is the pull-request workflow the lifecycle controller drives.
type Provisioner interface {
	OpenRealmPullRequest(ctx context.Context, realm string, envs []domain.Environment) (int, error)
	MergePullRequest(ctx context.Context, prNumber int) (bool, error)
	DeleteBranch(ctx context.Context, realm string) error
}

var _ Provisioner = (*Gateway)(nil)

// realmTemplate is rendered once per target environment.
var realmTemplate = template.Must(template.New("realm").Parse(`module "{{ .Realm }}" {
  source = "{{ .ModuleRef }}"
  realm  = "{{ .Realm }}"
}
`))

// Gateway implements Provisioner on the GitHub git data and pull request APIs.
type Gateway struct {
	client     *github.Client
	owner      string
	repo       string
	baseBranch string
	moduleRef  string
	timeout    time.Duration
}

// NewGateway builds a Gateway from configuration. Requests authenticate with
// a static token and are bounded by cfg.Timeout.
func NewGateway(cfg config.GitHubConfig) (*Gateway, error) {
	httpClient := &http.Client{}
	if cfg.Token != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}
	httpClient.Timeout = cfg.Timeout

	client := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
	}
	return NewGatewayWithClient(client, cfg), nil
}

// NewGatewayWithClient wraps an existing client. Tests point it at httptest.
func NewGatewayWithClient(client *github.Client, cfg config.GitHubConfig) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := cfg.BaseBranch
	if base == "" {
		base = "main"
	}
	return &Gateway{
		client:     client,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		baseBranch: base,
		moduleRef:  cfg.ModuleRef,
		timeout:    timeout,
	}
}

// BranchName returns the deterministic branch for a realm.
func BranchName(realm string) string {
	return "realm/" + realm
}

// FilePath returns the infrastructure file for a realm in one environment.
func FilePath(env domain.Environment, realm string) string {
	return fmt.Sprintf("keycloak-%s/realms/%s.tf", env, realm)
}

// RenderRealmFile renders the infrastructure definition for realm.
func RenderRealmFile(realm, moduleRef string) (string, error) {
	var buf bytes.Buffer
	if err := realmTemplate.Execute(&buf, struct{ Realm, ModuleRef string }{realm, moduleRef}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

// OpenRealmPullRequest commits one file per environment on a fresh branch and
// opens a pull request against the base branch.
func (g *Gateway) OpenRealmPullRequest(ctx context.Context, realm string, envs []domain.Environment) (int, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	branch := BranchName(realm)
	if _, resp, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "heads/"+branch); err == nil {
		return 0, ErrBranchExists
	} else if resp == nil || resp.StatusCode != http.StatusNotFound {
		return 0, fail("check branch", err)
	}

	baseRef, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "heads/"+g.baseBranch)
	if err != nil {
		return 0, fail("get base branch", err)
	}
	baseSHA := baseRef.GetObject().GetSHA()

	_, _, err = g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(baseSHA)},
	})
	if err != nil {
		if isUnprocessable(err) {
			return 0, ErrBranchExists
		}
		return 0, fail("create branch", err)
	}

	content, err := RenderRealmFile(realm, g.moduleRef)
	if err != nil {
		return 0, fail("render realm file", err)
	}

	entries := make([]*github.TreeEntry, 0, len(envs))
	for _, env := range envs {
		blob, _, err := g.client.Git.CreateBlob(ctx, g.owner, g.repo, &github.Blob{
			Content:  github.String(content),
			Encoding: github.String("utf-8"),
		})
		if err != nil {
			return 0, fail("create blob", err)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.String(FilePath(env, realm)),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  blob.SHA,
		})
	}

	baseCommit, _, err := g.client.Git.GetCommit(ctx, g.owner, g.repo, baseSHA)
	if err != nil {
		return 0, fail("get base commit", err)
	}

	tree, _, err := g.client.Git.CreateTree(ctx, g.owner, g.repo, baseCommit.GetTree().GetSHA(), entries)
	if err != nil {
		return 0, fail("create tree", err)
	}

	commit, _, err := g.client.Git.CreateCommit(ctx, g.owner, g.repo, &github.Commit{
		Message: github.String(fmt.Sprintf("feat: add realm %s", realm)),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: github.String(baseSHA)}},
	}, nil)
	if err != nil {
		return 0, fail("create commit", err)
	}

	_, _, err = g.client.Git.UpdateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: commit.SHA},
	}, false)
	if err != nil {
		return 0, fail("update branch", err)
	}

	pr, _, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.String(fmt.Sprintf("Realm %s provisioning", realm)),
		Head:  github.String(branch),
		Base:  github.String(g.baseBranch),
		Body:  github.String(fmt.Sprintf("Adds realm %s to %d environment(s).", realm, len(envs))),
	})
	if err != nil {
		return 0, fail("open pull request", err)
	}

	logger.Info("Realm pull request opened",
		zap.String("realm", realm),
		zap.Int("pr_number", pr.GetNumber()),
	)
	return pr.GetNumber(), nil
}

// MergePullRequest squash-merges the pull request.
func (g *Gateway) MergePullRequest(ctx context.Context, prNumber int) (bool, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	res, _, err := g.client.PullRequests.Merge(ctx, g.owner, g.repo, prNumber, "", &github.PullRequestOptions{
		MergeMethod: "squash",
	})
	if err != nil {
		return false, fail("merge pull request", err)
	}
	return res.GetMerged(), nil
}

// DeleteBranch removes the realm's branch.
func (g *Gateway) DeleteBranch(ctx context.Context, realm string) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if _, err := g.client.Git.DeleteRef(ctx, g.owner, g.repo, "heads/"+BranchName(realm)); err != nil {
		return fail("delete branch", err)
	}
	return nil
}

func fail(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrProvisioning, step, err)
}

func isUnprocessable(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity
}

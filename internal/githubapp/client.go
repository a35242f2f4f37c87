// internal/githubapp/client.go
package githubapp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github-sync-engine/internal/model"
)

const perPage = 100 // API maximum

// API is the remote surface consumed by the webhook processor and scheduler.
type API interface {
	GetRepository(ctx context.Context, owner, name string) (*model.Repository, error)
	GetRepositoryByID(ctx context.Context, githubID int64) (*model.Repository, error)
	ListInstallationRepositories(ctx context.Context) ([]*model.Repository, error)
	ListCommitsSince(ctx context.Context, owner, name string, since time.Time) ([]model.Commit, error)
	GetCommit(ctx context.Context, owner, name, sha string) (*model.Commit, error)
	ListIssuesSince(ctx context.Context, owner, name string, since time.Time) ([]model.Issue, error)
	ListContributors(ctx context.Context, owner, name string) ([]model.Contributor, error)
}

// Factory hands out API clients scoped to an installation, or to a static
// token for repositories imported outside any installation.
type Factory interface {
	ForInstallation(installationID int64) API
	ForToken(token string) API
}

// Clients builds per-installation clients that share one token cache.
type Clients struct {
	tokens  *TokenCache
	apiBase string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClients creates the client factory.
func NewClients(tokens *TokenCache, apiBase string, timeout time.Duration, logger *slog.Logger) *Clients {
	return &Clients{
		tokens:  tokens,
		apiBase: apiBase,
		timeout: timeout,
		logger:  logger,
	}
}

// ForInstallation returns a client whose requests carry the installation's
// cached token, with transparent refresh and transient-failure retry.
func (c *Clients) ForInstallation(installationID int64) API {
	hc := &http.Client{
		Timeout: c.timeout,
		Transport: &retryTransport{
			base:           http.DefaultTransport,
			tokens:         c.tokens,
			installationID: installationID,
		},
	}
	return &Client{gh: c.newGithubClient(hc), logger: c.logger.With("installation_id", installationID)}
}

// ForToken returns a client authenticated with a fixed token, used for the
// manual-import fallback.
func (c *Clients) ForToken(token string) API {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = c.timeout
	return &Client{gh: c.newGithubClient(hc), logger: c.logger}
}

func (c *Clients) newGithubClient(hc *http.Client) *github.Client {
	gh := github.NewClient(hc)
	if c.apiBase != "" {
		if egh, err := gh.WithEnterpriseURLs(c.apiBase, c.apiBase); err == nil {
			gh = egh
		}
	}
	return gh
}

// Client is a wrapper around the go-github client that translates API
// payloads to our internal model.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// GetRepository fetches repository details by owner and name.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	return ToRepository(repo), nil
}

// GetRepositoryByID fetches repository details by stable external id.
func (c *Client) GetRepositoryByID(ctx context.Context, githubID int64) (*model.Repository, error) {
	repo, _, err := c.gh.Repositories.GetByID(ctx, githubID)
	if err != nil {
		return nil, err
	}
	return ToRepository(repo), nil
}

// ListInstallationRepositories fetches every repository visible to the
// installation this client is scoped to, handling pagination transparently.
func (c *Client) ListInstallationRepositories(ctx context.Context) ([]*model.Repository, error) {
	var all []*model.Repository
	opts := &github.ListOptions{PerPage: perPage}
	for {
		list, resp, err := c.gh.Apps.ListRepos(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, repo := range list.Repositories {
			all = append(all, ToRepository(repo))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListCommitsSince fetches all commits created after the given time. List
// payloads carry no per-commit stats; use GetCommit for the full detail.
func (c *Client) ListCommitsSince(ctx context.Context, owner, name string, since time.Time) ([]model.Commit, error) {
	var all []model.Commit
	opts := &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", opts.Page)
		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, err
		}
		for _, commit := range commits {
			all = append(all, toCommit(commit))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetCommit fetches one commit with its stats, which push payloads omit.
func (c *Client) GetCommit(ctx context.Context, owner, name, sha string) (*model.Commit, error) {
	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		return nil, err
	}
	full := toCommit(commit)
	return &full, nil
}

// ListIssuesSince fetches issues in all states updated after the given time.
// Pull requests surfaced through the issues API are dropped here.
func (c *Client) ListIssuesSince(ctx context.Context, owner, name string, since time.Time) ([]model.Issue, error) {
	var all []model.Issue
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Since:       since,
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, err
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			all = append(all, ToIssue(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListContributors fetches the contributor list for a repository.
func (c *Client) ListContributors(ctx context.Context, owner, name string) ([]model.Contributor, error) {
	var all []model.Contributor
	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		contribs, resp, err := c.gh.Repositories.ListContributors(ctx, owner, name, opts)
		if err != nil {
			return nil, err
		}
		for _, contrib := range contribs {
			all = append(all, model.Contributor{
				Login:         contrib.GetLogin(),
				AvatarURL:     contrib.GetAvatarURL(),
				ProfileURL:    contrib.GetHTMLURL(),
				Contributions: contrib.GetContributions(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ToRepository translates a github.Repository to our internal model.
func ToRepository(r *github.Repository) *model.Repository {
	return &model.Repository{
		GithubID:    r.GetID(),
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Description: r.Description,
		URL:         r.GetHTMLURL(),
		Language:    r.Language,
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		OpenIssues:  r.GetOpenIssuesCount(),
		CreatedAt:   r.GetCreatedAt().Time,
		UpdatedAt:   r.GetUpdatedAt().Time,
	}
}

// toCommit translates a github.RepositoryCommit to our internal model.
func toCommit(c *github.RepositoryCommit) model.Commit {
	return model.Commit{
		SHA:         c.GetSHA(),
		Message:     c.GetCommit().GetMessage(),
		URL:         c.GetHTMLURL(),
		AuthorLogin: c.GetAuthor().GetLogin(),
		AuthorName:  c.GetCommit().GetAuthor().GetName(),
		AvatarURL:   c.GetAuthor().GetAvatarURL(),
		Additions:   c.GetStats().GetAdditions(),
		Deletions:   c.GetStats().GetDeletions(),
		CommittedAt: c.GetCommit().GetAuthor().GetDate().Time,
	}
}

// ToIssue translates a github.Issue to our internal model.
func ToIssue(i *github.Issue) model.Issue {
	issue := model.Issue{
		GithubID:    i.GetID(),
		Number:      i.GetNumber(),
		Title:       i.GetTitle(),
		State:       i.GetState(),
		URL:         i.GetHTMLURL(),
		AuthorLogin: i.GetUser().GetLogin(),
		AvatarURL:   i.GetUser().GetAvatarURL(),
		CreatedAt:   i.GetCreatedAt().Time,
		UpdatedAt:   i.GetUpdatedAt().Time,
	}
	if i.ClosedAt != nil {
		t := i.ClosedAt.Time
		issue.ClosedAt = &t
	}
	return issue
}

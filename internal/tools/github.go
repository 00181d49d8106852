package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/go-github/v69/github"

	"github.com/genesis-run/genesis/internal/llmadapter"
	"github.com/genesis-run/genesis/internal/orchestrator"
)

type githubIssueLookupArgs struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

// GitHubIssueLookup is a demo internal tool that looks up a single GitHub
// issue's title/state/body, grounded on the retrieval-pack's
// nugget-thane-ai-agent internal/forge.GitHub provider's use of
// google/go-github. token may be empty for unauthenticated (rate-limited)
// access to public repositories.
func GitHubIssueLookup(token string) orchestrator.InternalTool {
	client := github.NewClient(http.DefaultClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return orchestrator.InternalTool{
		Spec: llmadapter.ToolSpec{
			Name:        "github_issue_lookup",
			Description: "Looks up a GitHub issue's title, state, and body given owner, repo, and issue number.",
			ParameterSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"owner":{"type":"string"},
					"repo":{"type":"string"},
					"number":{"type":"integer"}
				},
				"required":["owner","repo","number"]
			}`),
		},
		Handler: func(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error) {
			var args githubIssueLookupArgs
			if err := json.Unmarshal(arguments, &args); err != nil {
				return nil, fmt.Errorf("github_issue_lookup: decode arguments: %w", err)
			}
			issue, _, err := client.Issues.Get(ctx, args.Owner, args.Repo, args.Number)
			if err != nil {
				return nil, fmt.Errorf("github_issue_lookup: get issue #%d: %w", args.Number, err)
			}
			return json.Marshal(map[string]any{
				"title": issue.GetTitle(),
				"state": issue.GetState(),
				"body":  issue.GetBody(),
			})
		},
	}
}

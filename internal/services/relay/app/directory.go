package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/campfirehq/campfire/internal/platform/timeouts"
)

// directoryUser is the directory service's view of a user, used to enrich
// identify acks. The relay never writes directory state.
type directoryUser struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Nickname   string `json:"nickname"`
	CreatedAt  string `json:"createdAt"`
	LastSeenAt string `json:"lastSeenAt"`
}

// userResolver looks up a user by external identifier. A nil user with a
// nil error means the directory does not know the identifier.
type userResolver interface {
	ResolveUser(ctx context.Context, externalID string) (*directoryUser, error)
}

type directoryClient struct {
	baseURL    string
	httpClient *http.Client
}

// newDirectoryClient builds an HTTP resolver against the directory
// service, or nil when no base URL is configured.
func newDirectoryClient(baseURL string) userResolver {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil
	}
	return &directoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeouts.DirectoryLookup,
		},
	}
}

type directoryUserResponse struct {
	OK   bool           `json:"ok"`
	Item *directoryUser `json:"item"`
}

func (c *directoryClient) ResolveUser(ctx context.Context, externalID string) (*directoryUser, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, nil
	}

	endpoint := c.baseURL + "/me?externalId=" + url.QueryEscape(externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory status %d", resp.StatusCode)
	}

	var payload directoryUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode directory response: %w", err)
	}
	if !payload.OK {
		return nil, fmt.Errorf("directory lookup rejected")
	}
	return payload.Item, nil
}

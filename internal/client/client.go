// Package client talks to the assisted installer REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

const defaultTimeout = 2 * time.Minute

// APIError is returned for every non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(e.Body))
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// InventoryClient is a thin client over the /api/assisted-install/v2 endpoints.
type InventoryClient struct {
	baseURL      *url.URL
	tokens       oauth2.TokenSource
	offlineToken string
	tokenURL     string
	httpClient   *http.Client
}

// Option customises an InventoryClient.
type Option func(*InventoryClient)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(c *http.Client) Option {
	return func(ic *InventoryClient) {
		ic.httpClient = c
	}
}

// WithToken sets a bearer token sent with every API request.
func WithToken(token string) Option {
	return func(ic *InventoryClient) {
		if token != "" {
			ic.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		}
	}
}

// WithOfflineToken exchanges offlineToken at the sso tokenURL for access
// tokens, refreshed when they expire. An empty tokenURL uses the Red Hat sso.
func WithOfflineToken(offlineToken, tokenURL string) Option {
	return func(ic *InventoryClient) {
		ic.offlineToken = offlineToken
		ic.tokenURL = tokenURL
	}
}

// NewInventoryClient builds a client for the service at baseURL.
func NewInventoryClient(baseURL string, opts ...Option) (*InventoryClient, error) {
	if baseURL == "" {
		return nil, errors.New("service url is empty")
	}

	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse service url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("service url %q must be absolute", baseURL)
	}

	c := &InventoryClient{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.offlineToken != "" {
		c.tokens = c.offlineTokenSource()
	}

	return c, nil
}

func (c *InventoryClient) offlineTokenSource() oauth2.TokenSource {
	tokenURL := c.tokenURL
	if tokenURL == "" {
		tokenURL = consts.SSOTokenURL
	}

	cfg := &oauth2.Config{
		ClientID: consts.SSOClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)

	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: c.offlineToken})
}

// ClusterGet returns the cluster record including its hosts.
func (c *InventoryClient) ClusterGet(ctx context.Context, clusterID string) (*Cluster, error) {
	if err := validID("cluster", clusterID); err != nil {
		return nil, err
	}

	var cluster Cluster
	if err := c.do(ctx, http.MethodGet, "/clusters/"+clusterID, nil, &cluster); err != nil {
		return nil, err
	}

	return &cluster, nil
}

// GetClusterHosts returns the hosts bound to the cluster.
func (c *InventoryClient) GetClusterHosts(ctx context.Context, clusterID string) ([]Host, error) {
	cluster, err := c.ClusterGet(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	return cluster.Hosts, nil
}

// UpdateCluster patches the cluster with the set fields of params.
func (c *InventoryClient) UpdateCluster(ctx context.Context, clusterID string, params ClusterUpdateParams) (*Cluster, error) {
	if err := validID("cluster", clusterID); err != nil {
		return nil, err
	}

	var cluster Cluster
	if err := c.do(ctx, http.MethodPatch, "/clusters/"+clusterID, params, &cluster); err != nil {
		return nil, err
	}

	return &cluster, nil
}

// InstallCluster starts the installation of a ready cluster.
func (c *InventoryClient) InstallCluster(ctx context.Context, clusterID string) (*Cluster, error) {
	if err := validID("cluster", clusterID); err != nil {
		return nil, err
	}

	var cluster Cluster
	if err := c.do(ctx, http.MethodPost, "/clusters/"+clusterID+"/actions/install", nil, &cluster); err != nil {
		return nil, err
	}

	return &cluster, nil
}

// CreateInfraEnv registers a new infra-env.
func (c *InventoryClient) CreateInfraEnv(ctx context.Context, params InfraEnvCreateParams) (*InfraEnv, error) {
	if params.Name == "" {
		return nil, errors.New("infra-env name is required")
	}
	if params.ClusterID != "" {
		if err := validID("cluster", params.ClusterID); err != nil {
			return nil, err
		}
	}

	var infraEnv InfraEnv
	if err := c.do(ctx, http.MethodPost, "/infra-envs", params, &infraEnv); err != nil {
		return nil, err
	}

	resources.LogLevel("info", "Created infra-env %s (%s)", infraEnv.Name, infraEnv.ID)

	return &infraEnv, nil
}

// GetInfraEnv returns an infra-env.
func (c *InventoryClient) GetInfraEnv(ctx context.Context, infraEnvID string) (*InfraEnv, error) {
	if err := validID("infra-env", infraEnvID); err != nil {
		return nil, err
	}

	var infraEnv InfraEnv
	if err := c.do(ctx, http.MethodGet, "/infra-envs/"+infraEnvID, nil, &infraEnv); err != nil {
		return nil, err
	}

	return &infraEnv, nil
}

// UpdateHost patches a host of an infra-env.
func (c *InventoryClient) UpdateHost(ctx context.Context, infraEnvID, hostID string, params HostUpdateParams) (*Host, error) {
	if err := validID("infra-env", infraEnvID); err != nil {
		return nil, err
	}
	if err := validID("host", hostID); err != nil {
		return nil, err
	}

	var host Host
	path := fmt.Sprintf("/infra-envs/%s/hosts/%s", infraEnvID, hostID)
	if err := c.do(ctx, http.MethodPatch, path, params, &host); err != nil {
		return nil, err
	}

	return &host, nil
}

// InstallHost starts the installation of a single host, as done when adding
// workers to an installed cluster.
func (c *InventoryClient) InstallHost(ctx context.Context, infraEnvID, hostID string) (*Host, error) {
	if err := validID("infra-env", infraEnvID); err != nil {
		return nil, err
	}
	if err := validID("host", hostID); err != nil {
		return nil, err
	}

	var host Host
	path := fmt.Sprintf("/infra-envs/%s/hosts/%s/actions/install", infraEnvID, hostID)
	if err := c.do(ctx, http.MethodPost, path, nil, &host); err != nil {
		return nil, err
	}

	return &host, nil
}

// DownloadInfraEnvImage writes the discovery ISO of the infra-env to path.
func (c *InventoryClient) DownloadInfraEnvImage(ctx context.Context, infraEnvID, path string) (string, error) {
	infraEnv, err := c.GetInfraEnv(ctx, infraEnvID)
	if err != nil {
		return "", err
	}

	imageURL := infraEnv.DownloadURL
	if imageURL == "" {
		var presigned PresignedURL
		if err := c.do(ctx, http.MethodGet, "/infra-envs/"+infraEnvID+"/downloads/image-url", nil, &presigned); err != nil {
			return "", err
		}
		imageURL = presigned.URL
	}

	if imageURL == "" {
		return "", fmt.Errorf("infra-env %s has no image url", infraEnvID)
	}

	resources.LogLevel("info", "Downloading image %s to %s", imageURL, path)

	return path, c.download(ctx, imageURL, path)
}

// DownloadClusterLogs writes the cluster log bundle to path.
func (c *InventoryClient) DownloadClusterLogs(ctx context.Context, clusterID, path string) (string, error) {
	if err := validID("cluster", clusterID); err != nil {
		return "", err
	}

	return path, c.download(ctx, c.endpoint("/clusters/"+clusterID+"/logs?logs_type=all"), path)
}

func (c *InventoryClient) endpoint(path string) string {
	return c.baseURL.String() + consts.APIPrefix + path
}

func (c *InventoryClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req); err != nil {
		return err
	}

	resources.LogLevel("debug", "%s %s", method, req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	return nil
}

func (c *InventoryClient) download(ctx context.Context, rawURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	if err := c.authorize(req); err != nil {
		return err
	}

	// image downloads can take far longer than API calls.
	httpClient := *c.httpClient
	httpClient.Timeout = 0

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	written, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		if err := os.Remove(path); err != nil {
			resources.LogLevel("warn", "failed to remove partial download %s: %v", path, err)
		}
		if copyErr != nil {
			return fmt.Errorf("write %s: %w", path, copyErr)
		}

		return closeErr
	}

	resources.LogLevel("debug", "Downloaded %d bytes to %s", written, path)

	return nil
}

// authorize adds the bearer token to requests aimed at the service host only,
// presigned image urls must not carry it.
func (c *InventoryClient) authorize(req *http.Request) error {
	if c.tokens == nil || req.URL.Host != c.baseURL.Host {
		return nil
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}
	token.SetAuthHeader(req)

	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	return &APIError{
		Method:     resp.Request.Method,
		Path:       resp.Request.URL.Path,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

func validID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid %s id %q: %w", kind, id, err)
	}

	return nil
}

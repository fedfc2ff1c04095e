package updater

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	defaultAPIHost      = "https://api.github.com"
	defaultDownloadHost = "https://github.com"
	defaultUserAgent    = "hatch-updater"

	// maxReleaseBytes bounds the metadata response read into memory.
	maxReleaseBytes = 4 << 20
)

//go:embed schema/release.schema.json
var releaseSchemaBytes []byte

var (
	releaseSchema     *jsonschema.Schema
	releaseSchemaOnce sync.Once
	releaseSchemaErr  error
)

// ReleaseDescriptor is the latest remote release. DownloadURL is empty until
// the platform asset has been resolved.
type ReleaseDescriptor struct {
	RemoteID    int64
	Tag         string
	DownloadURL string
}

type releaseResponse struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
}

// Resolver queries the release metadata endpoint.
type Resolver struct {
	httpClient   *http.Client
	apiHost      string
	downloadHost string
	userAgent    string
	token        string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverHTTPClient sets a custom HTTP client (useful for testing).
func WithResolverHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.httpClient = c
	}
}

// WithAPIHost overrides the release metadata host.
func WithAPIHost(host string) ResolverOption {
	return func(r *Resolver) {
		r.apiHost = strings.TrimRight(host, "/")
	}
}

// WithDownloadHost overrides the host release assets are served from.
func WithDownloadHost(host string) ResolverOption {
	return func(r *Resolver) {
		r.downloadHost = strings.TrimRight(host, "/")
	}
}

// WithUserAgent sets the identifying header the release host requires.
func WithUserAgent(ua string) ResolverOption {
	return func(r *Resolver) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

// WithToken authenticates metadata requests for higher rate limits.
func WithToken(token string) ResolverOption {
	return func(r *Resolver) {
		r.token = token
	}
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		httpClient:   http.DefaultClient,
		apiHost:      defaultAPIHost,
		downloadHost: defaultDownloadHost,
		userAgent:    defaultUserAgent,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// APIHost returns the metadata host, used to derive the connectivity probe.
func (r *Resolver) APIHost() string {
	return r.apiHost
}

// FetchLatest fetches the latest release of owner/repo.
func (r *Resolver) FetchLatest(ctx context.Context, owner, repo string) (*ReleaseDescriptor, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.apiHost, owner, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, urlError(KindRemoteUnavailable, url, "creating request", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", r.userAgent)
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, urlError(KindRemoteUnavailable, url, "fetching release", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, urlError(KindRemoteUnavailable, url, "status 403, rate limit likely exceeded; set GITHUB_TOKEN for higher limits", nil)
	case resp.StatusCode != http.StatusOK:
		return nil, urlError(KindRemoteUnavailable, url, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReleaseBytes))
	if err != nil {
		return nil, urlError(KindRemoteUnavailable, url, "reading response body", err)
	}

	rel, err := parseRelease(body)
	if err != nil {
		return nil, urlError(KindMalformedRelease, url, "", err)
	}
	return rel, nil
}

// AssetURL builds the download URL of the archive published for suffix.
// Suffixes are normally configured with their ".zip" extension; one is added
// when missing.
func (r *Resolver) AssetURL(owner, repo, tag, suffix string) string {
	if !strings.HasSuffix(strings.ToLower(suffix), ".zip") {
		suffix += ".zip"
	}
	return fmt.Sprintf("%s/%s/%s/releases/download/%s/%s_%s_%s", r.downloadHost, owner, repo, tag, repo, tag, suffix)
}

// NeedsUpdate reports whether remote differs from the installed record. Ids
// are opaque, so a remote rollback is an update too.
func NeedsUpdate(local VersionRecord, remote *ReleaseDescriptor) bool {
	return local.ID != remote.RemoteID
}

func parseRelease(body []byte) (*ReleaseDescriptor, error) {
	schema, err := getReleaseSchema()
	if err != nil {
		return nil, fmt.Errorf("loading release schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing release JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("validating release JSON: %w", err)
	}

	var rel releaseResponse
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("decoding release JSON: %w", err)
	}
	return &ReleaseDescriptor{RemoteID: rel.ID, Tag: rel.TagName}, nil
}

// getReleaseSchema compiles the embedded release schema once.
func getReleaseSchema() (*jsonschema.Schema, error) {
	releaseSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(releaseSchemaBytes))
		if err != nil {
			releaseSchemaErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("release.schema.json", doc); err != nil {
			releaseSchemaErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		releaseSchema, releaseSchemaErr = c.Compile("release.schema.json")
		if releaseSchemaErr != nil {
			releaseSchemaErr = fmt.Errorf("compiling schema: %w", releaseSchemaErr)
		}
	})
	return releaseSchema, releaseSchemaErr
}

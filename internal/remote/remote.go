// Package remote checks skills installed from a catalog against their
// upstream versions. Remote state is advisory only: nothing here mutates
// the library.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/congwa/skillmgr/internal/logging"
	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/store"
)

const (
	// DefaultCatalogURL is the public skill catalog.
	DefaultCatalogURL = "https://skills.sh"
	defaultTimeout    = 15 * time.Second
)

// CatalogEntry is the upstream record for a published skill.
type CatalogEntry struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Fingerprint string `json:"fingerprint"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// Catalog fetches upstream skill records.
type Catalog interface {
	Lookup(ctx context.Context, name string) (*CatalogEntry, error)
}

// HTTPCatalog talks to a skills.sh-compatible catalog over HTTP.
type HTTPCatalog struct {
	baseURL    string
	httpClient *http.Client
}

// CatalogOption configures an HTTPCatalog.
type CatalogOption func(*HTTPCatalog)

// WithBaseURL sets a custom catalog base URL.
func WithBaseURL(u string) CatalogOption {
	return func(c *HTTPCatalog) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) CatalogOption {
	return func(c *HTTPCatalog) { c.httpClient = hc }
}

// NewHTTPCatalog creates a catalog client.
func NewHTTPCatalog(opts ...CatalogOption) *HTTPCatalog {
	c := &HTTPCatalog{
		baseURL:    DefaultCatalogURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the catalog entry for a skill name.
func (c *HTTPCatalog) Lookup(ctx context.Context, name string) (*CatalogEntry, error) {
	endpoint := fmt.Sprintf("%s/api/skills/%s", c.baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request for %q failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("skill %q not found in catalog", name)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog returned %d for %q: %s", resp.StatusCode, name, body)
	}

	var entry CatalogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode catalog entry for %q: %w", name, err)
	}
	return &entry, nil
}

// UpdateInfo is the upgrade posture of one installed skill.
type UpdateInfo struct {
	SkillID          string `json:"skill_id"`
	SkillName        string `json:"skill_name"`
	InstalledVersion string `json:"installed_version"`
	RemoteVersion    string `json:"remote_version"`
	HasUpdate        bool   `json:"has_update"`
	// LocallyModified means the library content no longer matches what was
	// originally installed, so a blind upgrade would lose local edits.
	LocallyModified bool   `json:"locally_modified"`
	Error           string `json:"error,omitempty"`
}

// Checker compares installed skills with their catalog entries.
type Checker struct {
	store   *store.Store
	catalog Catalog
}

// NewChecker creates a Checker.
func NewChecker(st *store.Store, catalog Catalog) *Checker {
	return &Checker{store: st, catalog: catalog}
}

// CheckUpdates inspects every skill with a remote source. Lookup failures
// are recorded per skill rather than aborting the whole check.
func (c *Checker) CheckUpdates(ctx context.Context) ([]UpdateInfo, error) {
	skills, err := c.store.ListSkills()
	if err != nil {
		return nil, err
	}

	var infos []UpdateInfo
	for i := range skills {
		skill := &skills[i]
		if !skill.Source.IsRemote() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return infos, err
		}
		infos = append(infos, c.checkOne(ctx, skill))
	}
	return infos, nil
}

func (c *Checker) checkOne(ctx context.Context, skill *model.Skill) UpdateInfo {
	info := UpdateInfo{SkillID: skill.ID, SkillName: skill.Name}

	src, err := c.store.GetSourceForSkill(skill.ID)
	if err != nil {
		info.Error = fmt.Sprintf("no install record: %v", err)
		return info
	}
	info.InstalledVersion = src.InstalledVersion
	info.LocallyModified = skill.Checksum != src.OriginalChecksum

	entry, err := c.catalog.Lookup(ctx, skill.Name)
	if err != nil {
		logging.Warn("catalog lookup failed", logging.Skill(skill.Name), logging.Err(err))
		info.Error = err.Error()
		return info
	}
	info.RemoteVersion = entry.Version
	info.HasUpdate = entry.Fingerprint != "" && entry.Fingerprint != src.OriginalChecksum

	return info
}

// Package apollo is a client for the Apollo.io B2B enrichment API: company
// resolution and decision-maker contact search.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the base URL for the Apollo v1 API.
const DefaultBaseURL = "https://api.apollo.io/v1"

// Apollo allows 3 requests per second on standard plans.
const (
	defaultRateLimit = rate.Limit(3)
	defaultBurst     = 3
)

// DefaultTitles is the curated decision-maker title list used when the
// caller supplies none.
var DefaultTitles = []string{
	"CEO", "Chief Executive Officer",
	"CTO", "Chief Technology Officer",
	"CMO", "Chief Marketing Officer",
	"CFO", "Chief Financial Officer",
	"COO", "Chief Operating Officer",
	"Founder", "Co-Founder",
	"VP", "Vice President",
	"Director", "Head of",
	"Manager",
}

// DefaultSeniorities is the seniority filter used when the caller supplies none.
var DefaultSeniorities = []string{"director", "vp", "c_suite", "founder"}

// Client defines the Apollo API operations used by the pipeline.
type Client interface {
	EnrichOrganization(ctx context.Context, req EnrichRequest) (*Organization, error)
	SearchContacts(ctx context.Context, req ContactSearchRequest) ([]ContactRecord, error)
	EnrichCompanyAndContacts(ctx context.Context, domain, name string, maxContacts int) (*Enrichment, error)
}

// EnrichRequest identifies a company for organization enrichment. Exactly
// one of Domain or Name is required; Domain is preferred.
type EnrichRequest struct {
	Domain string `json:"domain,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Organization is the canonical org record returned by Apollo.
type Organization struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Domain                 string   `json:"primary_domain,omitempty"`
	WebsiteURL             string   `json:"website_url,omitempty"`
	LinkedInURL            string   `json:"linkedin_url,omitempty"`
	Industry               string   `json:"industry,omitempty"`
	EstimatedNumEmployees  string   `json:"estimated_num_employees,omitempty"`
	EstimatedAnnualRevenue string   `json:"estimated_annual_revenue,omitempty"`
	FoundedYear            int      `json:"founded_year,omitempty"`
	ShortDescription       string   `json:"short_description,omitempty"`
	City                   string   `json:"city,omitempty"`
	State                  string   `json:"state,omitempty"`
	Country                string   `json:"country,omitempty"`
	Technologies           []string `json:"technology_names,omitempty"`
	Keywords               []string `json:"keywords,omitempty"`
}

// ContactSearchRequest filters a people search. One of OrgID, Domain or
// Name is required. Empty Titles/Seniorities fall back to the defaults.
type ContactSearchRequest struct {
	OrgID       string
	Domain      string
	Name        string
	Titles      []string
	Seniorities []string
	Limit       int
}

// ContactRecord is one person returned by a contact search. Only contacts
// with a verified email status are ever returned.
type ContactRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	FirstName    string   `json:"first_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
	Title        string   `json:"title,omitempty"`
	Email        string   `json:"email,omitempty"`
	EmailStatus  string   `json:"email_status,omitempty"`
	LinkedInURL  string   `json:"linkedin_url,omitempty"`
	PhoneNumbers []string `json:"phone_numbers,omitempty"`
	Seniority    string   `json:"seniority,omitempty"`
	Departments  []string `json:"departments,omitempty"`
}

// Enrichment is the combined org-plus-contacts result.
type Enrichment struct {
	Organization *Organization   `json:"company,omitempty"`
	Contacts     []ContactRecord `json:"contacts"`
	EnrichedAt   int64           `json:"enriched_at"`
}

// APIError is returned when Apollo responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apollo: HTTP %d: %s", e.StatusCode, e.Body)
}

// Doer abstracts the HTTP transport so callers can inject a retrying,
// rate-limited client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom transport.
func WithHTTPClient(d Doer) Option {
	return func(c *httpClient) {
		c.http = d
	}
}

// WithRateLimit overrides the default 3 rps budget.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    Doer
	limiter *rate.Limiter
}

// NewClient creates a new Apollo client. All requests share one token
// bucket: callers that exceed the budget block until a slot frees.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(defaultRateLimit, defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) EnrichOrganization(ctx context.Context, req EnrichRequest) (*Organization, error) {
	if req.Domain == "" && req.Name == "" {
		return nil, eris.New("apollo: either domain or name must be provided")
	}
	if req.Domain != "" {
		req.Domain = CleanDomain(req.Domain)
	}

	var resp struct {
		Organization *Organization `json:"organization"`
	}
	if err := c.post(ctx, "/organizations/enrich", req, &resp); err != nil {
		return nil, eris.Wrap(err, "apollo: enrich organization")
	}

	if resp.Organization == nil || resp.Organization.ID == "" {
		return nil, ErrNoOrganization
	}

	zap.L().Debug("apollo: organization enriched",
		zap.String("org_id", resp.Organization.ID),
		zap.String("name", resp.Organization.Name),
	)
	return resp.Organization, nil
}

// searchBody is the wire body for POST /mixed_people/search.
type searchBody struct {
	Page               int      `json:"page"`
	PerPage            int      `json:"per_page"`
	ContactEmailStatus []string `json:"contact_email_status"`
	PersonTitles       []string `json:"person_titles"`
	PersonSeniorities  []string `json:"person_seniorities"`
	OrganizationIDs    []string `json:"organization_ids,omitempty"`
	OrgDomains         []string `json:"q_organization_domains,omitempty"`
	OrgName            string   `json:"q_organization_name,omitempty"`
}

func (c *httpClient) SearchContacts(ctx context.Context, req ContactSearchRequest) ([]ContactRecord, error) {
	if req.OrgID == "" && req.Domain == "" && req.Name == "" {
		return nil, eris.New("apollo: either org id, domain or name must be provided")
	}

	titles := req.Titles
	if len(titles) == 0 {
		titles = DefaultTitles
	}
	seniorities := req.Seniorities
	if len(seniorities) == 0 {
		seniorities = DefaultSeniorities
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}

	body := searchBody{
		Page:               1,
		PerPage:            limit,
		ContactEmailStatus: []string{"verified"},
		PersonTitles:       titles,
		PersonSeniorities:  seniorities,
	}
	switch {
	case req.OrgID != "":
		body.OrganizationIDs = []string{req.OrgID}
	case req.Domain != "":
		body.OrgDomains = []string{CleanDomain(req.Domain)}
	default:
		body.OrgName = req.Name
	}

	var resp struct {
		People []struct {
			ContactRecord
			AccountLinks []struct {
				Type string `json:"type"`
				URL  string `json:"url"`
			} `json:"account_links,omitempty"`
		} `json:"people"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := c.post(ctx, "/mixed_people/search", body, &resp); err != nil {
		return nil, eris.Wrap(err, "apollo: search contacts")
	}

	contacts := make([]ContactRecord, 0, len(resp.People))
	for _, p := range resp.People {
		// The API is asked for verified emails only; enforce it anyway.
		if p.EmailStatus != "verified" {
			continue
		}
		rec := p.ContactRecord
		if rec.LinkedInURL == "" {
			for _, link := range p.AccountLinks {
				if link.Type == "linkedin_url" {
					rec.LinkedInURL = link.URL
					break
				}
			}
		}
		contacts = append(contacts, rec)
	}

	if len(contacts) == 0 {
		return nil, ErrNoContacts
	}

	zap.L().Debug("apollo: contacts found",
		zap.Int("count", len(contacts)),
		zap.Int("total_available", resp.Pagination.Total),
	)
	return contacts, nil
}

func (c *httpClient) EnrichCompanyAndContacts(ctx context.Context, domain, name string, maxContacts int) (*Enrichment, error) {
	org, err := c.EnrichOrganization(ctx, EnrichRequest{Domain: domain, Name: name})
	if err != nil {
		return nil, err
	}

	search := ContactSearchRequest{Limit: maxContacts}
	if org.ID != "" {
		search.OrgID = org.ID
	} else {
		search.Domain = domain
		search.Name = name
	}

	contacts, err := c.SearchContacts(ctx, search)
	if err != nil {
		// A resolved org with no reachable contacts is still useful data.
		if IsNoContacts(err) {
			return &Enrichment{
				Organization: org,
				Contacts:     nil,
				EnrichedAt:   time.Now().Unix(),
			}, ErrNoContacts
		}
		return nil, err
	}

	return &Enrichment{
		Organization: org,
		Contacts:     contacts,
		EnrichedAt:   time.Now().Unix(),
	}, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limiter wait")
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}

var (
	schemeRe = regexp.MustCompile(`^https?://`)
	wwwRe    = regexp.MustCompile(`^www\.`)
)

// CleanDomain reduces a URL to its bare domain: scheme, leading "www."
// and any path/query are stripped.
func CleanDomain(rawURL string) string {
	domain := schemeRe.ReplaceAllString(strings.TrimSpace(rawURL), "")
	domain = wwwRe.ReplaceAllString(domain, "")
	if idx := strings.IndexByte(domain, '/'); idx >= 0 {
		domain = domain[:idx]
	}
	return domain
}

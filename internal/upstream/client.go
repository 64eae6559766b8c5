package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors distinguishing credential problems from connectivity
// problems. Only ErrUnauthorized may tear down a session; ErrUnavailable is
// transient and leaves the last-known-good identity in place.
var (
	ErrUnauthorized = errors.New("upstream: unauthorized")
	ErrUnavailable  = errors.New("upstream: service unavailable")
	ErrRejected     = errors.New("upstream: request rejected")
)

// Client wraps interactions with the agency-portal API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client. The base URL is the API root, e.g.
// https://example.com/agencyportalapi/.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RequestOTP asks the upstream to send a one-time password to the email.
func (c *Client) RequestOTP(ctx context.Context, email string) (*Envelope, error) {
	return c.postForm(ctx, "/AgencyAuth/RequestOTP", "", map[string]string{
		"email": email,
	})
}

// SubmitOTP verifies the one-time password. On success the envelope's data
// field is the bearer token issued by the upstream.
func (c *Client) SubmitOTP(ctx context.Context, email, otp string) (string, error) {
	env, err := c.postForm(ctx, "/AgencyAuth/OTPSubmit", "", map[string]string{
		"Email": email,
		"OTP":   otp,
	})
	if err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(env.Data, &token); err != nil || token == "" {
		return "", fmt.Errorf("%w: missing token in OTP response", ErrRejected)
	}
	return token, nil
}

// AccessToken exchanges the bearer credential for the agency API grant that
// carries the caller's agency ID.
func (c *Client) AccessToken(ctx context.Context, token string) (*AccessGrant, error) {
	env, err := c.get(ctx, "/Agency/GetAgencyAPIAccessToken", token, nil)
	if err != nil {
		return nil, err
	}
	var grant AccessGrant
	if err := json.Unmarshal(env.Data, &grant); err != nil {
		return nil, fmt.Errorf("%w: decode access grant: %v", ErrRejected, err)
	}
	return &grant, nil
}

// AgencyByID fetches a single agency record.
func (c *Client) AgencyByID(ctx context.Context, token, agencyID string) (*Agency, error) {
	env, err := c.get(ctx, "/Agency/GetAgencyByID", token, url.Values{"agencyID": {agencyID}})
	if err != nil {
		return nil, err
	}
	var agency Agency
	if err := json.Unmarshal(env.Data, &agency); err != nil {
		return nil, fmt.Errorf("%w: decode agency: %v", ErrRejected, err)
	}
	return &agency, nil
}

// FetchProfile returns the User/GetUser payload for the bearer credential.
func (c *Client) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	env, err := c.get(ctx, "/User/GetUser", token, nil)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", ErrRejected, err)
	}
	return &profile, nil
}

// ListAgencies returns the raw agency listing envelope.
func (c *Client) ListAgencies(ctx context.Context, token string) (*Envelope, error) {
	return c.get(ctx, "/Agency/GetAllAgencies", token, nil)
}

// CreateAgency registers a new agency.
func (c *Client) CreateAgency(ctx context.Context, token string, in CreateAgencyInput) (*Envelope, error) {
	return c.postForm(ctx, "/Agency/CreateAgency", token, map[string]string{
		"Name":         in.Name,
		"Email":        in.Email,
		"Tel":          in.Tel,
		"FirstName":    in.FirstName,
		"LastName":     in.LastName,
		"AgencyTypeID": fmt.Sprintf("%d", in.AgencyTypeID),
	})
}

// AgentsByAgencyID returns the raw agent listing for one agency.
func (c *Client) AgentsByAgencyID(ctx context.Context, token, agencyID string) (*Envelope, error) {
	return c.get(ctx, "/Agent/GetAgentsByAgencyID", token, url.Values{"agencyID": {agencyID}})
}

// CreateAgent registers a new agent under an agency.
func (c *Client) CreateAgent(ctx context.Context, token string, in CreateAgentInput) (*Envelope, error) {
	return c.postForm(ctx, "/Agent/CreateAgent", token, map[string]string{
		"Email":     in.Email,
		"FirstName": in.FirstName,
		"LastName":  in.LastName,
		"AgencyID":  in.AgencyID,
	})
}

// ListProjects returns the raw project catalog used by the lead form.
func (c *Client) ListProjects(ctx context.Context, token string) (*Envelope, error) {
	return c.get(ctx, "/Project/GetProjects", token, nil)
}

// SaveLead forwards a captured lead to the upstream.
func (c *Client) SaveLead(ctx context.Context, token string, lead Lead) (*Envelope, error) {
	body, err := json.Marshal(lead)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Lead/SaveLead", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, token)
	return c.do(req)
}

// ListUsers returns the raw portal user listing.
func (c *Client) ListUsers(ctx context.Context, token string) (*Envelope, error) {
	return c.get(ctx, "/User/GetAllUsers", token, nil)
}

func (c *Client) get(ctx context.Context, path, token string, query url.Values) (*Envelope, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req, token)
	return c.do(req)
}

// postForm sends a multipart form, which is what the upstream expects on its
// mutating endpoints.
func (c *Client) postForm(ctx context.Context, path, token string, fields map[string]string) (*Envelope, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req, token)
	return c.do(req)
}

func (c *Client) authorize(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) do(req *http.Request) (*Envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrRejected, err)
	}
	if resp.StatusCode >= 400 || (!env.Success && env.Status != http.StatusOK && env.Status != 0) {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return &env, nil
}

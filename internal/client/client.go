// Package client is the HTTP client for the admin API, used by the CLI.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/scriptgate/scriptgate/internal/api"
)

type Client struct {
	BaseURL string
	APIKey  string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
	}
}

func (c *Client) do(method, path string, reqBody, result any) error {
	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *Client) CreateWebsite(name, siteURL string) (*api.WebsiteResponse, error) {
	var result api.WebsiteResponse
	err := c.do("POST", "/v1/websites", api.CreateWebsiteRequest{Name: name, URL: siteURL}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListWebsites() (*api.ListWebsitesResponse, error) {
	var result api.ListWebsitesResponse
	if err := c.do("GET", "/v1/websites", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GenerateToken(websiteID string, req api.GenerateTokenRequest) (*api.TokenResponse, error) {
	var result api.TokenResponse
	err := c.do("POST", "/v1/tokens/"+url.PathEscape(websiteID)+"/generate", req, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RegenerateToken(websiteID string, req api.RegenerateTokenRequest) (*api.RegenerateTokenResponse, error) {
	var result api.RegenerateTokenResponse
	err := c.do("POST", "/v1/tokens/"+url.PathEscape(websiteID)+"/regenerate", req, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RevokeToken(websiteID, reason, actor string) (*api.TokenResponse, error) {
	var result api.TokenResponse
	err := c.do("POST", "/v1/tokens/"+url.PathEscape(websiteID)+"/revoke",
		api.RevokeTokenRequest{Reason: reason, Actor: actor}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetToken(websiteID string) (*api.TokenWithReportResponse, error) {
	var result api.TokenWithReportResponse
	if err := c.do("GET", "/v1/tokens/"+url.PathEscape(websiteID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetHistory(websiteID string) (*api.HistoryResponse, error) {
	var result api.HistoryResponse
	if err := c.do("GET", "/v1/tokens/"+url.PathEscape(websiteID)+"/history", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpdateConfig(websiteID string, patch any) (*api.TokenResponse, error) {
	var result api.TokenResponse
	if err := c.do("PUT", "/v1/tokens/"+url.PathEscape(websiteID)+"/config", patch, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RotationCandidates(maxAgeDays int) (*api.RotationCandidatesResponse, error) {
	path := "/v1/tokens/rotation-candidates"
	if maxAgeDays > 0 {
		path += "?max_age_days=" + strconv.Itoa(maxAgeDays)
	}
	var result api.RotationCandidatesResponse
	if err := c.do("GET", path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("%s", errResp.Error)
}

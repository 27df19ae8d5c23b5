package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Connectors lists the names of the external integrations the backend
// offers.
func (c *Client) Connectors(ctx context.Context) ([]string, error) {
	var raw struct {
		Connectors []string `json:"connectors"`
	}
	if err := c.getJSON(ctx, "/connectors", &raw); err != nil {
		return nil, err
	}
	return raw.Connectors, nil
}

// ConnectorAuthURL requests an authorization URL for a connector. The caller
// presents the URL to the user (trill renders it as a QR code).
func (c *Client) ConnectorAuthURL(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/connectors/"+url.PathEscape(name)+"/auth", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var raw struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &raw); err != nil {
		return "", err
	}
	return raw.URL, nil
}

package main

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Client is an HTTP client for the feedback API.
type Client struct {
	addr  string
	token string
	http  *http.Client
}

// newClient creates a Client from the current config.
func newClient() *Client {
	addr := cfg.Address
	if v := os.Getenv("FEEDBACK_ADDR"); v != "" {
		addr = v
	}
	token := cfg.Token
	if v := os.Getenv("FEEDBACK_TOKEN"); v != "" {
		token = v
	}
	caCert := cfg.TLSCACert
	if v := os.Getenv("FEEDBACK_CACERT"); v != "" {
		caCert = v
	}

	tlsCfg := &tls.Config{}
	if caCert != "" {
		data, err := os.ReadFile(caCert)
		if err == nil {
			pool := x509.NewCertPool()
			pool.AppendCertsFromPEM(data)
			tlsCfg.RootCAs = pool
		}
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}

	return &Client{addr: addr, token: token, http: httpClient}
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.addr+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "feedbackctl")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.http.Do(req)
}

func feedbackPath(id string) string {
	return "/feedback?id=" + url.QueryEscape(id)
}

func (c *Client) submit(body any) (map[string]any, error) {
	resp, err := c.do(http.MethodPost, "/feedback", body)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

func (c *Client) get(id string) (map[string]any, error) {
	resp, err := c.do(http.MethodGet, feedbackPath(id), nil)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

func (c *Client) delete(id string) (map[string]any, error) {
	resp, err := c.do(http.MethodDelete, feedbackPath(id), nil)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

func parseResponse(resp *http.Response) (map[string]any, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, data)
	}
	if resp.StatusCode >= 400 {
		msg, _ := result["message"].(string)
		if msg == "" {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		if detail, ok := result["error"].(string); ok && detail != "" {
			return nil, fmt.Errorf("HTTP %d: %s: %s", resp.StatusCode, msg, detail)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
	return result, nil
}

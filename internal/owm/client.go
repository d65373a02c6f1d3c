package owm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tnphung/weather-app/internal/core"
)

const maxErrorBody = 512

// httpStatusError 上游非 200 响应
type httpStatusError struct {
	status int
	body   string
}

func (e httpStatusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("API returned status %d", e.status)
	}
	return fmt.Sprintf("API returned status %d: %s", e.status, e.body)
}

// Client OpenWeatherMap 当前天气接口
type Client struct {
	baseURL    string
	appID      string
	httpClient *http.Client
}

// NewClient 创建客户端，timeout 为 0 时默认 10s
func NewClient(baseURL, appID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "?"),
		appID:   appID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type currentWeather struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Fetch 返回 city 在 countryCode 国家的天气描述
//
// 上游 404 返回包装了 core.ErrCityNotFound 的错误。
func (c *Client) Fetch(ctx context.Context, city, countryCode string) (string, error) {
	params := url.Values{
		"q":     {city + "," + countryCode},
		"appid": {c.appID},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("fetch weather %s,%s: %w", city, countryCode, core.ErrCityNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("fetch weather: %w", httpStatusError{status: resp.StatusCode, body: truncateBody(body, 200)})
	}

	var result currentWeather
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode weather: %w", err)
	}
	if len(result.Weather) == 0 {
		return "", fmt.Errorf("decode weather: empty weather list")
	}
	return result.Weather[0].Description, nil
}

func truncateBody(b []byte, max int) string {
	if max <= 0 {
		return ""
	}
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

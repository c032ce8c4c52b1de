// Package steamweb fetches public profile and ban data from Steam's web
// services.
package steamweb

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"steamswitch/internal/model"
)

const (
	communityBaseURL = "https://steamcommunity.com"
	apiBaseURL       = "https://api.steampowered.com"

	// MaxBanBatch is the most ids GetPlayerBans accepts per request.
	MaxBanBatch = 100
)

type Client struct {
	httpClient    *http.Client
	communityBase string
	apiBase       string
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		httpClient:    httpClient,
		communityBase: communityBaseURL,
		apiBase:       apiBaseURL,
	}
}

type profileDocument struct {
	SteamID       string `xml:"steamID"`
	AvatarFull    string `xml:"avatarFull"`
	VACBanned     string `xml:"vacBanned"`
	TradeBanState string `xml:"tradeBanState"`
}

// FetchProfile reads the public profile of steamID. Any failure is reported
// as ok=false.
func (c *Client) FetchProfile(ctx context.Context, steamID string) (model.ProfileInfo, bool) {
	endpoint := c.communityBase + "/profiles/" + url.PathEscape(steamID) + "/?xml=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.ProfileInfo{}, false
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ProfileInfo{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.ProfileInfo{}, false
	}

	var doc profileDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return model.ProfileInfo{}, false
	}
	return model.ProfileInfo{
		AvatarURL:     strings.TrimSpace(doc.AvatarFull),
		DisplayName:   doc.SteamID,
		VACBanned:     strings.TrimSpace(doc.VACBanned) == "1",
		TradeBanState: strings.TrimSpace(doc.TradeBanState),
	}, true
}

type banResponse struct {
	Players []model.BanInfo `json:"players"`
}

// FetchPlayerBans looks up ban status for steamIDs, MaxBanBatch ids per
// request. An empty apiKey returns no results without calling out.
func (c *Client) FetchPlayerBans(ctx context.Context, apiKey string, steamIDs []string) ([]model.BanInfo, error) {
	apiKey = strings.TrimSpace(apiKey)
	out := []model.BanInfo{}
	if apiKey == "" || len(steamIDs) == 0 {
		return out, nil
	}

	for start := 0; start < len(steamIDs); start += MaxBanBatch {
		end := min(start+MaxBanBatch, len(steamIDs))
		players, err := c.fetchBanBatch(ctx, apiKey, steamIDs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, players...)
	}
	return out, nil
}

func (c *Client) fetchBanBatch(ctx context.Context, apiKey string, ids []string) ([]model.BanInfo, error) {
	q := url.Values{}
	q.Set("key", apiKey)
	q.Set("steamids", strings.Join(ids, ","))
	endpoint := c.apiBase + "/ISteamUser/GetPlayerBans/v1/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the API key; report only the cause.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("ban request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			return nil, fmt.Errorf("ban request failed: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("ban request failed: status %d: %s", resp.StatusCode, msg)
	}

	var raw banResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse ban response: %w", err)
	}
	return raw.Players, nil
}

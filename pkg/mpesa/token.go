package mpesa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// FetchToken exchanges the consumer key and secret for a bearer token.
func (c *Client) FetchToken(ctx context.Context) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.settings.BaseURL+tokenPath, nil)
	if err != nil {
		return nil, &TokenError{Err: err}
	}
	req.SetBasicAuth(c.settings.ConsumerKey, c.settings.ConsumerSecret)
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("access token request failed")
		return nil, &TokenError{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		eb := parseErrorBody(body)
		te := &TokenError{
			StatusCode:  resp.StatusCode,
			Code:        firstNonEmpty(eb.OAuthError, eb.ErrorCode),
			Description: firstNonEmpty(eb.OAuthDescription, eb.ErrorMessage),
			Body:        string(body),
		}
		c.log.Error().Int("status", resp.StatusCode).Str("body", te.Body).Msg("access token rejected")
		return nil, te
	}
	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &TokenError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	if out.AccessToken == "" {
		return nil, &TokenError{StatusCode: resp.StatusCode, Description: "empty access_token", Body: string(body)}
	}
	tok := &oauth2.Token{AccessToken: out.AccessToken, TokenType: "Bearer"}
	if secs, err := strconv.Atoi(strings.TrimSpace(out.ExpiresIn)); err == nil && secs > 0 {
		tok.Expiry = time.Now().Add(time.Duration(secs) * time.Second)
	}
	return tok, nil
}

// tokenSource adapts FetchToken to oauth2.TokenSource for ReuseTokenSource.
type tokenSource struct {
	client *Client
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	return s.client.FetchToken(context.Background())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// UserInfo 第三方返回的身份
type UserInfo struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*UserInfo, error)
}

type GoogleOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// 测试时替换
	Endpoint    *oauth2.Endpoint
	UserInfoURL string
	HTTPClient  *http.Client
}

type Google struct {
	conf        *oauth2.Config
	userInfoURL string
	client      *http.Client
}

func NewGoogle(o GoogleOpts) *Google {
	ep := endpoints.Google
	if o.Endpoint != nil {
		ep = *o.Endpoint
	}
	ui := o.UserInfoURL
	if ui == "" {
		ui = defaultUserInfoURL
	}
	return &Google{
		conf: &oauth2.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			RedirectURL:  o.RedirectURL,
			Endpoint:     ep,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: ui,
		client:      o.HTTPClient,
	}
}

func (g *Google) Name() string { return "google" }

func (g *Google) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *Google) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	if g.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	}
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var u googleUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if u.Sub == "" || u.Email == "" {
		return nil, errors.New("userinfo missing sub or email")
	}
	return &UserInfo{
		Provider:      g.Name(),
		Subject:       u.Sub,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          u.Name,
		Picture:       u.Picture,
	}, nil
}

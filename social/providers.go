package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"filiacao/config"
	"filiacao/models"
)

/************************************************
/**** MARK: GOOGLE ****/
/************************************************/

// GoogleProvider: escopos separados por espaço, troca via POST form.
type GoogleProvider struct {
	AuthURL    string
	TokenURL   string
	ProfileURL string
}

func (g *GoogleProvider) Name() string { return models.SOCIAL_PROVIDER_GOOGLE }

func (g *GoogleProvider) BuildAuthorizeURL(creds config.OAuthProvider, state string) string {
	base := defaultStr(g.AuthURL, "https://accounts.google.com/o/oauth2/v2/auth")
	q := url.Values{}
	q.Set("client_id", creds.ClientID)
	q.Set("redirect_uri", creds.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join([]string{"openid", "email", "profile"}, " "))
	q.Set("state", state)
	return base + "?" + q.Encode()
}

func (g *GoogleProvider) ExchangeCode(ctx context.Context, client *http.Client, creds config.OAuthProvider, code string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("redirect_uri", creds.RedirectURL)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	return postFormToken(ctx, client, defaultStr(g.TokenURL, "https://oauth2.googleapis.com/token"), form)
}

func (g *GoogleProvider) FetchProfile(ctx context.Context, client *http.Client, accessToken string) (Profile, error) {
	var parsed struct {
		ID   string `json:"id"`
		Sub  string `json:"sub"`
		Name string `json:"name"`
		Link string `json:"link"`
	}
	if err := getBearerJSON(ctx, client, defaultStr(g.ProfileURL, "https://www.googleapis.com/oauth2/v2/userinfo"), accessToken, &parsed); err != nil {
		return Profile{}, err
	}
	id := parsed.ID
	if id == "" {
		id = parsed.Sub
	}
	return Profile{ID: id, Name: parsed.Name, ProfileURL: parsed.Link}, nil
}

/************************************************
/**** MARK: FACEBOOK ****/
/************************************************/

// FacebookProvider: escopos separados por vírgula, troca de código via GET.
type FacebookProvider struct {
	AuthURL    string
	TokenURL   string
	ProfileURL string
}

func (f *FacebookProvider) Name() string { return models.SOCIAL_PROVIDER_FACEBOOK }

func (f *FacebookProvider) BuildAuthorizeURL(creds config.OAuthProvider, state string) string {
	base := defaultStr(f.AuthURL, "https://www.facebook.com/v20.0/dialog/oauth")
	q := url.Values{}
	q.Set("client_id", creds.ClientID)
	q.Set("redirect_uri", creds.RedirectURL)
	q.Set("scope", strings.Join([]string{"public_profile", "email"}, ","))
	q.Set("state", state)
	return base + "?" + q.Encode()
}

func (f *FacebookProvider) ExchangeCode(ctx context.Context, client *http.Client, creds config.OAuthProvider, code string) (Token, error) {
	base := defaultStr(f.TokenURL, "https://graph.facebook.com/v20.0/oauth/access_token")
	q := url.Values{}
	q.Set("client_id", creds.ClientID)
	q.Set("client_secret", creds.ClientSecret)
	q.Set("redirect_uri", creds.RedirectURL)
	q.Set("code", code)
	return getToken(ctx, client, base+"?"+q.Encode())
}

func (f *FacebookProvider) FetchProfile(ctx context.Context, client *http.Client, accessToken string) (Profile, error) {
	base := defaultStr(f.ProfileURL, "https://graph.facebook.com/v20.0/me")
	var parsed struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Link string `json:"link"`
	}
	u := base + "?fields=id,name,link&access_token=" + url.QueryEscape(accessToken)
	if err := getJSON(ctx, client, u, &parsed); err != nil {
		return Profile{}, err
	}
	return Profile{ID: parsed.ID, Name: parsed.Name, ProfileURL: parsed.Link}, nil
}

/************************************************
/**** MARK: INSTAGRAM ****/
/************************************************/

// InstagramProvider: troca via POST form e depois um segundo passo de token
// de longa duração (ig_exchange_token); o token curto expira em 1h.
type InstagramProvider struct {
	AuthURL     string
	TokenURL    string
	LongLiveURL string
	ProfileURL  string
}

func (i *InstagramProvider) Name() string { return models.SOCIAL_PROVIDER_INSTAGRAM }

func (i *InstagramProvider) BuildAuthorizeURL(creds config.OAuthProvider, state string) string {
	base := defaultStr(i.AuthURL, "https://api.instagram.com/oauth/authorize")
	q := url.Values{}
	q.Set("client_id", creds.ClientID)
	q.Set("redirect_uri", creds.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join([]string{"user_profile"}, ","))
	q.Set("state", state)
	return base + "?" + q.Encode()
}

func (i *InstagramProvider) ExchangeCode(ctx context.Context, client *http.Client, creds config.OAuthProvider, code string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("redirect_uri", creds.RedirectURL)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)

	short, err := postFormToken(ctx, client, defaultStr(i.TokenURL, "https://api.instagram.com/oauth/access_token"), form)
	if err != nil {
		return Token{}, err
	}

	// passo extra: troca o token curto pelo de longa duração
	base := defaultStr(i.LongLiveURL, "https://graph.instagram.com/access_token")
	q := url.Values{}
	q.Set("grant_type", "ig_exchange_token")
	q.Set("client_secret", creds.ClientSecret)
	q.Set("access_token", short.AccessToken)
	long, err := getToken(ctx, client, base+"?"+q.Encode())
	if err != nil {
		return Token{}, err
	}
	return long, nil
}

func (i *InstagramProvider) FetchProfile(ctx context.Context, client *http.Client, accessToken string) (Profile, error) {
	base := defaultStr(i.ProfileURL, "https://graph.instagram.com/me")
	var parsed struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	u := base + "?fields=id,username&access_token=" + url.QueryEscape(accessToken)
	if err := getJSON(ctx, client, u, &parsed); err != nil {
		return Profile{}, err
	}
	return Profile{ID: parsed.ID, Name: parsed.Username, ProfileURL: "https://instagram.com/" + parsed.Username}, nil
}

/************************************************
/**** MARK: LINKEDIN ****/
/************************************************/

// LinkedinProvider: escopos por espaço, troca via POST form.
type LinkedinProvider struct {
	AuthURL    string
	TokenURL   string
	ProfileURL string
}

func (l *LinkedinProvider) Name() string { return models.SOCIAL_PROVIDER_LINKEDIN }

func (l *LinkedinProvider) BuildAuthorizeURL(creds config.OAuthProvider, state string) string {
	base := defaultStr(l.AuthURL, "https://www.linkedin.com/oauth/v2/authorization")
	q := url.Values{}
	q.Set("client_id", creds.ClientID)
	q.Set("redirect_uri", creds.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join([]string{"openid", "profile"}, " "))
	q.Set("state", state)
	return base + "?" + q.Encode()
}

func (l *LinkedinProvider) ExchangeCode(ctx context.Context, client *http.Client, creds config.OAuthProvider, code string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("redirect_uri", creds.RedirectURL)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	return postFormToken(ctx, client, defaultStr(l.TokenURL, "https://www.linkedin.com/oauth/v2/accessToken"), form)
}

func (l *LinkedinProvider) FetchProfile(ctx context.Context, client *http.Client, accessToken string) (Profile, error) {
	var parsed struct {
		Sub  string `json:"sub"`
		Name string `json:"name"`
	}
	if err := getBearerJSON(ctx, client, defaultStr(l.ProfileURL, "https://api.linkedin.com/v2/userinfo"), accessToken, &parsed); err != nil {
		return Profile{}, err
	}
	return Profile{ID: parsed.Sub, Name: parsed.Name}, nil
}

/************************************************
/**** MARK: HTTP HELPERS ****/
/************************************************/

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func postFormToken(ctx context.Context, client *http.Client, tokenURL string, form url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doToken(client, req)
}

func getToken(ctx context.Context, client *http.Client, fullURL string) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Token{}, err
	}
	return doToken(client, req)
}

func doToken(client *http.Client, req *http.Request) (Token, error) {
	resp, err := client.Do(req)
	if err != nil {
		return Token{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Token{}, fmt.Errorf("token exchange: status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Token{}, err
	}
	if parsed.AccessToken == "" {
		return Token{}, fmt.Errorf("token exchange: resposta sem access_token")
	}
	return Token{AccessToken: parsed.AccessToken, ExpiresIn: parsed.ExpiresIn}, nil
}

func getJSON(ctx context.Context, client *http.Client, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	return doJSON(client, req, out)
}

func getBearerJSON(ctx context.Context, client *http.Client, fullURL, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return doJSON(client, req, out)
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("profile fetch: status=%d body=%s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func defaultStr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"filiacao/config"
)

func testCreds() config.OAuthProvider {
	return config.OAuthProvider{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURL:  "https://filiacao.example.org/social/callback",
	}
}

func TestAuthorizeURLScopeSeparators(t *testing.T) {
	creds := testCreds()
	state := "st-123"

	t.Run("google usa espaço", func(t *testing.T) {
		raw := (&GoogleProvider{}).BuildAuthorizeURL(creds, state)
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		scope := u.Query().Get("scope")
		if !strings.Contains(scope, " ") || strings.Contains(scope, ",") {
			t.Fatalf("scope=%q", scope)
		}
		if u.Query().Get("state") != state {
			t.Fatal("state ausente")
		}
	})

	t.Run("facebook usa vírgula", func(t *testing.T) {
		raw := (&FacebookProvider{}).BuildAuthorizeURL(creds, state)
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		scope := u.Query().Get("scope")
		if !strings.Contains(scope, ",") || strings.Contains(scope, " ") {
			t.Fatalf("scope=%q", scope)
		}
	})
}

func TestGoogleExchangeUsesPostForm(t *testing.T) {
	var gotMethod, gotGrant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		r.ParseForm()
		gotGrant = r.PostFormValue("grant_type")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-g", "expires_in": 3600})
	}))
	defer srv.Close()

	p := &GoogleProvider{TokenURL: srv.URL}
	tok, err := p.ExchangeCode(context.Background(), srv.Client(), testCreds(), "code-1")
	if err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPost || gotGrant != "authorization_code" {
		t.Fatalf("method=%s grant=%s", gotMethod, gotGrant)
	}
	if tok.AccessToken != "tok-g" || tok.ExpiresIn != 3600 {
		t.Fatalf("tok=%+v", tok)
	}
}

func TestFacebookExchangeUsesGet(t *testing.T) {
	var gotMethod, gotCode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCode = r.URL.Query().Get("code")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-f"})
	}))
	defer srv.Close()

	p := &FacebookProvider{TokenURL: srv.URL}
	tok, err := p.ExchangeCode(context.Background(), srv.Client(), testCreds(), "code-2")
	if err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodGet || gotCode != "code-2" {
		t.Fatalf("method=%s code=%s", gotMethod, gotCode)
	}
	if tok.AccessToken != "tok-f" {
		t.Fatalf("tok=%+v", tok)
	}
}

func TestInstagramLongLivedExchange(t *testing.T) {
	var longLiveCalled bool
	shortSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-curto"})
	}))
	defer shortSrv.Close()

	longSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		longLiveCalled = true
		if r.URL.Query().Get("grant_type") != "ig_exchange_token" {
			t.Errorf("grant_type=%s", r.URL.Query().Get("grant_type"))
		}
		if r.URL.Query().Get("access_token") != "tok-curto" {
			t.Errorf("access_token=%s", r.URL.Query().Get("access_token"))
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-longo", "expires_in": 5184000})
	}))
	defer longSrv.Close()

	p := &InstagramProvider{TokenURL: shortSrv.URL, LongLiveURL: longSrv.URL}
	tok, err := p.ExchangeCode(context.Background(), http.DefaultClient, testCreds(), "code-3")
	if err != nil {
		t.Fatal(err)
	}
	if !longLiveCalled {
		t.Fatal("long-lived exchange not called")
	}
	if tok.AccessToken != "tok-longo" {
		t.Fatalf("tok=%+v", tok)
	}
}

func TestExchangeFailureSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := &LinkedinProvider{TokenURL: srv.URL}
	if _, err := p.ExchangeCode(context.Background(), srv.Client(), testCreds(), "code-x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLinkedinProfileUsesBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-l" {
			t.Errorf("authorization=%q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{"sub": "u-9", "name": "Lia"})
	}))
	defer srv.Close()

	p := &LinkedinProvider{ProfileURL: srv.URL}
	profile, err := p.FetchProfile(context.Background(), srv.Client(), "tok-l")
	if err != nil {
		t.Fatal(err)
	}
	if profile.ID != "u-9" || profile.Name != "Lia" {
		t.Fatalf("profile=%+v", profile)
	}
}

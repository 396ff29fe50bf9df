package google

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthConfig_ClientConfig(t *testing.T) {
	if _, err := (OAuthConfig{}).ClientConfig(); err == nil || !strings.Contains(err.Error(), "missing oauth client") {
		t.Fatalf("expected missing client error, got %v", err)
	}
	if _, err := (OAuthConfig{ClientJSON: "invalid-json"}).ClientConfig(); err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Fatalf("expected oauth config error, got %v", err)
	}
	cfg, err := OAuthConfig{ClientJSON: testClientJSON}.ClientConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClientID != "test" {
		t.Errorf("expected client id 'test', got %q", cfg.ClientID)
	}
}

func TestOAuthConfig_TokenFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := SaveToken(path, &oauth2.Token{AccessToken: "test", RefreshToken: "refresh"}); err != nil {
		t.Fatalf("save token: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	tok, err := OAuthConfig{TokenFile: path}.Token()
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	if tok.AccessToken != "test" || tok.RefreshToken != "refresh" {
		t.Errorf("unexpected token: %+v", tok)
	}

	if _, err := (OAuthConfig{}).Token(); err == nil || !strings.Contains(err.Error(), "missing oauth token") {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if _, err := (OAuthConfig{TokenJSON: "{"}).Token(); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNew_OAuthWithoutToken(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{
		SpreadsheetID: "sheet",
		OAuth:         OAuthConfig{ClientJSON: testClientJSON},
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing oauth token") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestAuthorize_ExchangesCode(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "the-code" {
			http.Error(w, "bad code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"Bearer","refresh_token":"r","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	cfg := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example/auth",
			TokenURL:  tokenSrv.URL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pr, pw := net.Pipe()
	defer pr.Close()

	type outcome struct {
		tok *oauth2.Token
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		tok, err := authorize(ctx, cfg, ln, pw)
		_ = pw.Close()
		done <- outcome{tok, err}
	}()

	sc := bufio.NewScanner(pr)
	var consent *url.URL
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "https://") {
			consent, err = url.Parse(sc.Text())
			if err != nil {
				t.Fatal(err)
			}
			break
		}
	}
	if consent == nil {
		t.Fatal("consent URL not printed")
	}
	go func() {
		// drain whatever else is written
		for sc.Scan() {
		}
	}()

	q := consent.Query()
	callback := q.Get("redirect_uri") + "?code=the-code&state=" + url.QueryEscape(q.Get("state"))
	resp, err := http.Get(callback)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status %d", resp.StatusCode)
	}

	got := <-done
	if got.err != nil {
		t.Fatalf("authorize: %v", got.err)
	}
	if got.tok.AccessToken != "abc" || got.tok.RefreshToken != "r" {
		t.Errorf("unexpected token: %+v", got.tok)
	}
}

func TestAuthorize_RejectsStateMismatch(t *testing.T) {
	cfg := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example/auth", TokenURL: "http://127.0.0.1:1/token"}}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := authorize(ctx, cfg, ln, &strings.Builder{})
		done <- err
	}()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + ln.Addr().String() + "/callback?code=x&state=forged")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if err := <-done; err == nil || !strings.Contains(err.Error(), "state mismatch") {
		t.Fatalf("expected state mismatch, got %v", err)
	}
}

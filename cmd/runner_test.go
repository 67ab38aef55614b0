package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
	tu "github.com/desertthunder/reelx/internal/testing"
	"github.com/urfave/cli/v3"
)

// fixture runs commands against a fake backend with an in-memory session.
type fixture struct {
	backend *tu.Backend
	kv      *session.MemoryKV
	out     *bytes.Buffer
	runner  *Runner
	opened  []string
}

func newFixture(t *testing.T, input string, cred ...string) *fixture {
	t.Helper()
	f := &fixture{backend: tu.NewBackend(t), kv: session.NewMemoryKV(), out: &bytes.Buffer{}}
	if len(cred) > 0 {
		f.kv.Put(session.AccessTokenKey, cred[0])
	}
	if len(cred) > 1 {
		f.kv.Put(session.RefreshTokenKey, cred[1])
	}

	config := shared.DefaultConfig()
	config.API.BaseURL = f.backend.URL
	config.API.RateLimit = 0
	config.Auth.CallbackAddr = "127.0.0.1:0"

	f.runner = NewRunner(RunnerOpts{
		Config:     config,
		Logger:     shared.NopLogger(),
		Output:     f.out,
		Input:      strings.NewReader(input),
		HTTPClient: f.backend.Client(),
		KV:         f.kv,
		OpenBrowser: func(u string) error {
			f.opened = append(f.opened, u)
			return nil
		},
	})
	return f
}

func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "missing.toml")
	return newApp(f.runner).Run(context.Background(), append([]string{"reelx", "--config", missing}, args...))
}

func (f *fixture) token(t *testing.T, key string) string {
	t.Helper()
	v, err := f.kv.Get(key)
	if err != nil {
		return ""
	}
	return v
}

func noopCommand() *cli.Command {
	return &cli.Command{Name: "noop", Action: func(context.Context, *cli.Command) error { return nil }}
}

func pageOf(r *http.Request, pages map[string]any) any {
	page := r.URL.Query().Get("page")
	if p, ok := pages[page]; ok {
		return p
	}
	return map[string]any{"results": []any{}}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			kv := session.NewMemoryKV()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				KV:         kv,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.kv != kv {
				t.Error("expected kv to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses configured timeout", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config})
			if runner.httpClient == nil {
				t.Fatal("expected httpClient to be set")
			}
			if runner.httpClient.Timeout != config.API.Timeout() {
				t.Errorf("expected timeout %v, got %v", config.API.Timeout(), runner.httpClient.Timeout)
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("does not connect eagerly", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.client != nil || runner.db != nil {
				t.Error("expected no client before the first command")
			}
			if err := runner.Close(); err != nil {
				t.Errorf("expected Close without a database to succeed, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "}\n") {
				t.Errorf("expected output to end with a single newline, got %q", result)
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("done"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "\ndone\n" {
				t.Errorf("expected %q, got %q", "\ndone\n", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("prompt", func(t *testing.T) {
		t.Run("reads a trimmed line", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Input: strings.NewReader("  alice \nrest\n")})

			got, err := runner.prompt("Username")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != "alice" {
				t.Errorf("expected alice, got %q", got)
			}
			if output.String() != "Username: " {
				t.Errorf("expected label to be printed, got %q", output.String())
			}
		})

		t.Run("accepts a final line without newline", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Input: strings.NewReader("123456")})
			if got, err := runner.prompt("Code"); err != nil || got != "123456" {
				t.Errorf("expected 123456, got %q (%v)", got, err)
			}
		})

		t.Run("fails on empty input", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Input: strings.NewReader("")})
			if _, err := runner.prompt("Password"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		names := []string{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
				continue
			}
			names = append(names, cmd.Name)
		}
		for _, want := range []string{"auth", "trending", "discover", "search", "detail", "watchlist", "room"} {
			if !slices.Contains(names, want) {
				t.Errorf("expected %s command, got %v", want, names)
			}
		}
	})

	t.Run("failure keeps cause and shows user message", func(t *testing.T) {
		err := failure("failed to vote", shared.ErrSessionExpired)
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Error("expected cause to be preserved")
		}
		if err.Error() != "failed to vote: "+shared.ErrSessionExpired.Error() {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("parseVote", func(t *testing.T) {
		tests := []struct {
			in   string
			want int
		}{
			{"up", 1}, {"+1", 1}, {"DOWN", -1}, {"-1", -1}, {"clear", 0}, {"0", 0},
		}
		for _, tt := range tests {
			got, err := parseVote(tt.in)
			if err != nil || got != tt.want {
				t.Errorf("parseVote(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
			}
		}
		if _, err := parseVote("sideways"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("reads the config file and applies its log level", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		content := "[api]\nbase_url = \"http://example.test\"\ntimeout_seconds = 3\n\n[logging]\nlevel = \"error\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		app := newApp(runner)
		app.Commands = append(app.Commands, noopCommand())
		if err := app.Run(context.Background(), []string{"reelx", "--config", path, "noop"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if runner.config.API.BaseURL != "http://example.test" {
			t.Errorf("expected base url from file, got %s", runner.config.API.BaseURL)
		}
		if runner.httpClient.Timeout.Seconds() != 3 {
			t.Errorf("expected 3s timeout, got %v", runner.httpClient.Timeout)
		}
		if runner.configPath != path {
			t.Errorf("expected configPath %s, got %s", path, runner.configPath)
		}
		if runner.logger.GetLevel().String() != "error" {
			t.Errorf("expected error level, got %s", runner.logger.GetLevel())
		}
	})

	t.Run("rejects an invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[api]\nbase_url = \"not a url\"\n"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		app := newApp(runner)
		app.Commands = append(app.Commands, noopCommand())
		err := app.Run(context.Background(), []string{"reelx", "--config", path, "noop"})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	wd := tu.MustGetwd(t)
	tu.MustChdir(t, dir)
	t.Cleanup(func() { tu.MustChdir(t, wd) })

	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: out, Logger: shared.NopLogger()})
	path := filepath.Join(dir, "config.toml")

	if err := newApp(runner).Run(context.Background(), []string{"reelx", "--config", path, "setup"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, path)
	tu.AssertFileExists(t, filepath.Join(dir, "reelx.db"))
	if !strings.Contains(out.String(), "Database ready") {
		t.Errorf("expected database message, got %q", out.String())
	}

	out.Reset()
	runner = NewRunner(RunnerOpts{Output: out, Logger: shared.NopLogger()})
	defer runner.Close()
	if err := newApp(runner).Run(context.Background(), []string{"reelx", "--config", path, "setup", "cache"}); err != nil {
		t.Fatalf("cache stats failed: %v", err)
	}
	if !strings.Contains(out.String(), "Cached details: 0") {
		t.Errorf("expected empty cache, got %q", out.String())
	}
}

func TestCatalogCommands(t *testing.T) {
	t.Run("trending merges pages without duplicates", func(t *testing.T) {
		f := newFixture(t, "", "a1", "r1")
		f.backend.Handle("GET /api/movies/trending/", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, pageOf(r, map[string]any{
				"1": map[string]any{"results": []map[string]any{{"id": 1, "title": "Heat"}, {"id": 2, "title": "Thief"}}, "total_pages": 2},
				"2": map[string]any{"results": []map[string]any{{"id": 2, "title": "Thief"}, {"id": 3, "title": "Ronin"}}, "total_pages": 2},
			}))
		})

		if err := f.run(t, "trending", "--pages", "3"); err != nil {
			t.Fatalf("trending failed: %v", err)
		}

		out := f.out.String()
		if !strings.Contains(out, "Trending: 3 results") {
			t.Errorf("expected 3 merged results, got %q", out)
		}
		if strings.Index(out, "Heat") > strings.Index(out, "Ronin") {
			t.Errorf("expected page order to be kept, got %q", out)
		}
		if hits := f.backend.Hits("GET /api/movies/trending/"); hits != 2 {
			t.Errorf("expected 2 requests for a 2-page listing, got %d", hits)
		}
	})

	t.Run("trending retries a failed page", func(t *testing.T) {
		f := newFixture(t, "")
		calls := 0
		f.backend.Handle("GET /api/movies/now-playing/", func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				tu.WriteJSON(w, http.StatusBadGateway, map[string]string{"detail": "upstream down"})
				return
			}
			tu.WriteJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{{"id": 7, "title": "Sinners"}}, "total_pages": 1})
		})

		if err := f.run(t, "trending", "--now-playing", "--format", "json"); err != nil {
			t.Fatalf("now playing failed: %v", err)
		}
		if !strings.Contains(f.out.String(), `"title": "Sinners"`) {
			t.Errorf("expected JSON results, got %q", f.out.String())
		}
	})

	t.Run("discover requires a mood or category", func(t *testing.T) {
		f := newFixture(t, "")
		if err := f.run(t, "discover"); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("discover sends normalized filters", func(t *testing.T) {
		f := newFixture(t, "")
		var query url.Values
		f.backend.Handle("GET /api/movies/discover/", func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query()
			tu.WriteJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{{"id": 4, "title": "Paddington"}}})
		})

		err := f.run(t, "discover", "--mood", "cozy", "--provider", "9", "--provider", "8", "--type", "Movie", "--region", "gb")
		if err != nil {
			t.Fatalf("discover failed: %v", err)
		}
		if query.Get("mood") != "cozy" || query.Get("providers") != "8,9" || query.Get("region") != "GB" || query.Get("types") != "movie" {
			t.Errorf("unexpected discovery query %v", query)
		}
		if !strings.Contains(f.out.String(), "Discover: cozy: 1 results") {
			t.Errorf("unexpected output %q", f.out.String())
		}
	})

	t.Run("search unions titles and people", func(t *testing.T) {
		f := newFixture(t, "")
		f.backend.JSON("GET /api/movies/search/", http.StatusOK, map[string]any{
			"results": []map[string]any{{"id": 1, "title": "Heat"}},
		})
		f.backend.JSON("GET /api/movies/search/person/", http.StatusOK, map[string]any{
			"results": []map[string]any{{"id": 1, "title": "Heat"}, {"id": 9, "title": "Collateral"}},
		})

		if err := f.run(t, "search", "michael", "mann"); err != nil {
			t.Fatalf("search failed: %v", err)
		}

		out := f.out.String()
		if !strings.Contains(out, `Search "michael mann": 2 results`) {
			t.Errorf("expected 2 combined results, got %q", out)
		}
		if strings.Index(out, "Heat") > strings.Index(out, "Collateral") {
			t.Errorf("expected title matches first, got %q", out)
		}
	})

	t.Run("search rejects a short query", func(t *testing.T) {
		f := newFixture(t, "")
		if err := f.run(t, "search", "a"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("detail export writes markdown and poster", func(t *testing.T) {
		f := newFixture(t, "")
		f.backend.Handle("GET /api/movies/42/", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, map[string]any{
				"id":          42,
				"title":       "Heat",
				"poster_path": f.backend.URL + "/poster.jpg",
				"runtime":     170,
			})
		})
		f.backend.Handle("GET /poster.jpg", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg"))
		})

		dir := filepath.Join(t.TempDir(), "heat")
		if err := f.run(t, "detail", "42", "--export", dir); err != nil {
			t.Fatalf("detail failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(dir, "README.md"))
		tu.AssertFileExists(t, filepath.Join(dir, "poster.jpg"))
		if readme := tu.MustReadFile(t, filepath.Join(dir, "README.md")); !strings.Contains(readme, "Heat") {
			t.Errorf("expected title in README, got %q", readme)
		}
	})

	t.Run("output flag writes to a file", func(t *testing.T) {
		f := newFixture(t, "")
		f.backend.JSON("GET /api/movies/trending/", http.StatusOK, map[string]any{
			"results": []map[string]any{{"id": 1, "title": "Heat"}},
		})

		path := filepath.Join(t.TempDir(), "trending.csv")
		if err := f.run(t, "trending", "--format", "csv", "--output", path); err != nil {
			t.Fatalf("trending failed: %v", err)
		}
		if f.out.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", f.out.String())
		}
		if csv := tu.MustReadFile(t, path); !strings.HasPrefix(csv, "ID,Type,Title") {
			t.Errorf("expected CSV header, got %q", csv)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("login stores the credential", func(t *testing.T) {
		f := newFixture(t, "")
		f.backend.Handle("POST /api/auth/token/", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Error("expected login to be anonymous")
			}
			tu.WriteJSON(w, http.StatusOK, map[string]string{"access": "a1", "refresh": "r1"})
		})

		if err := f.run(t, "auth", "login", "-u", "alice", "--password", "pw"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if f.token(t, session.AccessTokenKey) != "a1" || f.token(t, session.RefreshTokenKey) != "r1" {
			t.Error("expected both tokens to be stored")
		}
		if !strings.Contains(f.out.String(), "Logged in as alice") {
			t.Errorf("unexpected output %q", f.out.String())
		}
	})

	t.Run("login prompts for the second factor", func(t *testing.T) {
		f := newFixture(t, "pw\n654321\n")
		f.backend.JSON("POST /api/auth/token/", http.StatusOK, map[string]any{"mfa_required": true, "mfa_token": "m1", "methods": []string{"totp"}})
		f.backend.Handle("POST /api/auth/mfa/verify/", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			tu.DecodeBody(t, r, &body)
			if body["code"] != "654321" || body["mfa_token"] != "m1" {
				tu.WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad code"})
				return
			}
			tu.WriteJSON(w, http.StatusOK, map[string]string{"access": "a2", "refresh": "r2"})
		})

		if err := f.run(t, "auth", "login", "-u", "bob"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(f.out.String(), "Verification code (totp): ") {
			t.Errorf("expected code prompt, got %q", f.out.String())
		}
		if f.token(t, session.AccessTokenKey) != "a2" {
			t.Error("expected verified credential to be stored")
		}
	})

	t.Run("login without a second factor code fails", func(t *testing.T) {
		f := newFixture(t, "")
		f.backend.JSON("POST /api/auth/token/", http.StatusOK, map[string]any{"mfa_required": true, "mfa_token": "m1"})

		err := f.run(t, "auth", "login", "-u", "bob", "--password", "pw")
		if !errors.Is(err, shared.ErrMFARequired) {
			t.Fatalf("expected ErrMFARequired, got %v", err)
		}
		if f.backend.Hits("POST /api/auth/mfa/verify/") != 0 {
			t.Error("verify should not be called without a code")
		}
		if f.token(t, session.AccessTokenKey) != "" {
			t.Error("nothing should be stored")
		}
	})

	t.Run("rejected password stores nothing", func(t *testing.T) {
		f := newFixture(t, "")
		f.backend.JSON("POST /api/auth/token/", http.StatusUnauthorized, map[string]string{"detail": "No active account found"})

		err := f.run(t, "auth", "login", "-u", "alice", "--password", "wrong")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if f.backend.Hits("POST /api/auth/token/refresh/") != 0 {
			t.Error("expected no refresh for an anonymous request")
		}
		if f.token(t, session.AccessTokenKey) != "" {
			t.Error("expected no credential")
		}
	})

	t.Run("browser login receives the credential", func(t *testing.T) {
		f := newFixture(t, "")
		f.runner.openURL = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			callback := u.Query().Get("redirect_uri") + "?" + url.Values{
				"state":   {u.Query().Get("state")},
				"access":  {"b1"},
				"refresh": {"b2"},
			}.Encode()
			resp, err := http.Get(callback)
			if err != nil {
				return err
			}
			return resp.Body.Close()
		}

		if err := f.run(t, "auth", "login", "--browser"); err != nil {
			t.Fatalf("browser login failed: %v", err)
		}
		if f.token(t, session.AccessTokenKey) != "b1" || f.token(t, session.RefreshTokenKey) != "b2" {
			t.Error("expected browser credential to be stored")
		}
		if !strings.Contains(f.out.String(), "Finish signing in at:") {
			t.Errorf("expected login URL to be printed, got %q", f.out.String())
		}
	})

	t.Run("status and logout", func(t *testing.T) {
		f := newFixture(t, "", "a1", "r1")

		if err := f.run(t, "auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(f.out.String(), "Logged in") || !strings.Contains(f.out.String(), "Refresh token: stored") {
			t.Errorf("unexpected status %q", f.out.String())
		}

		f.out.Reset()
		if err := f.run(t, "auth", "logout"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		f.out.Reset()
		if err := f.run(t, "auth", "status", "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(f.out.String(), `"authenticated": false`) {
			t.Errorf("expected logged out status, got %q", f.out.String())
		}
	})

	t.Run("status check refreshes an expired token", func(t *testing.T) {
		f := newFixture(t, "", "old", "r1")
		f.backend.Handle("GET /api/watchlists/", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer new" {
				tu.WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
				return
			}
			tu.WriteJSON(w, http.StatusOK, []any{})
		})
		f.backend.JSON("POST /api/auth/token/refresh/", http.StatusOK, map[string]string{"access": "new", "refresh": "r2"})

		if err := f.run(t, "auth", "status", "--check"); err != nil {
			t.Fatalf("status check failed: %v", err)
		}
		if f.token(t, session.AccessTokenKey) != "new" || f.token(t, session.RefreshTokenKey) != "r2" {
			t.Error("expected refreshed credential to be stored")
		}
		if !strings.Contains(f.out.String(), "session accepted") {
			t.Errorf("unexpected output %q", f.out.String())
		}
	})

	t.Run("failed refresh logs out and points at login", func(t *testing.T) {
		f := newFixture(t, "", "old", "stale")
		f.runner.config.Auth.OpenBrowser = true
		f.backend.JSON("GET /api/watchlists/", http.StatusUnauthorized, map[string]string{"detail": "token expired"})
		f.backend.JSON("POST /api/auth/token/refresh/", http.StatusUnauthorized, map[string]string{"detail": "token blacklisted"})

		err := f.run(t, "watchlist", "list")
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
		if f.token(t, session.AccessTokenKey) != "" || f.token(t, session.RefreshTokenKey) != "" {
			t.Error("expected the session to be cleared")
		}
		if !strings.Contains(f.out.String(), "Your session has expired") {
			t.Errorf("expected expiry notice, got %q", f.out.String())
		}
		if len(f.opened) != 1 || f.opened[0] != f.runner.config.Auth.LoginURL {
			t.Errorf("expected login page to be opened once, got %v", f.opened)
		}
	})
}

func TestWatchlistCommands(t *testing.T) {
	items := []map[string]any{
		{"id": 1, "movie_id": 10, "title": "Heat", "status": "planned", "position": 0},
		{"id": 2, "movie_id": 11, "title": "Thief", "status": "planned", "position": 1},
		{"id": 3, "movie_id": 12, "title": "Ronin", "status": "watching", "position": 2},
	}

	newWatchlistFixture := func(t *testing.T) *fixture {
		f := newFixture(t, "", "a1", "r1")
		f.backend.JSON("GET /api/watchlists/", http.StatusOK, []map[string]any{{"id": 5, "name": "Weekend"}})
		f.backend.JSON("GET /api/watchlists/5/items/", http.StatusOK, items)
		return f
	}

	t.Run("show", func(t *testing.T) {
		f := newWatchlistFixture(t)
		if err := f.run(t, "watchlist", "show", "5"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		out := f.out.String()
		if !strings.Contains(out, "Watchlist: Weekend (#5)") || !strings.Contains(out, "3. Ronin [watching]") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("status keeps display fields the server omits", func(t *testing.T) {
		f := newWatchlistFixture(t)
		f.backend.JSON("PATCH /api/watchlists/5/items/1/", http.StatusOK, map[string]any{"id": 1, "movie_id": 10, "status": "watched", "position": 0})

		if err := f.run(t, "watchlist", "status", "5", "1", "watched"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(f.out.String(), "1. Heat [watched]") {
			t.Errorf("expected title to survive the update, got %q", f.out.String())
		}
	})

	t.Run("failed add rolls back", func(t *testing.T) {
		f := newWatchlistFixture(t)
		f.backend.JSON("POST /api/watchlists/5/items/", http.StatusInternalServerError, map[string]string{"detail": "database is locked"})

		err := f.run(t, "watchlist", "add", "5", "99", "--title", "Collateral")
		if services.StatusOf(err) != http.StatusInternalServerError {
			t.Fatalf("expected the server error, got %v", err)
		}
		if !strings.Contains(err.Error(), "failed to add title") {
			t.Errorf("unexpected error %q", err.Error())
		}
	})

	t.Run("add rejects a duplicate without calling the server", func(t *testing.T) {
		f := newWatchlistFixture(t)
		if err := f.run(t, "watchlist", "add", "5", "10"); !errors.Is(err, shared.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
		if f.backend.Hits("POST /api/watchlists/5/items/") != 0 {
			t.Error("expected no remote call")
		}
	})

	t.Run("move saves the new order", func(t *testing.T) {
		f := newWatchlistFixture(t)
		var order []int64
		f.backend.Handle("POST /api/watchlists/5/reorder/", func(w http.ResponseWriter, r *http.Request) {
			var body map[string][]int64
			tu.DecodeBody(t, r, &body)
			order = body["order"]
			w.WriteHeader(http.StatusNoContent)
		})

		if err := f.run(t, "watchlist", "move", "5", "3", "1"); err != nil {
			t.Fatalf("move failed: %v", err)
		}
		if !slices.Equal(order, []int64{3, 1, 2}) {
			t.Errorf("expected order [3 1 2], got %v", order)
		}
		if !strings.Contains(f.out.String(), "1. Ronin") {
			t.Errorf("unexpected output %q", f.out.String())
		}
	})

	t.Run("move keeps the local order when saving fails", func(t *testing.T) {
		f := newWatchlistFixture(t)
		f.backend.JSON("POST /api/watchlists/5/reorder/", http.StatusBadGateway, map[string]string{"detail": "try later"})

		if err := f.run(t, "watchlist", "move", "5", "1", "3"); err != nil {
			t.Fatalf("expected a failed reorder to only warn, got %v", err)
		}
		out := f.out.String()
		if !strings.Contains(out, "could not be saved") || !strings.Contains(out, "3. Heat") {
			t.Errorf("unexpected output %q", out)
		}
	})
}

func TestRoomCommands(t *testing.T) {
	newRoomFixture := func(t *testing.T) *fixture {
		f := newFixture(t, "", "a1", "r1")
		f.backend.JSON("GET /api/rooms/7/", http.StatusOK, map[string]any{"id": 7, "name": "Friday", "code": "FRI123"})
		f.backend.JSON("GET /api/rooms/7/members/", http.StatusOK, []map[string]any{{"id": 1, "username": "alice", "is_owner": true}})
		f.backend.JSON("GET /api/rooms/7/movies/", http.StatusOK, []map[string]any{
			{"id": 1, "movie_id": 10, "title": "Heat", "score": 1, "user_vote": 0},
			{"id": 2, "movie_id": 11, "title": "Thief", "score": 2, "user_vote": 0},
		})
		return f
	}

	t.Run("show ranks by score", func(t *testing.T) {
		f := newRoomFixture(t)
		if err := f.run(t, "room", "show", "7"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		out := f.out.String()
		if !strings.Contains(out, "Room: Friday [FRI123]") || strings.Index(out, "Thief") > strings.Index(out, "Heat") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("vote", func(t *testing.T) {
		f := newRoomFixture(t)
		f.backend.Handle("POST /api/rooms/7/movies/1/vote/", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]int
			tu.DecodeBody(t, r, &body)
			tu.WriteJSON(w, http.StatusOK, map[string]any{"id": 1, "movie_id": 10, "score": 1 + body["value"], "user_vote": body["value"]})
		})

		if err := f.run(t, "room", "vote", "7", "1", "up"); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		out := f.out.String()
		if !strings.Contains(out, "Voted +1 on #1") || !strings.Contains(out, "Heat  +2 ▲") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("rejected vote reports the server message", func(t *testing.T) {
		f := newRoomFixture(t)
		f.backend.JSON("POST /api/rooms/7/movies/2/vote/", http.StatusForbidden, map[string]string{"detail": "Voting is closed"})

		err := f.run(t, "room", "vote", "7", "2", "down")
		if err == nil || !strings.Contains(err.Error(), "Voting is closed") {
			t.Errorf("expected server message, got %v", err)
		}
	})

	t.Run("join", func(t *testing.T) {
		f := newFixture(t, "", "a1", "r1")
		f.backend.Handle("POST /api/rooms/join/", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			tu.DecodeBody(t, r, &body)
			tu.WriteJSON(w, http.StatusOK, map[string]any{"id": 7, "name": "Friday", "code": body["code"]})
		})

		if err := f.run(t, "room", "join", "fri123"); err != nil {
			t.Fatalf("join failed: %v", err)
		}
		if !strings.Contains(f.out.String(), `Joined "Friday"  #7`) {
			t.Errorf("unexpected output %q", f.out.String())
		}
	})
}

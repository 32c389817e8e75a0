package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"tools.zach/dev/badgecord/internal/config"
	"tools.zach/dev/badgecord/internal/paths"
)

// ///////////////////////////////////////////////
// resolveVersion Tests
// ///////////////////////////////////////////////

func TestResolveVersionWithLdflags(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	if got := resolveVersion(); got != "1.2.3" {
		t.Errorf("resolveVersion() = %q, want %q", got, "1.2.3")
	}
	if got := userAgent(); got != "badgecord/1.2.3" {
		t.Errorf("userAgent() = %q, want badgecord/1.2.3", got)
	}
}

func TestResolveVersionDev(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "dev"
	// Test binaries may or may not carry VCS info.
	if got := resolveVersion(); !strings.HasPrefix(got, "dev") {
		t.Errorf("resolveVersion() = %q, expected to start with 'dev'", got)
	}
}

// ///////////////////////////////////////////////
// PID Management Tests
// ///////////////////////////////////////////////

func TestPidToken(t *testing.T) {
	a, b := pidToken(), pidToken()
	if len(a) != 16 {
		t.Errorf("token length = %d, want 16", len(a))
	}
	if a == b {
		t.Error("two tokens are equal")
	}
}

func TestWritePID_FileContainsPID(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID: %v", err)
	}
	defer removePID(dp, token, f)

	data, err := os.ReadFile(dp.PID())
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if string(data) != want {
		t.Errorf("PID file = %q, want %q", data, want)
	}
}

func TestRemovePID_MatchingToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()
	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID: %v", err)
	}

	removePID(dp, token, f)
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("PID file should be removed")
	}
}

func TestRemovePID_MismatchedToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	if err := os.WriteFile(dp.PID(), []byte("123:other"), 0o600); err != nil {
		t.Fatal(err)
	}

	removePID(dp, "mine", nil)
	if _, err := os.Stat(dp.PID()); err != nil {
		t.Error("PID file owned by another token was removed")
	}
}

func TestCheckStalePID_NoFile(t *testing.T) {
	if alive, pid := checkStalePID(DataPaths{Root: t.TempDir()}); alive || pid != 0 {
		t.Errorf("checkStalePID = (%v, %d), want (false, 0)", alive, pid)
	}
}

func TestCheckStalePID_StaleFileRemoved(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	if err := os.WriteFile(dp.PID(), []byte("999999:dead"), 0o600); err != nil {
		t.Fatal(err)
	}

	if alive, _ := checkStalePID(dp); alive {
		t.Error("unlocked PID file reported as alive")
	}
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("stale PID file should be removed")
	}
}

// ///////////////////////////////////////////////
// Command Tests
// ///////////////////////////////////////////////

// runCmd executes a command line against dataDir and restores the default
// logger afterwards.
func runCmd(t *testing.T, dataDir string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out, errOut bytes.Buffer
	code = run(append([]string{"--data-dir", dataDir}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Version(t *testing.T) {
	original := version
	defer func() { version = original }()
	version = "0.4.0"

	code, out, _ := runCmd(t, t.TempDir(), "version")
	if code != 0 || out != "badgecord 0.4.0\n" {
		t.Errorf("version = (%d, %q)", code, out)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, errOut := runCmd(t, t.TempDir(), "publish")
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.Contains(errOut, `unknown command "publish"`) {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_RenderNeedsMode(t *testing.T) {
	for _, args := range [][]string{{"render"}, {"render", "--once", "--watch"}} {
		code, _, errOut := runCmd(t, t.TempDir(), args...)
		if code != 1 || !strings.Contains(errOut, "exactly one of --once or --watch") {
			t.Errorf("%v = (%d, %q)", args, code, errOut)
		}
	}
}

func TestRun_LogsMissingFile(t *testing.T) {
	dir := t.TempDir()
	code, _, errOut := runCmd(t, dir, "logs")
	if code != 1 || !strings.Contains(errOut, "no log file") {
		t.Errorf("logs = (%d, %q)", code, errOut)
	}
}

func TestRun_LogsTail(t *testing.T) {
	dir := t.TempDir()
	lines := "one\ntwo\nthree\n"
	if err := os.WriteFile(filepath.Join(dir, paths.LogFile), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out, _ := runCmd(t, dir, "logs", "-n", "2")
	if code != 0 || out != "two\nthree\n" {
		t.Errorf("logs -n 2 = (%d, %q)", code, out)
	}
}

// ///////////////////////////////////////////////
// render --once
// ///////////////////////////////////////////////

const badgePage = `<!DOCTYPE html>
<html><head><title>home</title></head><body>
<div class="discord-presence-badge">
  <span class="discord-status-icon offline"></span>
</div>
<div class="discord-presence-card">
  <img class="discord-avatar" src="" alt="">
  <p class="discord-username">Loading...</p>
  <p class="discord-activity">Loading...</p>
</div>
</body></html>`

const idlePayload = `{"success":true,"data":{
  "discord_user":{"id":"94490510688792576","username":"phineas","global_name":"Phineas","avatar":null,"discriminator":"0"},
  "discord_status":"idle",
  "activities":[]
}}`

func TestRun_RenderOnce(t *testing.T) {
	var calls atomic.Int32
	var gotPath, gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotPath.Store(r.URL.Path)
		gotUA.Store(r.UserAgent())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, idlePayload)
	}))
	defer srv.Close()

	dataDir, site := t.TempDir(), t.TempDir()
	home := filepath.Join(site, "index.html")
	if err := os.WriteFile(home, []byte(badgePage), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(site, "plain.html"), []byte("<p>hi</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Presence.UserID = "94490510688792576"
	cfg.Presence.APIBase = srv.URL
	cfg.Pages.Root = site
	if err := cfg.Save(filepath.Join(dataDir, paths.ConfigFile)); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := runCmd(t, dataDir, "render", "--once")
	if code != 0 {
		t.Fatalf("render --once exit %d, stderr:\n%s", code, errOut)
	}
	if want := "2 page(s): 1 written, 1 without badge, 0 fetch failure(s)\n"; out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
	if calls.Load() != 1 {
		t.Errorf("lanyard calls = %d, want 1", calls.Load())
	}
	if p := gotPath.Load(); p != "/v1/users/94490510688792576" {
		t.Errorf("request path = %v", p)
	}
	if ua, _ := gotUA.Load().(string); !strings.HasPrefix(ua, "badgecord/") {
		t.Errorf("User-Agent = %q", ua)
	}
	if !strings.Contains(errOut, "badgecord starting") {
		t.Errorf("log lines not mirrored to stderr:\n%s", errOut)
	}

	data, _ := os.ReadFile(home)
	for _, want := range []string{
		`<p class="discord-username">Phineas</p>`,
		`<p class="discord-activity">currently doing nothing</p>`,
		`class="discord-status-icon idle"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("rendered page missing %s", want)
		}
	}
	if _, err := os.Stat(filepath.Join(dataDir, paths.LogFile)); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestRun_RenderOnceSeedsConfig(t *testing.T) {
	dataDir, site := t.TempDir(), t.TempDir()

	code, out, errOut := runCmd(t, dataDir, "render", "--once", "--root", site)
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, errOut)
	}
	if out != "0 page(s): 0 written, 0 without badge, 0 fetch failure(s)\n" {
		t.Errorf("stdout = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(dataDir, paths.ConfigFile))
	if err != nil {
		t.Fatalf("config not seeded: %v", err)
	}
	if !strings.Contains(string(data), "YOUR_DISCORD_USER_ID") {
		t.Error("seeded config lacks the user id placeholder")
	}
}

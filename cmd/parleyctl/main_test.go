package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/lock"
	"github.com/matheus3301/parley/internal/profile"
	"github.com/matheus3301/parley/internal/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	profileFlag, jsonFlag, loginToken, loginUser = "", false, "", ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func setHome(t *testing.T) {
	t.Helper()
	home, err := os.MkdirTemp("/tmp", "parleyctl-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(home) })
	t.Setenv("PARLEY_HOME", home)
}

func TestLoginLogout(t *testing.T) {
	setHome(t)

	out, err := run(t, "--profile", "work", "login", "--token", "opaque", "--user", "u1")
	if err != nil {
		t.Fatalf("login error = %v (%s)", err, out)
	}
	if !strings.Contains(out, "u1") {
		t.Errorf("login output = %q", out)
	}

	out, err = run(t, "--profile", "work", "--json", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	var rep statusReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("status output is not JSON: %q", out)
	}
	if rep.Running || rep.User != "u1" || rep.Profile != "work" {
		t.Errorf("status = %+v", rep)
	}

	out, err = run(t, "--profile", "work", "logout")
	if err != nil || !strings.Contains(out, "Signed out") {
		t.Fatalf("logout = %q, %v", out, err)
	}
	out, err = run(t, "--profile", "work", "logout")
	if err != nil || !strings.Contains(out, "No stored session") {
		t.Fatalf("second logout = %q, %v", out, err)
	}
}

func TestLoginRequiresToken(t *testing.T) {
	setHome(t)
	if _, err := run(t, "login"); err == nil {
		t.Fatal("login without --token should fail")
	}
}

func TestInvalidProfileName(t *testing.T) {
	setHome(t)
	if _, err := run(t, "--profile", "Bad Name", "status"); err == nil {
		t.Fatal("status with invalid profile should fail")
	}
}

func TestMutatingCommandsRespectLock(t *testing.T) {
	setHome(t)
	if err := profile.EnsureDir("main"); err != nil {
		t.Fatal(err)
	}
	lk, err := lock.Acquire(profile.Dir("main"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	_, err = run(t, "cache", "clear")
	if err == nil || !strings.Contains(err.Error(), "quit it first") {
		t.Fatalf("cache clear while locked error = %v", err)
	}
	if _, err := run(t, "cache", "list"); err != nil {
		t.Fatalf("cache list while locked error = %v", err)
	}
}

func TestCacheListExportClear(t *testing.T) {
	setHome(t)
	if err := profile.EnsureDir("main"); err != nil {
		t.Fatal(err)
	}
	db, err := store.Open(profile.CachePath("main"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, conv := range []string{"c1", "c2"} {
		if err := db.SaveEntry(conv, []chat.Message{
			{ID: conv + "-m1", ConversationID: conv, SenderID: "u1", Content: "hi", CreatedAt: at},
		}); err != nil {
			t.Fatal(err)
		}
	}
	_ = db.Close()

	out, err := run(t, "--json", "cache", "list")
	if err != nil {
		t.Fatal(err)
	}
	var entries []store.EntrySummary
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("cache list output is not JSON: %q", out)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	out, err = run(t, "cache", "export", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"c1-m1"`) || !strings.Contains(out, `"conversationId": "c1"`) {
		t.Errorf("export = %q", out)
	}
	if _, err := run(t, "cache", "export", "nope"); err == nil {
		t.Error("export of unknown conversation should fail")
	}

	if out, err := run(t, "cache", "clear", "c1"); err != nil || !strings.Contains(out, "Removed c1") {
		t.Fatalf("clear c1 = %q, %v", out, err)
	}
	if out, err := run(t, "cache", "clear"); err != nil || !strings.Contains(out, "Removed 1") {
		t.Fatalf("clear all = %q, %v", out, err)
	}
	out, err = run(t, "cache", "list")
	if err != nil || !strings.Contains(out, "Cache is empty") {
		t.Fatalf("list after clear = %q, %v", out, err)
	}
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"xente/config"
	"xente/inference"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs("../ml/testdata")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "ml:\n  artifact_dir: " + dir + "\ncache:\n  backend: none\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPredictCommand(t *testing.T) {
	path := writeConfig(t)
	out, err := runCLI(t, "predict", "--config", path,
		"--category", "Retail", "--amount-loan", "5000", "--investor", "1", "--total-amount", "5000", "--json=false")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Retail loan of 5,000.00 (total 5,000.00), investor 1") {
		t.Fatalf("unexpected summary line: %q", out)
	}
	if !strings.Contains(out, "Predicted Default Probability: 15.00%") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPredictCommandJSON(t *testing.T) {
	path := writeConfig(t)
	out, err := runCLI(t, "predict", "--config", path,
		"--category", "Retail", "--amount-loan", "100000", "--investor", "1", "--total-amount", "100000", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if got["formatted"] != "52.50%" || got["product_category"] != "Retail" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestPredictCommandRejectsInvalidInput(t *testing.T) {
	path := writeConfig(t)
	_, err := runCLI(t, "predict", "--config", path,
		"--category", "Retail", "--amount-loan", "10", "--investor", "1", "--total-amount", "5000", "--json=false")
	if !errors.Is(err, inference.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestServerConfigFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Http.Port = 9090
	cfg.UI.Locale = "fr"

	got := serverConfig(cfg)
	if got.Port != 9090 || got.Locale != "fr" || got.RateLimit != 60 || got.MaxBodyBytes != 1<<16 {
		t.Fatalf("unexpected server config: %+v", got)
	}
	if diff := cmp.Diff([]string{"*"}, got.AllowedOrigins); diff != "" {
		t.Fatalf("allowed origins mismatch (-want +got):\n%s", diff)
	}
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	c, closeFn, err := newCache(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if c == nil {
		t.Fatal("expected the default lru cache")
	}

	cfg.Cache.Backend = "none"
	c, closeFn, err = newCache(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if c != nil {
		t.Fatal("expected no cache for backend none")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	artifacts, err := filepath.Abs("../ml/testdata")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "predictions.db")
	path := filepath.Join(dir, "config.yaml")
	body := "http:\n  port: 0\n" +
		"ml:\n  artifact_dir: " + artifacts + "\n  watch: false\n" +
		"cache:\n  backend: none\n" +
		"database:\n  path: " + dbPath + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveCmd.SetContext(ctx)
	t.Cleanup(func() {
		rootCmd.SetContext(context.Background())
		serveCmd.SetContext(context.Background())
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"serve", "--config", path})
	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	// the store is opened after the artifacts load and before the server starts
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(dbPath); err == nil {
			break
		}
		select {
		case err := <-done:
			t.Fatalf("serve exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("serve did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServeFailsWithoutArtifacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "http:\n  port: 0\nml:\n  artifact_dir: " + t.TempDir() + "\ncache:\n  backend: none\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := runCLI(t, "serve", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "load artifacts") {
		t.Fatalf("expected artifact load error, got %v", err)
	}
}

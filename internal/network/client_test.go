package network_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/network"
	"bindery/internal/services"
	"bindery/internal/testsupport"
)

func stagingBag(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bag.zip")
	if err := os.WriteFile(path, []byte("zip bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func submitRequest(t *testing.T) network.SubmitRequest {
	return network.SubmitRequest{
		DepositUUID:   "A1B2C3D4-E5F6-4A5B-8C9D-0E1F2A3B4C5D",
		ContainerID:   3,
		BagPath:       stagingBag(t),
		Size:          9,
		ChecksumType:  "sha1",
		ChecksumValue: "ABCDEF",
	}
}

func TestSubmitSendsBagWithHeaders(t *testing.T) {
	var gotHeaders http.Header
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotPath = r.URL.Path
		w.Header().Set("Location", "/statements/42")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithEndpoint(server.URL))
	client := network.NewClient(cfg)

	receipt, err := client.Submit(context.Background(), submitRequest(t))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt != server.URL+"/statements/42" {
		t.Fatalf("receipt should resolve against the endpoint, got %s", receipt)
	}
	if gotPath != "/deposits" {
		t.Fatalf("unexpected submit path %s", gotPath)
	}
	if gotHeaders.Get("X-Deposit-UUID") != "A1B2C3D4-E5F6-4A5B-8C9D-0E1F2A3B4C5D" {
		t.Fatalf("deposit uuid header missing: %v", gotHeaders)
	}
	if gotHeaders.Get("X-Checksum-Value") != "ABCDEF" {
		t.Fatalf("checksum header missing: %v", gotHeaders)
	}
	if gotHeaders.Get("Content-Type") != "application/zip" {
		t.Fatalf("content type mismatch: %s", gotHeaders.Get("Content-Type"))
	}
}

func TestSubmitClassifiesServerErrorAsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithEndpoint(server.URL))
	client := network.NewClient(cfg)

	_, err := client.Submit(context.Background(), submitRequest(t))
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("5xx should classify as network error, got %v", err)
	}
}

func TestSubmitClassifiesRejectionAsValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad bag", http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithEndpoint(server.URL))
	client := network.NewClient(cfg)

	_, err := client.Submit(context.Background(), submitRequest(t))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("4xx should classify as validation error, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("rejections are permanent")
	}
}

func TestStatementParsesAgreementStates(t *testing.T) {
	tests := []struct {
		body string
		want network.AgreementStatus
	}{
		{`{"state":"agreement"}`, network.StatusAgreement},
		{`{"state":"inProgress"}`, network.StatusInProgress},
		{`{"state":"rejected"}`, network.StatusRejected},
		{`{"state":"somethingNew"}`, network.StatusInProgress},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(tt.body))
		}))

		cfg := testsupport.NewConfig(t, testsupport.WithEndpoint(server.URL))
		client := network.NewClient(cfg)
		got, err := client.Statement(context.Background(), server.URL+"/statements/42")
		server.Close()
		if err != nil {
			t.Fatalf("Statement(%s): %v", tt.body, err)
		}
		if got != tt.want {
			t.Fatalf("Statement(%s) = %s, want %s", tt.body, got, tt.want)
		}
	}
}

func TestStatementClassifiesServerErrorAsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithEndpoint(server.URL))
	client := network.NewClient(cfg)

	_, err := client.Statement(context.Background(), server.URL+"/statements/42")
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("5xx should classify as network error, got %v", err)
	}
}

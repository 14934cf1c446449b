package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestListenTargets(t *testing.T) {
	for _, target := range []string{"70000", "99999999999999999999", ""} {
		if ln, err := Listen(target, 0); err == nil {
			ln.Close()
			t.Errorf("expected error listening on %q", target)
		}
	}

	ln, err := Listen("0", 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ln.Addr().(*net.TCPAddr); !ok {
		t.Errorf("numeric target should listen on TCP, got %v", ln.Addr())
	}
	ln.Close()

	socket := filepath.Join(t.TempDir(), "vr.sock")
	if err := os.WriteFile(socket, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}
	ln, err = Listen(socket, 0)
	if err != nil {
		t.Fatalf("listening on socket with stale file: %v", err)
	}
	defer ln.Close()
	if ln.Addr().Network() != "unix" {
		t.Errorf("path target should listen on a Unix socket, got %s", ln.Addr().Network())
	}
}

func TestServeShutdown(t *testing.T) {
	ln, err := Listen("0", 0)
	if err != nil {
		t.Fatal(err)
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, handler, time.Second)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("unexpected body %q", string(body))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}

func TestServeUnixSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "vr.sock")
	ln, err := Listen(socket, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "unix")
	}), time.Second)

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}}
	resp, err := client.Get("http://volrender/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "unix" {
		t.Errorf("unexpected body %q", string(body))
	}
}

func TestLoadConfig(t *testing.T) {
	saved := tc
	defer func() { tc = saved }()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(`
[server]
webclient = "client"
max_connections = 16
shutdown_timeout = 2
cors_domains = ["http://a.example.org"]

[render]
max_memory_gb = 4
memory_mapping = false
image_cache_mb = 8

[logging]
logfile = "logs/volrender.log"
max_log_size = 10
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	if err := LoadConfig(path); err != nil {
		t.Fatal(err)
	}
	if WebClientDir() != filepath.Join(dir, "client") {
		t.Errorf("webclient not made absolute: %q", WebClientDir())
	}
	if SaveDir() != filepath.Join(dir, DefaultSaveDir) {
		t.Errorf("default savedir not kept relative to config: %q", SaveDir())
	}
	if MaxConnections() != 16 || ShutdownTimeout() != 2*time.Second {
		t.Errorf("bad server settings %d %s", MaxConnections(), ShutdownTimeout())
	}
	if d := CorsDomains(); len(d) != 1 || d[0] != "http://a.example.org" {
		t.Errorf("bad cors domains %v", d)
	}
	opts := CatalogOptions()
	if opts.MaxMemoryGB != 4 || opts.MemoryMapping {
		t.Errorf("bad catalog options %+v", opts)
	}
	if ImageCacheBytes() != 8<<20 {
		t.Errorf("bad image cache size %d", ImageCacheBytes())
	}
	if lc := LogConfig(); lc.Logfile != filepath.Join(dir, "logs", "volrender.log") || lc.MaxSize != 10 {
		t.Errorf("bad logging config %+v", lc)
	}
	if ConfigLocation() != path {
		t.Errorf("bad config location %q", ConfigLocation())
	}

	if err := LoadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("expected error loading missing config")
	}
	if err := LoadConfig(""); err == nil {
		t.Errorf("expected error with no config file")
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		options  string
		expected []Directive
	}{
		{"", nil},
		{"colormap,viridis", []Directive{SetColormap{"viridis"}}},
		{"hq,true,timestep,2", []Directive{SetHighQuality{true}, SetTimestep{"2"}}},
		{"hq,false", []Directive{SetHighQuality{false}}},
		{"onlysave,shot,filename,t_001.raw", []Directive{SetOnlySave{"shot"}, SetFilenameStep{"t_001.raw"}}},
		{"timestep,", []Directive{SetTimestep{""}}},
		{"timestep", []Directive{SetTimestep{""}}},
		{"colormap,magma,", []Directive{SetColormap{"magma"}}},
		{"bogus,colormap,magma", []Directive{SetColormap{"magma"}}},
		{"timestep,colormap", []Directive{SetTimestep{"colormap"}}},
	}
	for _, tc := range tests {
		got := ParseOptions(tc.options)
		if len(got) != len(tc.expected) {
			t.Errorf("%q: got %v, expected %v", tc.options, got, tc.expected)
			continue
		}
		for i := range got {
			if got[i] != tc.expected[i] {
				t.Errorf("%q directive %d: got %#v, expected %#v", tc.options, i, got[i], tc.expected[i])
			}
		}
	}
}

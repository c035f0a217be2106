package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formschema/pkg/schema"
)

const sample = `{"type":"object","properties":{"name":{"type":"string","x-component":"InputText"}}}`

func TestLoader_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "form.json")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	node, err := New(schema.NewLoaderOptions()).LoadNode(context.Background(), schema.SourceFromFile(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := node.Properties.Get("name"); !ok {
		t.Fatalf("expected name property, got keys %v", node.Properties.Keys())
	}
}

func TestLoader_FS(t *testing.T) {
	files := fstest.MapFS{
		"forms/profile.yaml": {Data: []byte("type: object\nproperties:\n  b:\n    type: string\n  a:\n    type: string\n")},
	}
	l := New(schema.NewLoaderOptions(schema.WithFileSystem(files)))

	node, err := l.LoadNode(context.Background(), schema.SourceFromFS("forms/profile.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	keys := node.Properties.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Fatalf("expected declaration order [b a], got %v", keys)
	}
}

func TestLoader_FSMissing(t *testing.T) {
	l := New(schema.NewLoaderOptions())
	if _, err := l.Load(context.Background(), schema.SourceFromFS("x.json")); err == nil {
		t.Fatal("expected error when no fs configured")
	}
}

func TestLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/form.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	disabled := New(schema.NewLoaderOptions())
	if _, err := disabled.Load(context.Background(), schema.SourceFromURL(srv.URL+"/form.json")); err == nil {
		t.Fatal("expected http to be disabled by default")
	}

	l := New(schema.NewLoaderOptions(schema.WithHTTPClient(srv.Client())))
	doc, err := l.Load(context.Background(), schema.SourceFromURL(srv.URL+"/form.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Source().Kind() != schema.SourceKindURL {
		t.Fatalf("unexpected kind %q", doc.Source().Kind())
	}

	if _, err := l.Load(context.Background(), schema.SourceFromURL(srv.URL+"/missing")); err == nil {
		t.Fatal("expected status error")
	}
}

func TestLoader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(schema.NewLoaderOptions()).Load(ctx, schema.SourceFromFile("x.json")); err == nil {
		t.Fatal("expected context error")
	}
}

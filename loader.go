package formschema

import (
	"context"

	internalloader "github.com/goliatone/go-formschema/internal/loader"
	"github.com/goliatone/go-formschema/pkg/schema"
)

// NewLoader constructs a loader using the internal implementation while keeping
// the concrete type hidden from consumers.
func NewLoader(options ...schema.LoaderOption) schema.Loader {
	cfg := schema.NewLoaderOptions(options...)
	return internalloader.New(cfg)
}

// LoadSchema reads and parses a schema document from src.
func LoadSchema(ctx context.Context, src schema.Source, options ...schema.LoaderOption) (*schema.Node, error) {
	cfg := schema.NewLoaderOptions(options...)
	return internalloader.New(cfg).LoadNode(ctx, src)
}

// LoadSchemaFile is LoadSchema for a path on the local filesystem.
func LoadSchemaFile(ctx context.Context, path string) (*schema.Node, error) {
	return LoadSchema(ctx, schema.SourceFromFile(path))
}

// Package openapi imports form schemas from OpenAPI 3 documents. The request
// body of an operation becomes a schema tree: objects turn into grouping
// nodes, scalar properties into input components, and the OpenAPI
// constraints into x-rules.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"github.com/goliatone/go-formschema/pkg/schema"
)

// ErrOperationNotFound is returned by Import for unknown operation ids.
var ErrOperationNotFound = errors.New("openapi: operation not found")

// ErrNoRequestBody is returned when the operation has no usable request body
// schema.
var ErrNoRequestBody = errors.New("openapi: operation has no request body schema")

// Operation summarises one operation of a document.
type Operation struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Summary string `json:"summary,omitempty"`
	HasBody bool   `json:"hasBody"`

	operation *openapi3.Operation
}

// Option configures document loading and conversion.
type Option func(*options)

type options struct {
	validate     bool
	externalRefs bool
	logger       *zap.Logger
}

// WithValidation validates the document before importing it.
func WithValidation(enabled bool) Option {
	return func(o *options) {
		o.validate = enabled
	}
}

// WithExternalRefs allows $refs to other documents.
func WithExternalRefs(enabled bool) Option {
	return func(o *options) {
		o.externalRefs = enabled
	}
}

// WithLogger reports skipped properties at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	cfg := options{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Load parses an OpenAPI document from JSON or YAML.
func Load(ctx context.Context, data []byte, opts ...Option) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}
	cfg := newOptions(opts)
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: cfg.externalRefs}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if cfg.validate {
		if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate: %w", err)
		}
	}
	return doc, nil
}

// Operations lists the operations of doc sorted by id. Operations without an
// operationId are named "<method>:<path>".
func Operations(doc *openapi3.T) []Operation {
	if doc == nil || doc.Paths == nil {
		return nil
	}
	var out []Operation
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			out = append(out, Operation{
				ID:        id,
				Method:    strings.ToUpper(method),
				Path:      path,
				Summary:   op.Summary,
				HasBody:   requestSchema(op) != nil,
				operation: op,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Import loads data and converts the request body of operationID.
func Import(ctx context.Context, data []byte, operationID string, opts ...Option) (*schema.Node, error) {
	doc, err := Load(ctx, data, opts...)
	if err != nil {
		return nil, err
	}
	for _, op := range Operations(doc) {
		if op.ID == operationID {
			return ImportOperation(op.operation, opts...)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
}

// ImportOperation converts the request body schema of op.
func ImportOperation(op *openapi3.Operation, opts ...Option) (*schema.Node, error) {
	if op == nil {
		return nil, ErrNoRequestBody
	}
	ref := requestSchema(op)
	if ref == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoRequestBody, op.OperationID)
	}
	root, err := ImportSchema(ref, opts...)
	if err != nil {
		return nil, err
	}
	if root.Title == "" {
		root.Title = op.Summary
	}
	return root, nil
}

// ImportSchema converts a schema. The result is checked with schema.Validate.
func ImportSchema(ref *openapi3.SchemaRef, opts ...Option) (*schema.Node, error) {
	if ref == nil || ref.Value == nil {
		return nil, errors.New("openapi: schema is empty")
	}
	c := converter{options: newOptions(opts), seen: make(map[*openapi3.Schema]struct{})}
	root := c.object(flatten(ref.Value), "")
	root.Type = schema.TypeObject
	if err := schema.Validate(root); err != nil {
		return nil, err
	}
	return root, nil
}

var mediaTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}

func requestSchema(op *openapi3.Operation) *openapi3.SchemaRef {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range mediaTypes {
		if mt, ok := content[mediaType]; ok && mt != nil && mt.Schema != nil {
			return mt.Schema
		}
	}
	keys := make([]string, 0, len(content))
	for key := range content {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if mt := content[key]; mt != nil && mt.Schema != nil {
			return mt.Schema
		}
	}
	return nil
}

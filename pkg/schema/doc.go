// Package schema models the declarative form grammar consumed by the resolver:
// JSON (or YAML) documents whose nodes carry `properties`, `x-component`,
// `x-component-props`, `x-content`, `x-ui` and `x-rules`.
//
// Nodes are treated as immutable inputs. Packages that need to derive values
// from a node (expression resolution, field extraction) work on copies.
package schema

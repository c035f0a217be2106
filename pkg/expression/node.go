package expression

import "github.com/goliatone/go-formschema/pkg/schema"

// ResolveNode returns a copy of node whose string-valued fields carry
// substituted tokens: title, description, x-content, every string nested in
// x-component-props and x-ui, the pattern rule and message overrides. The
// copy shares the node's Properties; children are resolved on their own.
// visibleWhen expressions are predicates, not templates, and are left as is.
func ResolveNode(node *schema.Node, scope Scope, report Reporter) *schema.Node {
	if node == nil {
		return nil
	}
	out := *node
	out.Title = expand(node.Title, scope, report)
	out.Description = expand(node.Description, scope, report)
	out.Content = expand(node.Content, scope, report)
	if node.ComponentProps != nil {
		out.ComponentProps = ResolveDeep(node.ComponentProps, scope, report).(map[string]any)
	}
	if node.UI != nil {
		out.UI = ResolveDeep(node.UI, scope, report).(map[string]any)
	}
	if node.Rules != nil {
		rules := node.Rules.Clone()
		rules.Pattern = expand(rules.Pattern, scope, report)
		for key, msg := range rules.Messages {
			rules.Messages[key] = expand(msg, scope, report)
		}
		if rules.Extra != nil {
			rules.Extra = ResolveDeep(rules.Extra, scope, report).(map[string]any)
		}
		out.Rules = rules
	}
	return &out
}

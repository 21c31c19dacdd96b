package chunker

import "github.com/dshills/xmlindex/internal/registry"

// cloneContext makes a shallow top-level copy so descending into a subtree
// never mutates a sibling's inherited context (§4.2.2).
func cloneContext(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}

// propagateContext derives the context children of n should inherit, given
// the context already in effect for n itself (§4.2.2):
//
//   - a registry-identified artifact root contributes context["artifact"]
//   - any other element with attributes contributes context[local] = attrs
//   - an attribute-less element on the traversal path contributes
//     context[local] = local, so structural wrappers stay visible downstream
func propagateContext(reg *registry.Registry, n *node, parentCtx map[string]any, rootMeta *registry.Metadata) map[string]any {
	ctx := cloneContext(parentCtx)

	if rootMeta != nil {
		if _, ok := ctx["artifact"]; !ok {
			ctx["artifact"] = map[string]any{
				"type":  rootMeta.Type,
				"name":  rootMeta.Name,
				"xmlns": rootMeta.Xmlns,
			}
		}
	}

	if len(n.Attrs) > 0 {
		attrCopy := make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			attrCopy[k] = v
		}
		ctx[n.Local] = attrCopy
	} else {
		ctx[n.Local] = n.Local
	}

	return ctx
}

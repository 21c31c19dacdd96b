package chunker

import (
	"strings"

	"github.com/dshills/xmlindex/internal/registry"
	"github.com/dshills/xmlindex/pkg/types"
)

// rootPluginSemanticType maps a registry plugin id (i.e. an artifact root
// tag's family) onto a semantic_type (§3).
var rootPluginSemanticType = map[string]types.SemanticType{
	"api":              types.SemanticAPI,
	"sequence":         types.SemanticSequence,
	"endpoint":         types.SemanticComponent,
	"proxy":            types.SemanticComponent,
	"dataService":      types.SemanticComponent,
	"dataMapping":      types.SemanticComponent,
	"localEntry":       types.SemanticConfiguration,
	"template":         types.SemanticComponent,
	"task":             types.SemanticComponent,
	"inboundEndpoint":  types.SemanticComponent,
	"messageStore":     types.SemanticComponent,
	"messageProcessor": types.SemanticComponent,
}

// classifySemanticType derives a chunk's architectural role from which
// boundary rule matched and what the registry knows about the tag.
func classifySemanticType(reg *registry.Registry, n *node, ruleHit string) types.SemanticType {
	if p := reg.PluginForRoot(n.Tag); p != nil {
		if st, ok := rootPluginSemanticType[p.ID]; ok {
			return st
		}
		return types.SemanticComponent
	}
	switch ruleHit {
	case "connector", "connector-property", "connector-property-text":
		return types.SemanticConnector
	case "policy":
		return types.SemanticPolicy
	case "declarative":
		return types.SemanticConfiguration
	}
	if reg.IsMediator(n.Tag) {
		return types.SemanticMediator
	}
	if reg.IsSemanticBoundary(n.Tag) {
		return types.SemanticBoundary
	}
	return types.SemanticComponent
}

// intentKeywords maps a local tag name to the semantic_intent it implies.
// Checked against both the exact local name and, for connector/dotted
// tags, the segment after the last '.'.
var intentKeywords = map[string]types.SemanticIntent{
	"validate":       types.IntentValidation,
	"filter":         types.IntentValidation,
	"payloadFactory": types.IntentTransformation,
	"enrich":         types.IntentTransformation,
	"header":         types.IntentTransformation,
	"xslt":           types.IntentTransformation,
	"datamapper":     types.IntentTransformation,
	"send":           types.IntentDelegation,
	"call":           types.IntentDelegation,
	"callout":        types.IntentDelegation,
	"call-template":  types.IntentDelegation,
	"call-query":     types.IntentDelegation,
	"respond":        types.IntentResponse,
	"log":            types.IntentLogging,
	"loopback":       types.IntentResponse,
	"faultSequence":  types.IntentErrorHandling,
	"makefault":      types.IntentErrorHandling,
	"drop":           types.IntentErrorHandling,
	"sql":            types.IntentDataAccess,
	"query":          types.IntentDataAccess,
	"operation":      types.IntentDataAccess,
	"sequence":       types.IntentMediation,
	"then":           types.IntentMediation,
	"else":           types.IntentMediation,
	"case":           types.IntentMediation,
	"default":        types.IntentMediation,
	"switch":         types.IntentMediation,
}

// classifySemanticIntent derives a chunk's behavioral purpose from its tag.
func classifySemanticIntent(local string) types.SemanticIntent {
	if intent, ok := intentKeywords[local]; ok {
		return intent
	}
	if i := strings.LastIndexByte(local, '.'); i >= 0 {
		if intent, ok := intentKeywords[local[i+1:]]; ok {
			return intent
		}
		lower := strings.ToLower(local)
		if strings.Contains(lower, "error") || strings.Contains(lower, "fault") {
			return types.IntentErrorHandling
		}
		return types.IntentDelegation
	}
	lower := strings.ToLower(local)
	switch {
	case strings.Contains(lower, "fault") || strings.Contains(lower, "error"):
		return types.IntentErrorHandling
	case strings.Contains(lower, "log"):
		return types.IntentLogging
	}
	return types.IntentProcessing
}

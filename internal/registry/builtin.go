package registry

// nameAttr returns the best-available name from attrs: "name", then "key",
// then "context", else "unknown". Several plugins share this extraction.
func nameAttr(attrs map[string]string) string {
	for _, k := range []string{"name", "key", "context"} {
		if v, ok := attrs[k]; ok && v != "" {
			return v
		}
	}
	return "unknown"
}

func simpleMetadata(artifactType string) func(string, map[string]string) Metadata {
	return func(_ string, attrs map[string]string) Metadata {
		return Metadata{Type: artifactType, Name: nameAttr(attrs), Xmlns: attrs["xmlns"]}
	}
}

// builtinPlugins returns the twelve stock artifact-family plugins.
func builtinPlugins() []Plugin {
	return []Plugin{
		{
			ID:                 "api",
			RootTags:           []string{"api", "APIMatchingResource"},
			SemanticBoundaries: []string{"resource", "query", "operation"},
			MediatorTags:       []string{"send", "call", "respond", "filter", "log", "property"},
			ExtractMetadata:    simpleMetadata("api"),
		},
		{
			ID:                 "sequence",
			RootTags:           []string{"sequence"},
			SemanticBoundaries: []string{"sequence", "then", "else", "case", "default"},
			MediatorTags:       []string{"send", "call", "callout", "call-template", "respond", "filter", "log", "property", "enrich", "payloadFactory", "header", "validate"},
			ExtractMetadata:    simpleMetadata("sequence"),
		},
		{
			ID:                 "endpoint",
			RootTags:           []string{"endpoint"},
			SemanticBoundaries: []string{"endpoint", "address", "http", "wsdl", "default", "failover", "loadbalance"},
			ExtractMetadata:    simpleMetadata("endpoint"),
		},
		{
			ID:                 "proxy",
			RootTags:           []string{"proxy"},
			SemanticBoundaries: []string{"target", "inSequence", "outSequence", "faultSequence", "publishWSDL"},
			MediatorTags:       []string{"send", "call", "respond", "filter", "log", "property"},
			ExtractMetadata:    simpleMetadata("proxy"),
		},
		{
			ID:                 "dataService",
			RootTags:           []string{"data"},
			SemanticBoundaries: []string{"query", "operation", "resource", "config"},
			AtomicTags:         []string{"param", "result", "sql"},
			ExtractMetadata:    simpleMetadata("dataService"),
		},
		{
			ID:                 "dataMapping",
			RootTags:           []string{"dataMapper"},
			SemanticBoundaries: []string{"config"},
			ExtractMetadata:    simpleMetadata("dataMapping"),
		},
		{
			ID:                 "localEntry",
			RootTags:           []string{"localEntry"},
			SemanticBoundaries: nil,
			ExtractMetadata:    simpleMetadata("localEntry"),
		},
		{
			ID:                 "template",
			RootTags:           []string{"template"},
			SemanticBoundaries: []string{"sequence", "endpoint"},
			ExtractMetadata:    simpleMetadata("template"),
		},
		{
			ID:                 "task",
			RootTags:           []string{"task"},
			SemanticBoundaries: []string{"trigger"},
			ExtractMetadata:    simpleMetadata("task"),
		},
		{
			ID:                 "inboundEndpoint",
			RootTags:           []string{"inboundEndpoint"},
			SemanticBoundaries: []string{"parameters"},
			ExtractMetadata:    simpleMetadata("inboundEndpoint"),
		},
		{
			ID:                 "messageStore",
			RootTags:           []string{"messageStore"},
			SemanticBoundaries: nil,
			ExtractMetadata:    simpleMetadata("messageStore"),
		},
		{
			ID:                 "messageProcessor",
			RootTags:           []string{"messageProcessor"},
			SemanticBoundaries: nil,
			ExtractMetadata:    simpleMetadata("messageProcessor"),
		},
	}
}

package logstore

// Schema is an index creation body.
type Schema map[string]any

// DefaultSchema is the mapping for authentication logs: @timestamp date,
// user keyword, event and message text, source.ip keyword.
func DefaultSchema() Schema {
	return Schema{
		"mappings": map[string]any{
			"properties": map[string]any{
				"@timestamp": map[string]any{"type": "date"},
				"user":       map[string]any{"type": "keyword"},
				"event":      map[string]any{"type": "text"},
				"message":    map[string]any{"type": "text"},
				"source": map[string]any{
					"properties": map[string]any{
						"ip": map[string]any{"type": "keyword"},
					},
				},
			},
		},
	}
}

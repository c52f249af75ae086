package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Region names accepted by card_crop_region.
var regionNames = []string{"name", "collector_number", "set_code", "text_box", "art"}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the card photograph",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "card_detect",
			Description: "Find the trading card in a photograph, correct its perspective and tilt, and return the upright card as base64-encoded PNG together with its corners in the photograph.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor for the returned images. Default 1.0",
						"default":     1.0,
					},
					"outline": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the photograph with the detected card outlined. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "card_regions",
			Description: "Detect the card and return the pixel boxes of its name, collector number, set code, rules text and artwork, in normalized card coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the card with every region outlined. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "card_crop_region",
			Description: "Detect the card and return one of its regions as base64-encoded PNG. Use this to read small print such as the collector number.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"region": map[string]interface{}{
						"type":        "string",
						"enum":        regionNames,
						"description": "Region to extract",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 3.0 to enlarge small print). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "region"},
			},
		},
		{
			Name:        "card_scan",
			Description: "Run the full scan: detect the card, read its name, collector number and set code, and look it up in the card database when enabled.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"include_images": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the normalized card and overlay as base64 PNG. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "card_lookup",
			Description: "Look a card up in the Scryfall database by set code and collector number, by approximate name, or with a full-text search query.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"set": map[string]interface{}{
						"type":        "string",
						"description": "Set code, e.g. \"mkm\"",
					},
					"number": map[string]interface{}{
						"type":        "string",
						"description": "Collector number within the set",
					},
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Approximate card name",
					},
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Scryfall search query, e.g. \"t:goblin set:m10\"",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}

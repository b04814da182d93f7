package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the page image (PNG, JPEG or GIF)",
	}
}

func integerProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

func overlayProperties() map[string]interface{} {
	return map[string]interface{}{
		"include_overlay": map[string]interface{}{
			"type":        "boolean",
			"description": "Return the overlay image as base64 PNG. Default false",
			"default":     false,
		},
		"overlay_path": map[string]interface{}{
			"type":        "string",
			"description": "Optional path to save the overlay PNG to",
		},
	}
}

func regionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"x1":       integerProperty("Left edge X coordinate (0-based)"),
			"y1":       integerProperty("Top edge Y coordinate (0-based)"),
			"x2":       integerProperty("Right edge X coordinate (exclusive)"),
			"y2":       integerProperty("Bottom edge Y coordinate (exclusive)"),
			"category": map[string]interface{}{"type": "string", "description": "Category name, e.g. \"table\" or \"plain text\""},
			"score":    map[string]interface{}{"type": "number", "description": "Confidence in [0,1]. Default 1"},
		},
		"required": []string{"x1", "y1", "x2", "y2", "category"},
	}
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Page Information
		{
			Name:        "image_load",
			Description: "Load a page image and return its dimensions, format and file size. The page stays cached for later layout calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of a page image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		{
			Name:        "image_evict",
			Description: "Drop a page from the image cache, or every page with all=true, and report how many pages remain cached.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"all": map[string]interface{}{
						"type":        "boolean",
						"description": "Drop every cached page. Default false",
						"default":     false,
					},
				},
			},
		},

		// Layout Model
		{
			Name:        "layout_categories",
			Description: "List the layout categories the detector emits, in class index order, with their display names and overlay colors.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "layout_letterbox",
			Description: "Compute the letterbox transform (scale gain and padding) that maps a page of the given size onto the model input.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"width":  integerProperty("Page width in pixels, used when path is omitted"),
					"height": integerProperty("Page height in pixels, used when path is omitted"),
				},
			},
		},

		// Layout Analysis
		{
			Name:        "layout_analyze",
			Description: "Detect layout regions (titles, text, figures, tables, formulas, captions) on a page and return them with a markdown outline. Requires a loaded model.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(map[string]interface{}{
					"path": pathProperty(),
					"bgr_base64": map[string]interface{}{
						"type":        "string",
						"description": "Raw packed BGR pixels, base64 encoded, used instead of path",
					},
					"width":  integerProperty("Width of the raw BGR buffer"),
					"height": integerProperty("Height of the raw BGR buffer"),
				}, overlayProperties()),
			},
		},
		{
			Name:        "layout_decode",
			Description: "Post-process a raw [1, N, 6] detector output tensor (x1, y1, x2, y2, confidence, class) produced elsewhere: map boxes back to the page, suppress duplicates and build the markdown outline.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(map[string]interface{}{
					"path":   pathProperty(),
					"width":  integerProperty("Page width in pixels, used when path is omitted"),
					"height": integerProperty("Page height in pixels, used when path is omitted"),
					"tensor": map[string]interface{}{
						"type":        "object",
						"description": "Output tensor as {\"shape\": [1, N, 6], \"data\": [...]}",
						"properties": map[string]interface{}{
							"shape": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "integer"}},
							"data":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}},
						},
						"required": []string{"shape", "data"},
					},
				}, overlayProperties()),
				"required": []string{"tensor"},
			},
		},
		{
			Name:        "layout_render",
			Description: "Draw layout regions onto a page: translucent category-colored fill, outline and a name/confidence label.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"regions": map[string]interface{}{
						"type":  "array",
						"items": regionSchema(),
					},
					"overlay_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional path to save the overlay PNG to instead of returning it",
					},
				},
				"required": []string{"path", "regions"},
			},
		},
		{
			Name:        "layout_crop_region",
			Description: "Cut one layout region (typically a figure or table) out of a page and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"region": regionSchema(),
					"margin": integerProperty("Extra pixels kept around the region, clipped to the page. Default 0"),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "region"},
			},
		},
		{
			Name:        "layout_export",
			Description: "Analyze a page (or take the given regions) and write <base_name>.md, an HTML preview and PNG crops of every figure and table under figures/ and tables/ in output_dir.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"bgr_base64": map[string]interface{}{
						"type":        "string",
						"description": "Raw packed BGR pixels, base64 encoded, used instead of path",
					},
					"width":  integerProperty("Width of the raw BGR buffer"),
					"height": integerProperty("Height of the raw BGR buffer"),
					"regions": map[string]interface{}{
						"type":        "array",
						"items":       regionSchema(),
						"description": "Regions to export instead of running the detector",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory to write into. Created if missing",
					},
					"base_name": map[string]interface{}{
						"type":        "string",
						"description": "File name for the report without extension. Default \"document\"",
					},
					"margin": integerProperty("Extra pixels kept around each crop. Default 0"),
				},
				"required": []string{"output_dir"},
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

package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/doclayout-mcp/internal/export"
	"github.com/ironsheep/doclayout-mcp/internal/imaging"
	"github.com/ironsheep/doclayout-mcp/internal/layout"
	"go.uber.org/zap"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "layout_analyze").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000. A
// layout run that fails inside the pipeline is not a tool error: it comes
// back as a normal result with status "failed".
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Page Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_evict":
		return s.handleImageEvict(args)

	// Layout Model
	case "layout_categories":
		return s.handleLayoutCategories()
	case "layout_letterbox":
		return s.handleLayoutLetterbox(args)

	// Layout Analysis
	case "layout_analyze":
		return s.handleLayoutAnalyze(ctx, args)
	case "layout_decode":
		return s.handleLayoutDecode(args)
	case "layout_render":
		return s.handleLayoutRender(args)
	case "layout_crop_region":
		return s.handleLayoutCropRegion(args)
	case "layout_export":
		return s.handleLayoutExport(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Page Information Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadPageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type evictArgs struct {
	Path string `json:"path"`
	All  bool   `json:"all"`
}

type evictResult struct {
	Evicted int `json:"evicted"`
	Cached  int `json:"cached"`
}

func (s *Server) handleImageEvict(args json.RawMessage) (interface{}, error) {
	var a evictArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	res := evictResult{}
	switch {
	case a.All:
		res.Evicted = s.cache.Clear()
	case a.Path != "":
		if s.cache.Evict(a.Path) {
			res.Evicted = 1
		}
	default:
		return nil, errors.New("either path or all is required")
	}
	res.Cached = s.cache.Len()
	return res, nil
}

// === Layout Model Handlers ===

type categoryInfo struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
}

type categoriesResult struct {
	TableVersion int            `json:"table_version"`
	Categories   []categoryInfo `json:"categories"`
}

func (s *Server) handleLayoutCategories() (interface{}, error) {
	palette := s.overlay.Options().Palette
	names := layout.CategoryNames()

	out := categoriesResult{
		TableVersion: layout.CategoryTableVersion,
		Categories:   make([]categoryInfo, len(names)),
	}
	for i, name := range names {
		out.Categories[i] = categoryInfo{
			Index:       i,
			Name:        name,
			DisplayName: layout.DisplayName(name),
			Color:       palette.Hex(layout.Category(i)),
		}
	}
	return out, nil
}

type sizeArgs struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// pageSize resolves the page size from a cached file when a path is given,
// otherwise from explicit dimensions. The image is nil in the second case.
func (s *Server) pageSize(a sizeArgs) (image.Image, int, int, error) {
	if a.Path != "" {
		page, err := s.cache.Load(a.Path)
		if err != nil {
			return nil, 0, 0, err
		}
		b := page.Image.Bounds()
		return page.Image, b.Dx(), b.Dy(), nil
	}
	if a.Width <= 0 || a.Height <= 0 {
		return nil, 0, 0, errors.New("either path or positive width and height are required")
	}
	return nil, a.Width, a.Height, nil
}

func (s *Server) handleLayoutLetterbox(args json.RawMessage) (interface{}, error) {
	var a sizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	_, w, h, err := s.pageSize(a)
	if err != nil {
		return nil, err
	}
	return layout.ComputeTransform(w, h, s.pipeline.Config().Letterbox)
}

// === Layout Analysis Handlers ===

// analyzeResult is the JSON shape of a pipeline result.
type analyzeResult struct {
	Status        layout.Status          `json:"status"`
	Reason        string                 `json:"reason,omitempty"`
	Regions       []layout.Region        `json:"regions"`
	ElapsedMs     float64                `json:"elapsed_ms"`
	Transform     layout.TransformParams `json:"transform"`
	Markdown      string                 `json:"markdown"`
	OverlayBase64 string                 `json:"overlay_base64,omitempty"`
	OverlayPath   string                 `json:"overlay_path,omitempty"`
	RenderError   string                 `json:"render_error,omitempty"`
}

type overlayArgs struct {
	IncludeOverlay bool   `json:"include_overlay"`
	OverlayPath    string `json:"overlay_path"`
}

func (s *Server) toAnalyzeResult(res *layout.Result, o overlayArgs) (*analyzeResult, error) {
	out := &analyzeResult{
		Status:    res.Status,
		Reason:    res.Reason,
		Regions:   res.Regions,
		ElapsedMs: res.ElapsedMs,
		Transform: res.Transform,
		Markdown:  res.Markdown,
	}
	if res.RenderErr != nil {
		out.RenderError = res.RenderErr.Error()
	}
	if res.Rendered == nil {
		return out, nil
	}

	if o.OverlayPath != "" {
		if err := imaging.SavePNG(res.Rendered, o.OverlayPath); err != nil {
			return nil, err
		}
		out.OverlayPath = o.OverlayPath
	}
	if o.IncludeOverlay {
		encoded, err := imaging.EncodePNG(res.Rendered)
		if err != nil {
			return nil, err
		}
		out.OverlayBase64 = encoded
	}
	return out, nil
}

type analyzeArgs struct {
	sizeArgs
	overlayArgs
	BGRBase64 string `json:"bgr_base64"`
}

// loadAnalyzeImage returns the page from a raw BGR buffer if one was sent,
// otherwise from the cache.
func (s *Server) loadAnalyzeImage(a analyzeArgs) (image.Image, error) {
	if a.BGRBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(a.BGRBase64)
		if err != nil {
			return nil, fmt.Errorf("bgr_base64: %w", err)
		}
		return imaging.NewBGR(raw, a.Width, a.Height)
	}
	if a.Path == "" {
		return nil, errors.New("either path or bgr_base64 is required")
	}
	page, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return page.Image, nil
}

func (s *Server) handleLayoutAnalyze(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a analyzeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadAnalyzeImage(a)
	if err != nil {
		return nil, err
	}
	return s.toAnalyzeResult(s.pipeline.Analyze(ctx, img), a.overlayArgs)
}

type decodeArgs struct {
	sizeArgs
	overlayArgs
	Tensor layout.Tensor `json:"tensor"`
}

func (s *Server) handleLayoutDecode(args json.RawMessage) (interface{}, error) {
	var a decodeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, w, h, err := s.pageSize(a.sizeArgs)
	if err != nil {
		return nil, err
	}
	params, err := layout.ComputeTransform(w, h, s.pipeline.Config().Letterbox)
	if err != nil {
		return nil, err
	}
	return s.toAnalyzeResult(s.pipeline.Process(img, a.Tensor, params), a.overlayArgs)
}

// regionArgs is a region as clients send it.
type regionArgs struct {
	X1       int      `json:"x1"`
	Y1       int      `json:"y1"`
	X2       int      `json:"x2"`
	Y2       int      `json:"y2"`
	Category string   `json:"category"`
	Score    *float64 `json:"score"`
}

func (r regionArgs) toRegion() (layout.Region, error) {
	cat := layout.CategoryFromName(r.Category)
	if cat == layout.Unknown {
		return layout.Region{}, fmt.Errorf("unknown category %q", r.Category)
	}
	score := 1.0
	if r.Score != nil {
		score = *r.Score
	}
	region, ok := layout.NewRegion(r.X1, r.Y1, r.X2, r.Y2, float32(score), cat)
	if !ok {
		return layout.Region{}, fmt.Errorf("invalid region (%d,%d)-(%d,%d): x1 must be < x2, y1 must be < y2",
			r.X1, r.Y1, r.X2, r.Y2)
	}
	return region, nil
}

type renderArgs struct {
	Path        string       `json:"path"`
	Regions     []regionArgs `json:"regions"`
	OverlayPath string       `json:"overlay_path"`
}

type renderResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Regions     int    `json:"regions"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	OverlayPath string `json:"overlay_path,omitempty"`
}

func (s *Server) handleLayoutRender(args json.RawMessage) (interface{}, error) {
	var a renderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	page, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	regions := make([]layout.Region, 0, len(a.Regions))
	for i, ra := range a.Regions {
		r, err := ra.toRegion()
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		regions = append(regions, r)
	}

	out, err := s.overlay.Render(page.Image, regions)
	if err != nil {
		return nil, err
	}

	res := &renderResult{
		Width:   out.Bounds().Dx(),
		Height:  out.Bounds().Dy(),
		Regions: len(regions),
	}
	if a.OverlayPath != "" {
		if err := imaging.SavePNG(out, a.OverlayPath); err != nil {
			return nil, err
		}
		res.OverlayPath = a.OverlayPath
		return res, nil
	}

	encoded, err := imaging.EncodePNG(out)
	if err != nil {
		return nil, err
	}
	res.ImageBase64 = encoded
	res.MimeType = "image/png"
	return res, nil
}

type cropRegionArgs struct {
	Path   string     `json:"path"`
	Region regionArgs `json:"region"`
	Margin int        `json:"margin"`
	Scale  float64    `json:"scale"`
}

func (s *Server) handleLayoutCropRegion(args json.RawMessage) (interface{}, error) {
	var a cropRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	region, err := a.Region.toRegion()
	if err != nil {
		return nil, err
	}
	page, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.ExtractRegion(page.Image, region, a.Margin, a.Scale)
}

type exportArgs struct {
	sizeArgs
	BGRBase64 string       `json:"bgr_base64"`
	Regions   []regionArgs `json:"regions"`
	OutputDir string       `json:"output_dir"`
	BaseName  string       `json:"base_name"`
	Margin    int          `json:"margin"`
}

// exportResult carries the pipeline status next to what was written. Files
// are only written for a successful run.
type exportResult struct {
	Status layout.Status `json:"status"`
	Reason string        `json:"reason,omitempty"`
	*export.Result
}

func (s *Server) handleLayoutExport(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a exportArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.OutputDir == "" {
		return nil, errors.New("output_dir is required")
	}

	img, err := s.loadAnalyzeImage(analyzeArgs{sizeArgs: a.sizeArgs, BGRBase64: a.BGRBase64})
	if err != nil {
		return nil, err
	}

	var (
		regions  []layout.Region
		markdown string
	)
	if len(a.Regions) > 0 {
		regions = make([]layout.Region, 0, len(a.Regions))
		for i, ra := range a.Regions {
			r, err := ra.toRegion()
			if err != nil {
				return nil, fmt.Errorf("region %d: %w", i, err)
			}
			regions = append(regions, r)
		}
		markdown = layout.Markdown(regions, 0)
	} else {
		res := s.pipeline.Analyze(ctx, img)
		if !res.OK() {
			return &exportResult{Status: res.Status, Reason: res.Reason}, nil
		}
		regions, markdown = res.Regions, res.Markdown
	}

	written, err := export.Write(img, regions, markdown, export.Options{
		Dir:      a.OutputDir,
		BaseName: a.BaseName,
		Margin:   a.Margin,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("layout exported",
		zap.String("dir", written.ResourceDir),
		zap.Int("figures", written.FigureCount),
		zap.Int("tables", written.TableCount))
	return &exportResult{Status: layout.StatusOK, Result: written}, nil
}

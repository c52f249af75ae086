package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/card-scanner/internal/carddb"
	"github.com/ironsheep/card-scanner/internal/detection"
	imgproc "github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/workflow"
)

// CardLookup is the card database used by the card_lookup tool.
// *carddb.Client implements it.
type CardLookup interface {
	workflow.Lookup
	Search(ctx context.Context, query string) ([]*carddb.CardInfo, error)
}

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "card_detect", "card_scan").
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
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
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
	switch name {
	case "card_detect":
		return s.handleCardDetect(args)
	case "card_regions":
		return s.handleCardRegions(args)
	case "card_crop_region":
		return s.handleCardCropRegion(args)
	case "card_scan":
		return s.handleCardScan(ctx, args)
	case "card_lookup":
		return s.handleCardLookup(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return errors.New("missing arguments")
	}
	return json.Unmarshal(args, v)
}

// normalize loads path through the cache and returns the upright card.
func (s *Server) normalize(path string) (*image.NRGBA, *detection.Candidate, error) {
	if path == "" {
		return nil, nil, errors.New("path is required")
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, nil, err
	}

	det := s.workflow.Detector()
	c, err := det.DetectQuad(img)
	if err != nil {
		return nil, nil, err
	}
	card, err := det.Warp(img, c)
	if err != nil {
		return nil, nil, err
	}
	return detection.CorrectTilt(card), c, nil
}

// === Detection Handlers ===

type cardDetectArgs struct {
	Path    string  `json:"path"`
	Scale   float64 `json:"scale"`
	Outline bool    `json:"outline"`
}

type cardDetectResult struct {
	Source   *imgproc.ImageInfo `json:"source"`
	Corners  detection.Quad     `json:"corners"`
	Fallback bool               `json:"fallback"`

	// Coverage is the share of the photograph inside the corners.
	Coverage float64             `json:"coverage"`
	Card     *imgproc.CropResult `json:"card"`
	Outline  *imgproc.CropResult `json:"outline,omitempty"`
}

var outlineColor = imgproc.Hue(120)

const outlineThickness = 3

func (s *Server) handleCardDetect(args json.RawMessage) (interface{}, error) {
	var a cardDetectArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}

	card, c, err := s.normalize(a.Path)
	if err != nil {
		return nil, err
	}
	info, err := s.cache.Info(a.Path)
	if err != nil {
		return nil, err
	}
	res := &cardDetectResult{
		Source:   info,
		Corners:  c.Corners,
		Fallback: c.Fallback,
		Coverage: detection.PolygonArea(c.Corners.Slice()) / float64(info.Width*info.Height),
	}
	if res.Card, err = imgproc.Encode(card, a.Scale); err != nil {
		return nil, err
	}

	if a.Outline {
		photo, err := s.cache.Load(a.Path)
		if err != nil {
			return nil, err
		}
		outlined := imgproc.DrawPolygon(photo, c.Corners.ImagePoints(), outlineColor, outlineThickness)
		if res.Outline, err = imgproc.Encode(outlined, a.Scale); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type cardRegionsArgs struct {
	Path    string `json:"path"`
	Overlay bool   `json:"overlay"`
}

type cardRegionsResult struct {
	Width   int                 `json:"width"`
	Height  int                 `json:"height"`
	Regions detection.Regions   `json:"regions"`
	Overlay *imgproc.CropResult `json:"overlay,omitempty"`
}

func (s *Server) handleCardRegions(args json.RawMessage) (interface{}, error) {
	var a cardRegionsArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	card, _, err := s.normalize(a.Path)
	if err != nil {
		return nil, err
	}

	res := &cardRegionsResult{
		Width:   card.Bounds().Dx(),
		Height:  card.Bounds().Dy(),
		Regions: s.workflow.Extractor().All(card),
	}
	if a.Overlay {
		res.Overlay, err = imgproc.Encode(workflow.DrawOverlay(card, res.Regions), 1.0)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

type cardCropRegionArgs struct {
	Path   string  `json:"path"`
	Region string  `json:"region"`
	Scale  float64 `json:"scale"`
}

func (s *Server) handleCardCropRegion(args json.RawMessage) (interface{}, error) {
	var a cardCropRegionArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}

	card, _, err := s.normalize(a.Path)
	if err != nil {
		return nil, err
	}

	ex := s.workflow.Extractor()
	var r detection.Region
	switch a.Region {
	case workflow.CropName:
		r = ex.Name(card)
	case workflow.CropCollectorNumber:
		r = ex.CollectorNumber(card)
	case workflow.CropSetCode:
		r = ex.SetCode(card)
	case workflow.CropTextBox:
		r = ex.TextBox(card)
	case workflow.CropArt:
		r = ex.Art(card)
	default:
		return nil, fmt.Errorf("unknown region %q (valid: %v)", a.Region, regionNames)
	}
	if r.Empty() {
		return nil, fmt.Errorf("region %q not found on card", a.Region)
	}

	crop, err := imgproc.Crop(card, r.Rect())
	if err != nil {
		return nil, err
	}
	return imgproc.Encode(crop, a.Scale)
}

// === Scan Handlers ===

type cardScanArgs struct {
	Path          string `json:"path"`
	IncludeImages bool   `json:"include_images"`
}

type cardScanResult struct {
	*workflow.Result
	CardImage    *imgproc.CropResult `json:"card_image,omitempty"`
	OverlayImage *imgproc.CropResult `json:"overlay_image,omitempty"`
}

func (s *Server) handleCardScan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a cardScanArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.workflow.ProcessImage(ctx, img)
	if err != nil {
		return nil, err
	}
	res.Source = a.Path

	out := &cardScanResult{Result: res}
	if a.IncludeImages {
		if out.CardImage, err = imgproc.Encode(res.Image, 1.0); err != nil {
			return nil, err
		}
		if res.Overlay != nil {
			if out.OverlayImage, err = imgproc.Encode(res.Overlay, 1.0); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

type cardLookupArgs struct {
	Set    string `json:"set"`
	Number string `json:"number"`
	Name   string `json:"name"`
	Query  string `json:"query"`
}

func (s *Server) handleCardLookup(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.lookup == nil {
		return nil, errors.New("card lookup is disabled; start the server with --lookup")
	}
	var a cardLookupArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	switch {
	case a.Set != "" && a.Number != "":
		return s.lookup.ByCollectorNumber(ctx, a.Set, a.Number)
	case a.Name != "":
		return s.lookup.ByFuzzyName(ctx, a.Name)
	case a.Query != "":
		return s.lookup.Search(ctx, a.Query)
	default:
		return nil, errors.New("one of set+number, name or query is required")
	}
}

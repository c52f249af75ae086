package server

import (
	"context"
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"card_detect",
		"card_regions",
		"card_crop_region",
		"card_scan",
		"card_lookup",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		toolMap[tool.Name] = tool
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(tools))
	}
	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}
			if _, ok := tool.InputSchema["properties"].(map[string]interface{}); !ok {
				t.Error("InputSchema properties should be a map")
			}
		})
	}
}

func TestToolDefinitions_RequiredPath(t *testing.T) {
	toolsRequiringPath := map[string]bool{
		"card_detect":      true,
		"card_regions":     true,
		"card_crop_region": true,
		"card_scan":        true,
	}

	for _, tool := range GetToolDefinitions() {
		if !toolsRequiringPath[tool.Name] {
			continue
		}
		required, ok := tool.InputSchema["required"].([]string)
		if !ok {
			t.Errorf("%s: required should be []string", tool.Name)
			continue
		}
		found := false
		for _, r := range required {
			if r == "path" {
				found = true
			}
		}
		if !found {
			t.Errorf("%s should require 'path'", tool.Name)
		}
	}
}

func TestToolDefinitions_CropRegionEnum(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		if tool.Name != "card_crop_region" {
			continue
		}
		props := tool.InputSchema["properties"].(map[string]interface{})
		region := props["region"].(map[string]interface{})
		enum, ok := region["enum"].([]string)
		if !ok {
			t.Fatal("region enum should be []string")
		}
		want := map[string]bool{"name": true, "collector_number": true, "set_code": true, "text_box": true, "art": true}
		if len(enum) != len(want) {
			t.Errorf("enum: got %v", enum)
		}
		for _, e := range enum {
			if !want[e] {
				t.Errorf("unexpected region %q", e)
			}
		}
		return
	}
	t.Fatal("card_crop_region not defined")
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	tools, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(tools) != 5 {
		t.Errorf("Expected 5 tools, got %d", len(tools))
	}
}

// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mcp exposes the search engine to MCP clients over stdio, so
// editors and agents can query the local index without the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	hound "github.com/kadirpekel/hound"
	"github.com/kadirpekel/hound/pkg/registry"
	"github.com/kadirpekel/hound/pkg/search"
)

// Server bridges MCP tool calls to the search engine and the directory
// registry. Auth is intentionally absent: stdio implies local trust.
type Server struct {
	engine   *search.Engine
	registry *registry.Registry
	mcp      *server.MCPServer
}

func New(engine *search.Engine, reg *registry.Registry) *Server {
	s := &Server{
		engine:   engine,
		registry: reg,
	}
	s.mcp = server.NewMCPServer(
		"hound",
		hound.Version,
		server.WithToolCapabilities(true),
	)
	s.registerSearchTool()
	s.registerListDirectoriesTool()
	return s
}

// Serve blocks handling stdio requests until the client disconnects.
func (s *Server) Serve() error {
	slog.Info("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerSearchTool() {
	tool := mcp.NewTool(
		"search",
		mcp.WithDescription("Search the locally indexed documents. Supports keyword (TF-IDF), semantic (embedding similarity) and hybrid modes. Returns matching files with highlighted snippets ranked by relevance."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query, natural language or keywords")),
		mcp.WithString("search_type",
			mcp.Description("One of: keyword, semantic, hybrid (default: hybrid)")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10)")),
		mcp.WithNumber("threshold",
			mcp.Description("Minimum semantic similarity in [0,1] (default: 0.3)")),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		query, _ := args["query"].(string)
		if query == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}

		req := search.Request{Query: query, Type: search.TypeHybrid}
		if st, ok := args["search_type"].(string); ok && st != "" {
			req.Type = search.Type(st)
		}
		if limit, ok := args["limit"].(float64); ok {
			req.Limit = int(limit)
		}
		if threshold, ok := args["threshold"].(float64); ok {
			req.Threshold = &threshold
		}

		results, err := s.engine.Search(ctx, req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		payload, err := json.MarshalIndent(map[string]any{
			"query":         query,
			"search_type":   req.Type,
			"results":       results,
			"total_results": len(results),
		}, "", "  ")
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(payload)), nil
	})
}

func (s *Server) registerListDirectoriesTool() {
	tool := mcp.NewTool(
		"list_directories",
		mcp.WithDescription("List the directories registered for indexing, with their index status and progress."),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries := s.registry.List()
		payload, err := json.MarshalIndent(map[string]any{
			"directories": entries,
			"total":       len(entries),
		}, "", "  ")
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(payload)), nil
	})
}

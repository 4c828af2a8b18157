package mcp

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/usecase/inquiry"
)

// Server exposes the inquiry pipeline as an MCP stdio server so other agents
// can drive vehicle lookups as a tool.
type Server struct {
	orchestrator *inquiry.Orchestrator
}

func NewServer(orchestrator *inquiry.Orchestrator) *Server {
	return &Server{orchestrator: orchestrator}
}

type vehicleLookupParams struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"Session ID for multi-turn context; omit to start a new session"`
	Message   string `json:"message" jsonschema:"The free-text question about a vehicle, e.g. recall history for a VIN"`
}

// Run serves MCP over stdio until the context is canceled
func (s *Server) Run(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "vinq",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vehicle_lookup",
		Description: "Answer a natural-language question about a vehicle by fetching recall, title, valuation and spec data from live sources. Returns the answer and the session_id to pass back for follow-up questions.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {
					Type:        "string",
					Description: "Session ID for multi-turn context; omit to start a new session",
				},
				"message": {
					Type:        "string",
					Description: "The free-text question about a vehicle, e.g. recall history for a VIN",
				},
			},
			Required: []string{"message"},
		},
	}, s.vehicleLookup)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server failed")
	}
	return nil
}

func (s *Server) vehicleLookup(ctx context.Context, req *mcp.CallToolRequest, params *vehicleLookupParams) (*mcp.CallToolResult, any, error) {
	if params.Message == "" {
		return nil, nil, goerr.New("message is required")
	}

	reply, err := s.orchestrator.HandleMessage(ctx, model.SessionID(params.SessionID), params.Message)
	if err != nil {
		return nil, nil, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: reply.Text},
		},
	}, map[string]any{
		"session_id": string(reply.SessionID),
		"kind":       string(reply.Kind),
	}, nil
}

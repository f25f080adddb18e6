package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deepscout/pkg/settings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPProbeRequest describes an MCP server to connect to and inspect.
type MCPProbeRequest struct {
	Name           string            `json:"name"`
	Transport      string            `json:"transport"`
	Command        string            `json:"command,omitempty"`
	Args           []string          `json:"args,omitempty"`
	URL            string            `json:"url,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
}

// MCPProbeResponse echoes the request plus the tools the server exposes.
type MCPProbeResponse struct {
	Name      string             `json:"name"`
	Transport string             `json:"transport"`
	Command   string             `json:"command,omitempty"`
	Args      []string           `json:"args,omitempty"`
	URL       string             `json:"url,omitempty"`
	Env       map[string]string  `json:"env,omitempty"`
	Tools     []settings.MCPTool `json:"tools"`
}

// defaultProbeTimeout bounds a metadata probe; stdio servers may need to
// download their package on first launch.
const defaultProbeTimeout = 300 * time.Second

// MCPService connects to external MCP servers to list their tools, used when
// an account registers a custom server in its settings.
type MCPService struct{}

// NewMCPService creates the service.
func NewMCPService() *MCPService {
	return &MCPService{}
}

// Probe connects to the described server, performs the MCP handshake, lists
// tools and disconnects.
func (s *MCPService) Probe(ctx context.Context, req *MCPProbeRequest) (*MCPProbeResponse, error) {
	timeout := defaultProbeTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := s.connect(ctx, req)
	if err != nil {
		mcpProbesTotal.WithLabelValues("connect_error").Inc()
		return nil, err
	}
	defer client.Close()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "deepscout", Version: "1.0.0"}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		mcpProbesTotal.WithLabelValues("handshake_error").Inc()
		return nil, fmt.Errorf("MCP handshake failed: %w", err)
	}

	listed, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpProbesTotal.WithLabelValues("list_error").Inc()
		return nil, fmt.Errorf("failed to list MCP tools: %w", err)
	}

	tools := make([]settings.MCPTool, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		tools = append(tools, settings.MCPTool{Name: tool.Name, Description: tool.Description})
	}

	mcpProbesTotal.WithLabelValues("ok").Inc()
	return &MCPProbeResponse{
		Name:      probeName(req),
		Transport: req.Transport,
		Command:   req.Command,
		Args:      req.Args,
		URL:       req.URL,
		Env:       req.Env,
		Tools:     tools,
	}, nil
}

func (s *MCPService) connect(ctx context.Context, req *MCPProbeRequest) (*mcpclient.Client, error) {
	switch req.Transport {
	case settings.TransportStdio:
		if req.Command == "" {
			return nil, errors.New("stdio transport requires a command")
		}
		env := make([]string, 0, len(req.Env))
		for k, v := range req.Env {
			env = append(env, k+"="+v)
		}
		client, err := mcpclient.NewStdioMCPClient(req.Command, env, req.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to start MCP server process: %w", err)
		}
		return client, nil

	case settings.TransportStreamableHTTP:
		if req.URL == "" {
			return nil, errors.New("streamable_http transport requires a url")
		}
		client, err := mcpclient.NewStreamableHttpClient(req.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP client: %w", err)
		}
		if err := client.Start(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to MCP server: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported MCP transport %q", req.Transport)
	}
}

// probeName prefers the requested name, then the command or URL.
func probeName(req *MCPProbeRequest) string {
	if req.Name != "" {
		return req.Name
	}
	if req.Command != "" {
		return req.Command
	}
	if req.URL != "" {
		return req.URL
	}
	return "unknown"
}

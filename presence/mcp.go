package presence

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/argos/catalog"
	"github.com/hazyhaar/argos/kit"
	"github.com/hazyhaar/argos/safe"
)

// RegisterMCP registers the argos tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCheckTool(srv)
	s.registerListMethodsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

// --- argos_check ---

type checkRequest struct {
	Identity string `json:"identity"`
}

func (s *Service) checkEndpoint() kit.Endpoint {
	return s.endpoint("check", true, func(ctx context.Context, req any) (any, error) {
		r := req.(*checkRequest)
		if id := strings.TrimSpace(r.Identity); id != "" {
			if err := safe.ValidateIdentity(id); err != nil {
				return nil, &kit.HTTPError{Status: http.StatusBadRequest, Err: err}
			}
		}
		rep, err := s.Check(ctx, r.Identity)
		if errors.Is(err, ErrEmptyIdentity) {
			return nil, &kit.HTTPError{Status: http.StatusBadRequest, Err: err}
		}
		return rep, err
	})
}

func (s *Service) registerCheckTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "argos_check",
		Description: "Check whether a username or email exists on every site in the method catalog. Returns per-site verdicts (EXISTS, NOT_EXISTS, INDETERMINATE), the per-method outcomes and any profile metadata found.",
		InputSchema: inputSchema(map[string]any{
			"identity": map[string]any{"type": "string", "description": "Username or email to look for"},
		}, []string{"identity"}),
	}
	kit.RegisterMCPTool(srv, tool, s.checkEndpoint(), kit.DecodeArgs[checkRequest])
}

// --- argos_list_methods ---

type listMethodsRequest struct {
	Site string `json:"site,omitempty"`
}

type listMethodsResponse struct {
	Count   int             `json:"count"`
	Methods []catalog.Entry `json:"methods"`
}

func (s *Service) listMethodsEndpoint() kit.Endpoint {
	return s.endpoint("list_methods", false, func(ctx context.Context, req any) (any, error) {
		r := req.(*listMethodsRequest)
		entries, err := s.Methods(ctx, r.Site)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []catalog.Entry{}
		}
		return &listMethodsResponse{Count: len(entries), Methods: entries}, nil
	})
}

func (s *Service) registerListMethodsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "argos_list_methods",
		Description: "List learned detection methods, optionally only those whose site name starts with a prefix.",
		InputSchema: inputSchema(map[string]any{
			"site": map[string]any{"type": "string", "description": "Site name prefix (e.g. instagram)"},
		}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.listMethodsEndpoint(), kit.DecodeArgs[listMethodsRequest])
}

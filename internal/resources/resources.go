// Package resources registers the read-only MCP resource surface:
// cookie-session:// profiles and prompt:// methodology guides.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/probegate/probegate/internal/cookies"
)

const cookieScheme = "cookie-session://"

// cookieProfileView is the index entry for a profile: registry
// metadata only, no cookie values. Reading the per-profile resource
// returns the full session including values.
type cookieProfileView struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	CacheTTL    int               `json:"cache_ttl_seconds"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RegisterCookieSessions adds the cookie profile index and one resource
// per registered profile. Profiles are enumerated at startup; edits to
// the registry need a server restart to surface.
func RegisterCookieSessions(server *mcpsdk.Server, provider *cookies.Provider) {
	profiles, err := provider.Profiles()
	if err != nil {
		log.Warn().Err(err).Msg("cookie profile registry unreadable, resource surface empty")
		return
	}

	server.AddResource(&mcpsdk.Resource{
		URI:         cookieScheme,
		Name:        "cookie-sessions",
		Description: "Index of named cookie profiles available to http_request",
		MIMEType:    "application/json",
	}, indexHandler(provider))

	for _, p := range profiles {
		server.AddResource(&mcpsdk.Resource{
			URI:         cookieScheme + p.Name,
			Name:        "cookie-session-" + p.Name,
			Description: p.Description,
			MIMEType:    "application/json",
		}, profileHandler(provider, p.Name))
	}
	log.Info().Int("profiles", len(profiles)).Msg("cookie session resources registered")
}

func indexHandler(provider *cookies.Provider) mcpsdk.ResourceHandler {
	return func(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
		profiles, err := provider.Profiles()
		if err != nil {
			return nil, err
		}
		views := make([]cookieProfileView, 0, len(profiles))
		for _, p := range profiles {
			views = append(views, cookieProfileView{
				Name:        p.Name,
				Description: p.Description,
				CacheTTL:    p.TTLSeconds,
				Metadata:    p.Metadata,
			})
		}
		return jsonResource(req.Params.URI, map[string]any{"profiles": views, "count": len(views)})
	}
}

func profileHandler(provider *cookies.Provider, name string) mcpsdk.ResourceHandler {
	return func(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
		sess, err := provider.Session(ctx, name)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, sess)
	}
}

func jsonResource(uri string, v any) (*mcpsdk.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	return &mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

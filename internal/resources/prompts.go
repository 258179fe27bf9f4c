package resources

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

//go:embed builtin/*.md
var builtinPrompts embed.FS

const promptScheme = "prompt://"

// Guide is one methodology document served under prompt://<id>.
type Guide struct {
	ID      string `json:"id"`
	Source  string `json:"source"` // builtin or user
	Content string `json:"content"`
}

// LoadGuides merges built-in guides with user files from userDir.
// A user file with the same stem overrides the built-in.
func LoadGuides(userDir string) map[string]Guide {
	guides := map[string]Guide{}

	entries, err := fs.ReadDir(builtinPrompts, "builtin")
	if err == nil {
		for _, e := range entries {
			raw, err := builtinPrompts.ReadFile("builtin/" + e.Name())
			if err != nil {
				continue
			}
			id := stem(e.Name())
			guides[id] = Guide{ID: id, Source: "builtin", Content: string(raw)}
		}
	}

	if userDir != "" {
		files, err := os.ReadDir(userDir)
		if err == nil {
			for _, f := range files {
				if f.IsDir() {
					continue
				}
				ext := strings.ToLower(filepath.Ext(f.Name()))
				if ext != ".md" && ext != ".txt" && ext != ".yaml" && ext != ".yml" {
					continue
				}
				raw, err := os.ReadFile(filepath.Join(userDir, f.Name()))
				if err != nil {
					log.Warn().Err(err).Str("file", f.Name()).Msg("prompt guide unreadable")
					continue
				}
				id := stem(f.Name())
				guides[id] = Guide{ID: id, Source: "user", Content: string(raw)}
			}
		}
	}
	return guides
}

// RegisterPrompts adds the prompt index and one resource per guide.
func RegisterPrompts(server *mcpsdk.Server, userDir string) {
	guides := LoadGuides(userDir)

	server.AddResource(&mcpsdk.Resource{
		URI:         promptScheme,
		Name:        "prompts",
		Description: "Index of methodology guides",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
		ids := make([]string, 0, len(guides))
		for id := range guides {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return jsonResource(req.Params.URI, map[string]any{"guides": ids, "count": len(ids)})
	})

	for id, guide := range guides {
		g := guide
		server.AddResource(&mcpsdk.Resource{
			URI:         promptScheme + id,
			Name:        "prompt-" + id,
			Description: "Methodology guide (" + g.Source + "); append ?format=json for structured output",
			MIMEType:    "text/markdown",
		}, func(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
			if format(req.Params.URI) == "json" {
				data, err := json.MarshalIndent(g, "", "  ")
				if err != nil {
					return nil, err
				}
				return &mcpsdk.ReadResourceResult{
					Contents: []*mcpsdk.ResourceContents{
						{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
					},
				}, nil
			}
			return &mcpsdk.ReadResourceResult{
				Contents: []*mcpsdk.ResourceContents{
					{URI: req.Params.URI, MIMEType: "text/markdown", Text: g.Content},
				},
			}, nil
		})
	}
	log.Info().Int("guides", len(guides)).Msg("prompt resources registered")
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func format(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Query().Get("format")
}

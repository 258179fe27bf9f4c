package tools

import "encoding/json"

// Tool input schemas. Descriptions call out the lenient spellings the
// coercion layer accepts, since agents read these schemas verbatim.

var emptySchema = json.RawMessage(`{"type":"object"}`)

var httpRequestSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"method": {"type": "string", "description": "HTTP method: GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS (default GET)"},
		"url": {"type": "string", "description": "Absolute http(s) URL"},
		"headers": {"type": "object", "description": "Request headers; also accepts JSON object text"},
		"query_params": {"type": "object", "description": "Query parameters merged into the URL"},
		"body": {"type": "string", "description": "Raw request body"},
		"cookies": {"type": "object", "description": "Explicit cookies; override cookie_profile values per name"},
		"cookie_profile": {"type": "string", "description": "Named cookie profile to merge in"},
		"auth": {"type": "object", "description": "{type: basic|bearer, username, password, token}"},
		"timeout": {"type": "number", "description": "Per-request timeout in seconds"},
		"follow_redirects": {"type": "boolean", "description": "Follow redirects (default true); accepts true/false/1/0/yes/no"},
		"verify_tls": {"type": "boolean", "description": "Verify TLS certificates (default from config)"},
		"tags": {"type": "array", "items": {"type": "string"}, "description": "Tags stored on the logged request"},
		"mission_id": {"type": "string", "description": "Mission override; defaults to the ambient mission context"}
	},
	"required": ["url"]
}`)

var createTargetSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"host": {"type": "string"},
		"port": {"type": "integer", "description": "Only for non-default ports; omit for 80/443"},
		"protocol": {"type": "string", "enum": ["http", "https"]},
		"title": {"type": "string"},
		"risk_level": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
		"notes": {"type": "string"}
	},
	"required": ["host", "protocol"]
}`)

var updateTargetStatusSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"target_id": {"type": "string", "description": "Defaults to the ambient target context"},
		"status": {"type": "string", "enum": ["active", "inactive", "blocked", "completed"]},
		"risk_level": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
		"title": {"type": "string"},
		"notes": {"type": "string"}
	}
}`)

var getTargetSummarySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"target_id": {"type": "string", "description": "Defaults to the ambient target context"}
	}
}`)

var searchTargetsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"status": {"type": "string", "enum": ["active", "inactive", "blocked", "completed"]},
		"risk_level": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
		"host_contains": {"type": "string", "description": "Case-insensitive host substring"},
		"limit": {"type": "integer"},
		"offset": {"type": "integer"}
	}
}`)

var getTargetContextSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"target_id": {"type": "string", "description": "Defaults to the ambient target context"},
		"level": {"type": "string", "enum": ["current", "version", "history", "diff"], "description": "Detail level (default current)"},
		"version": {"type": "integer", "description": "Version to fetch when level=version"},
		"from_version": {"type": "integer", "description": "Older version when level=diff"},
		"to_version": {"type": "integer", "description": "Newer version when level=diff (default current)"},
		"limit": {"type": "integer", "description": "History length when level=history"}
	}
}`)

var updateTargetContextSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"target_id": {"type": "string", "description": "Defaults to the ambient target context"},
		"user_context": {"type": "string", "description": "Human-maintained context text"},
		"agent_context": {"type": "string", "description": "Agent-maintained context text"},
		"change_summary": {"type": "string", "description": "One-line description of what changed and why"},
		"append_mode": {"type": "boolean", "description": "Append to the previous text instead of replacing it (default true)"},
		"expected_version": {"type": "integer", "description": "Optimistic check: fail with conflict if the head version differs"},
		"created_by": {"type": "string", "enum": ["user", "agent", "system"]}
	},
	"required": ["change_summary"]
}`)

var createMissionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"goal": {"type": "string"},
		"name": {"type": "string"},
		"mission_type": {"type": "string", "description": "Mission category, e.g. recon, exploitation (default general)"},
		"hypothesis": {"type": "string", "description": "Working hypothesis the mission tests"},
		"scope": {"type": "object", "description": "In/out-of-scope constraints; also accepts JSON object text"},
		"target_ids": {"type": "array", "items": {"type": "string"}},
		"context": {"type": "object", "description": "Initial mission context; also accepts JSON object text"},
		"activate": {"type": "boolean", "description": "Also pin the new mission as this connection's ambient context"}
	},
	"required": ["goal"]
}`)

var updateMissionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"mission_id": {"type": "string", "description": "Defaults to the ambient mission context"},
		"name": {"type": "string"},
		"goal": {"type": "string"},
		"hypothesis": {"type": "string"},
		"scope": {"type": "object", "description": "Replaces the mission scope"},
		"status": {"type": "string", "enum": ["active", "paused", "completed", "failed"]},
		"context": {"type": "object", "description": "Merged into the mission context key-by-key"}
	}
}`)

var setMissionContextSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"mission_id": {"type": "string"},
		"target_id": {"type": "string"},
		"cookie_profile": {"type": "string", "description": "Cookie profile applied to requests that name none"}
	},
	"required": ["mission_id"]
}`)

var getMissionContextSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"focus": {"type": "string", "description": "Optional query; returns semantically similar past actions"}
	}
}`)

var recordActionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"mission_id": {"type": "string", "description": "Defaults to the ambient mission context"},
		"target_id": {"type": "string", "description": "Defaults to the ambient target context"},
		"technique": {"type": "string", "description": "Technique name, e.g. sql_injection"},
		"hypothesis": {"type": "string", "description": "What this attempt was expected to show"},
		"payload": {"type": "string"},
		"result": {"type": "string", "description": "What actually happened"},
		"learning": {"type": "string", "description": "Takeaway worth surfacing on later failures"},
		"success": {"type": "boolean", "description": "Omit when undecided; accepts true/false/1/0/yes/no"},
		"link_recent_requests": {"type": "integer", "description": "Attach the mission's N most recent logged requests to this action (default 3, 0 disables)"},
		"metadata": {"type": "object"}
	},
	"required": ["technique", "result"]
}`)

var findSimilarSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Natural-language description of the technique"},
		"mission_id": {"type": "string", "description": "Restrict to one mission; omit for a global search"},
		"limit": {"type": "integer"},
		"min_similarity": {"type": "number", "description": "Similarity floor in [0,1] (default 0.6)"}
	},
	"required": ["query"]
}`)

var searchRequestsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"target_id": {"type": "string"},
		"mission_id": {"type": "string"},
		"method": {"type": "string"},
		"status": {"type": "integer", "description": "Exact response status"},
		"host_contains": {"type": "string"},
		"path_contains": {"type": "string"},
		"tag": {"type": "string"},
		"limit": {"type": "integer"},
		"offset": {"type": "integer"}
	}
}`)

var searchTechniquesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"success_only": {"type": "boolean", "description": "Only techniques with at least one success"},
		"mission_type": {"type": "string", "description": "Restrict to actions from missions of this type"},
		"min_success_rate": {"type": "number", "description": "Success-rate floor in [0,1]"},
		"technique_substring": {"type": "string", "description": "Case-insensitive technique-name substring"},
		"limit": {"type": "integer", "description": "Max techniques returned (default 20)"}
	}
}`)

var techniqueStatsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"mission_id": {"type": "string", "description": "Restrict to one mission; omit for global stats"},
		"technique": {"type": "string", "description": "Fetch one technique in detail, with recent failure learnings"}
	}
}`)

var addToLibrarySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"category": {"type": "string", "description": "e.g. sqli, xss, auth_bypass"},
		"technique": {"type": "string"},
		"content": {"type": "string", "description": "The reusable payload or procedure"},
		"description": {"type": "string"},
		"metadata": {"type": "object"}
	},
	"required": ["category", "technique", "content"]
}`)

var searchLibrarySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string"},
		"category": {"type": "string"},
		"limit": {"type": "integer"},
		"min_similarity": {"type": "number", "description": "Similarity floor in [0,1] (default 0.55)"}
	},
	"required": ["query"]
}`)

var recordOutcomeSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"entry_id": {"type": "string"},
		"success": {"type": "boolean", "description": "Accepts true/false/1/0/yes/no"}
	},
	"required": ["entry_id", "success"]
}`)

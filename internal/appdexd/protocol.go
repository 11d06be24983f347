package appdexd

import "encoding/json"

// The daemon speaks JSON-RPC 2.0, one object per line.

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type SearchParams struct {
	Q            string   `json:"q,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	MinDownloads uint64   `json:"min_downloads,omitempty"`
	MaxRisk      string   `json:"max_risk,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	Offset       int      `json:"offset,omitempty"`
}

type SearchItem struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Summary   string   `json:"summary,omitempty"`
	Origin    string   `json:"origin,omitempty"`
	Risk      string   `json:"risk"`
	Support   string   `json:"support"`
	Reasons   []string `json:"reasons,omitempty"`
	Downloads uint64   `json:"downloads"`
}

type StatusResult struct {
	InstanceID string `json:"instance_id"`
	Version    string `json:"version"`
	Generation uint64 `json:"generation"`
	Apps       int    `json:"apps"`

	StatsPresent     bool  `json:"stats_present"`
	StatsFresh       bool  `json:"stats_fresh"`
	StatsGeneratedAt int64 `json:"stats_generated_at,omitempty"`
}

type RefreshResult struct {
	Apps        int    `json:"apps"`
	GeneratedAt int64  `json:"generated_at"`
	Generation  uint64 `json:"generation"`
}

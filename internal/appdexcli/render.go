package appdexcli

import (
	"encoding/json"
	"fmt"
	"strings"

	"appdex/internal/model"
)

// resultRow is the CLI-facing projection of one search hit.
type resultRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Summary   string `json:"summary,omitempty"`
	Risk      string `json:"risk"`
	Downloads uint64 `json:"downloads"`
}

func rowFromRecord(rec *model.IndexRecord) resultRow {
	return resultRow{
		ID:        string(rec.ID),
		Name:      rec.Entry.Name,
		Summary:   rec.Entry.Summary,
		Risk:      rec.Assessment.Risk.String(),
		Downloads: rec.Downloads(),
	}
}

func renderJSONL(rows []resultRow) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	for _, r := range rows {
		_ = enc.Encode(r)
	}
	return b.String()
}

func renderDefault(rows []resultRow) string {
	var b strings.Builder
	for _, r := range rows {
		_, _ = fmt.Fprintf(&b, "%s\t%s\t[%s]\t%d\n", r.ID, r.Name, r.Risk, r.Downloads)
	}
	return b.String()
}

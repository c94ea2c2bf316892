package httpapi

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mediafetch/internal/storage"
	"mediafetch/internal/task/engine"
	"mediafetch/internal/task/scheduler"
	"mediafetch/internal/window"
)

// SourceList accepts either a JSON array or a newline/comma separated string.
type SourceList []string

func (s *SourceList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		*s = storage.ParseSources(raw)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("sources must be a string or an array of strings")
	}
	*s = storage.ParseSources(strings.Join(list, "\n"))
	return nil
}

type CreateTaskRequest struct {
	Sources          SourceList `json:"sources"`
	DownloadStrategy string     `json:"download_strategy,omitempty"`
	SaveStrategy     string     `json:"save_strategy,omitempty"`
	CatalogueName    string     `json:"catalogue_name"`
	Priority         *int       `json:"priority,omitempty"`
}

type UpdateTaskRequest struct {
	Sources          *SourceList `json:"sources,omitempty"`
	DownloadStrategy *string     `json:"download_strategy,omitempty"`
	SaveStrategy     *string     `json:"save_strategy,omitempty"`
	CatalogueName    *string     `json:"catalogue_name,omitempty"`
	Priority         *int        `json:"priority,omitempty"`
}

type CreateWindowRequest struct {
	Start window.TimeOfDay `json:"start"`
	End   window.TimeOfDay `json:"end"`
}

type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type StrategiesResponse struct {
	Download        []StrategyInfo `json:"download"`
	Save            []StrategyInfo `json:"save"`
	DefaultDownload string         `json:"default_download"`
	DefaultSave     string         `json:"default_save"`
}

type LogsResponse struct {
	Lines []string `json:"lines"`
}

type EngineResponse struct {
	Engine    engine.Snapshot     `json:"engine"`
	Scheduler *scheduler.Snapshot `json:"scheduler,omitempty"`
	JobActive bool                `json:"job_active"`
}

type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

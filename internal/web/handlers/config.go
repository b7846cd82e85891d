package handlers

import (
	"cmp"
	"net/http"
	"slices"

	"github.com/kozaktomas/photo-report/internal/config"
	"github.com/kozaktomas/photo-report/internal/constants"
	"github.com/kozaktomas/photo-report/internal/database"
	"github.com/kozaktomas/photo-report/internal/layout"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ReportTypeInfo describes a monitoring type that can be exported.
type ReportTypeInfo struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Prefix string `json:"prefix"`
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	ReportTypes   []ReportTypeInfo `json:"report_types"`
	DefaultLayout string           `json:"default_layout"`
	Layouts       []string         `json:"layouts"`
	Orientation   string           `json:"orientation"`
	BatchSize     int              `json:"batch_size"`
	MaxBatchSize  int              `json:"max_batch_size"`
	Database      string           `json:"database"`
}

// Get returns the available configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	types := make([]ReportTypeInfo, 0, len(h.config.Types.Types))
	for key := range h.config.Types.Types {
		rt := h.config.ReportType(key)
		types = append(types, ReportTypeInfo{Key: key, Title: rt.Title, Prefix: rt.Prefix})
	}
	slices.SortFunc(types, func(a, b ReportTypeInfo) int { return cmp.Compare(a.Key, b.Key) })

	layouts := make([]string, 0, len(layout.Presets))
	for _, p := range layout.Presets {
		layouts = append(layouts, p.String())
	}

	defaultLayout := h.config.Report.DefaultLayout
	if spec, err := layout.ParseSpec(defaultLayout); err == nil {
		defaultLayout = spec.String()
	} else {
		defaultLayout = constants.DefaultLayout
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		ReportTypes:   types,
		DefaultLayout: defaultLayout,
		Layouts:       layouts,
		Orientation:   string(layout.ParseOrientation(h.config.Report.Orientation)),
		BatchSize:     cmp.Or(h.config.Pipeline.BatchSize, constants.DefaultBatchSize),
		MaxBatchSize:  constants.MaxBatchSize,
		Database:      database.BackendName(),
	})
}

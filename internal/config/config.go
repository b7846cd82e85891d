package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/photo-report/internal/constants"
)

//go:embed report_types.yaml
var reportTypesYAML []byte

type Config struct {
	Database  DatabaseConfig
	Legacy    LegacyConfig
	Transcode TranscodeConfig
	Pipeline  PipelineConfig
	Report    ReportConfig
	Log       LogConfig
	Web       WebConfig
	Types     ReportTypesConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// LegacyConfig points at the older MariaDB monitoring database.
// Records are read from it instead of PostgreSQL when DSN is set.
type LegacyConfig struct {
	DSN string // e.g. monitor:monitor@tcp(mariadb:3306)/monitoring?parseTime=true
}

type TranscodeConfig struct {
	MaxDimension int           // longer edge in pixels (default 800)
	Quality      float64       // JPEG quality 0..1 (default 0.6)
	Timeout      time.Duration // per image (default 4s)
	MaxBytes     int64         // largest accepted source image (default 25 MiB)
	MaxPixels    int64         // largest accepted source raster (default 50 megapixels)
}

type PipelineConfig struct {
	BatchSize  int           // images transcoded concurrently per batch (default 5)
	BatchPause time.Duration // pause between batches (default 50ms)
}

type ReportConfig struct {
	DefaultLayout string // "<cols>x<rows>" (default 2x4)
	Orientation   string // "portrait" or "landscape"
}

type LogConfig struct {
	Level  string // logrus level name (default info)
	Format string // "text" or "json"
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS whitelist in addition to localhost
}

type ReportTypesConfig struct {
	Types map[string]ReportType `yaml:"report_types"`
}

// ReportType describes one monitoring type that can be exported as a photo report.
type ReportType struct {
	Key    string `yaml:"-"`
	Title  string `yaml:"title"`
	Prefix string `yaml:"prefix"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a float in (0, 1]. Anything else yields the default.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envDuration accepts Go duration strings ("4s", "50ms") or plain milliseconds.
// Zero is a valid value (it disables pauses), negative values are not.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var types ReportTypesConfig
	if err := yaml.Unmarshal(reportTypesYAML, &types); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded report_types.yaml: " + err.Error())
	}
	for key, rt := range types.Types {
		rt.Key = key
		if rt.Prefix == "" {
			rt.Prefix = DerivePrefix(key)
		}
		types.Types[key] = rt
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Legacy: LegacyConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Transcode: TranscodeConfig{
			MaxDimension: envInt("TRANSCODE_MAX_DIMENSION", constants.DefaultMaxDimension),
			Quality:      envFloat("TRANSCODE_QUALITY", constants.DefaultJPEGQuality),
			Timeout:      envDuration("TRANSCODE_TIMEOUT", constants.DefaultTranscodeTimeout),
			MaxBytes:     int64(envInt("TRANSCODE_MAX_BYTES", constants.DefaultMaxImageBytes)),
			MaxPixels:    int64(envInt("TRANSCODE_MAX_PIXELS", constants.DefaultMaxPixels)),
		},
		Pipeline: PipelineConfig{
			BatchSize:  envInt("PIPELINE_BATCH_SIZE", constants.DefaultBatchSize),
			BatchPause: envDuration("PIPELINE_BATCH_PAUSE", constants.DefaultBatchPause),
		},
		Report: ReportConfig{
			DefaultLayout: envString("REPORT_DEFAULT_LAYOUT", constants.DefaultLayout),
			Orientation:   envString("REPORT_ORIENTATION", "portrait"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Types: types,
	}
}

// ReportType returns the report type for a monitoring type key.
// Unknown keys get a title equal to the key and a derived prefix.
func (c *Config) ReportType(key string) ReportType {
	if rt, ok := c.Types.Types[key]; ok {
		return rt
	}
	return ReportType{Key: key, Title: key, Prefix: DerivePrefix(key)}
}

// removeDiacritics removes diacritical marks from a string (e.g., "Iluminación" -> "Iluminacion").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// DerivePrefix builds a three letter code prefix from a monitoring type name:
// diacritics and non-letters are dropped and the result is upper-cased.
// Returns "IMG" when the name has no usable letters.
func DerivePrefix(name string) string {
	var b strings.Builder
	for _, r := range removeDiacritics(name) {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() == 3 {
			break
		}
	}
	if b.Len() == 0 {
		return "IMG"
	}
	return b.String()
}

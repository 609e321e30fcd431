// Package features turns raw form input into the feature row a downtime
// classifier consumes.
//
// The row is labeled: every value has a column name. Models trained on the
// full record (city, locality, weather and the six network metrics) read it
// as a tabular row; models trained on the metrics alone read
// NumericOnlyColumns, where packet loss is spelled PacketLoss.
package features

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kartoza/downtime-predictor/internal/catalog"
)

// Column names, spelled as the training data spells them
const (
	ColCity         = "City"
	ColLocality     = "Locality"
	ColWeather      = "WeatherCondition"
	ColDownload     = "DownloadSpeed_Mbps"
	ColUpload       = "UploadSpeed_Mbps"
	ColLatency      = "Latency_ms"
	ColJitter       = "Jitter_ms"
	ColPacketLoss   = "PacketLoss_%"
	ColComplaints   = "Complaints"
	AliasPacketLoss = "PacketLoss"
)

var (
	// CategoricalColumns are the selector columns, in record order
	CategoricalColumns = []string{ColCity, ColLocality, ColWeather}

	// NumericColumns are the metric columns, in record order
	NumericColumns = []string{ColDownload, ColUpload, ColLatency, ColJitter, ColPacketLoss, ColComplaints}

	// NumericOnlyColumns is the column list of metric-only models
	NumericOnlyColumns = []string{ColDownload, ColUpload, ColLatency, ColJitter, AliasPacketLoss, ColComplaints}
)

// Input is the raw, unvalidated form submission. A nil metric means the
// field was left untouched and takes the field default.
type Input struct {
	City              string   `json:"city"`
	Locality          string   `json:"locality"`
	WeatherCondition  string   `json:"weather_condition"`
	DownloadSpeedMbps *float64 `json:"download_speed_mbps"`
	UploadSpeedMbps   *float64 `json:"upload_speed_mbps"`
	LatencyMs         *float64 `json:"latency_ms"`
	JitterMs          *float64 `json:"jitter_ms"`
	PacketLoss        *float64 `json:"packet_loss"`
	Complaints        *float64 `json:"complaints"`
}

// Float is a helper for building Input literals
func Float(v float64) *float64 { return &v }

// Row is a validated, clamped feature record
type Row struct {
	City              string
	Locality          string
	WeatherCondition  string
	DownloadSpeedMbps float64
	UploadSpeedMbps   float64
	LatencyMs         float64
	JitterMs          float64
	PacketLoss        float64
	Complaints        int
}

// ValidationError collects per-field problems with a submission
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// Build validates in against the catalog and returns the clamped row.
// Categorical selections are only required when requireCategorical is set,
// i.e. when the loaded model actually reads them.
func Build(cat *catalog.Catalog, in Input, requireCategorical bool) (Row, error) {
	verr := &ValidationError{}
	row := Row{
		City:             strings.TrimSpace(in.City),
		Locality:         strings.TrimSpace(in.Locality),
		WeatherCondition: strings.TrimSpace(in.WeatherCondition),
	}

	switch {
	case row.City == "":
		if requireCategorical {
			verr.add(ColCity, "Select a City")
		}
	case !cat.HasCity(row.City):
		verr.add(ColCity, fmt.Sprintf("unknown city %q", row.City))
	}

	switch {
	case row.Locality == "":
		if requireCategorical {
			verr.add(ColLocality, "Select a Locality")
		}
	case row.City != "" && !cat.HasLocality(row.City, row.Locality):
		verr.add(ColLocality, fmt.Sprintf("%q is not a locality of %s", row.Locality, row.City))
	case row.City == "":
		verr.add(ColLocality, "Select a City first")
	}

	switch {
	case row.WeatherCondition == "":
		if requireCategorical {
			verr.add(ColWeather, "Select Weather Condition")
		}
	case !cat.HasWeather(row.WeatherCondition):
		verr.add(ColWeather, fmt.Sprintf("unknown weather condition %q", row.WeatherCondition))
	}

	if len(verr.Fields) > 0 {
		return Row{}, verr
	}

	row.DownloadSpeedMbps = clamp(cat, ColDownload, in.DownloadSpeedMbps)
	row.UploadSpeedMbps = clamp(cat, ColUpload, in.UploadSpeedMbps)
	row.LatencyMs = clamp(cat, ColLatency, in.LatencyMs)
	row.JitterMs = clamp(cat, ColJitter, in.JitterMs)
	row.PacketLoss = clamp(cat, ColPacketLoss, in.PacketLoss)
	row.Complaints = int(clamp(cat, ColComplaints, in.Complaints))

	return row, nil
}

// clamp applies the catalog bounds; missing values take the field minimum,
// which is where the form inputs start.
func clamp(cat *catalog.Catalog, column string, v *float64) float64 {
	f, ok := cat.Field(column)
	if !ok {
		// Parse rejects catalogs without every metric field
		return 0
	}
	if v == nil {
		return f.Min
	}
	return f.Clamp(*v)
}

// Columns returns the full record's column names
func (r Row) Columns() []string {
	cols := make([]string, 0, len(CategoricalColumns)+len(NumericColumns))
	cols = append(cols, CategoricalColumns...)
	return append(cols, NumericColumns...)
}

// Value resolves a column by name. Categorical columns yield a string,
// metric columns a float64.
func (r Row) Value(column string) (interface{}, error) {
	switch column {
	case ColCity:
		return r.City, nil
	case ColLocality:
		return r.Locality, nil
	case ColWeather:
		return r.WeatherCondition, nil
	}
	v, err := r.Float(column)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Float resolves a metric column by name
func (r Row) Float(column string) (float64, error) {
	switch column {
	case ColDownload:
		return r.DownloadSpeedMbps, nil
	case ColUpload:
		return r.UploadSpeedMbps, nil
	case ColLatency:
		return r.LatencyMs, nil
	case ColJitter:
		return r.JitterMs, nil
	case ColPacketLoss, AliasPacketLoss:
		return r.PacketLoss, nil
	case ColComplaints:
		return float64(r.Complaints), nil
	}
	return 0, fmt.Errorf("unknown feature column %q", column)
}

// IsCategorical reports whether column is one of the selector columns
func IsCategorical(column string) bool {
	for _, c := range CategoricalColumns {
		if c == column {
			return true
		}
	}
	return false
}

// Map returns the row keyed by column name
func (r Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, 9)
	for _, c := range r.Columns() {
		v, _ := r.Value(c)
		m[c] = v
	}
	m[ColComplaints] = r.Complaints
	return m
}

// MarshalJSON encodes the row keyed by column name
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON decodes a row written by MarshalJSON
func (r *Row) UnmarshalJSON(data []byte) error {
	var m struct {
		City              string  `json:"City"`
		Locality          string  `json:"Locality"`
		WeatherCondition  string  `json:"WeatherCondition"`
		DownloadSpeedMbps float64 `json:"DownloadSpeed_Mbps"`
		UploadSpeedMbps   float64 `json:"UploadSpeed_Mbps"`
		LatencyMs         float64 `json:"Latency_ms"`
		JitterMs          float64 `json:"Jitter_ms"`
		PacketLoss        float64 `json:"PacketLoss_%"`
		Complaints        int     `json:"Complaints"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = Row(m)
	return nil
}

// Fingerprint is a stable digest of the row, used as a cache key
func (r Row) Fingerprint() string {
	var b strings.Builder
	for _, c := range r.Columns() {
		v, _ := r.Value(c)
		b.WriteString(c)
		b.WriteByte('=')
		switch x := v.(type) {
		case string:
			b.WriteString(strconv.Quote(x))
		case float64:
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		}
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

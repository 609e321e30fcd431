package catalog

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// City is a selectable city and the localities that belong to it
type City struct {
	Name       string   `yaml:"name" json:"name"`
	Localities []string `yaml:"localities" json:"localities"`
}

// NumericField describes a bounded numeric input
type NumericField struct {
	Column  string  `yaml:"column" json:"column"`
	Label   string  `yaml:"label" json:"label"`
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
	Step    float64 `yaml:"step" json:"step"`
	Format  string  `yaml:"format" json:"format"`
	Integer bool    `yaml:"integer" json:"integer"`
}

// Catalog holds everything the form offers: dropdown choices and numeric bounds
type Catalog struct {
	Title   string         `yaml:"title" json:"title"`
	Cities  []City         `yaml:"cities" json:"cities"`
	Weather []string       `yaml:"weather" json:"weather"`
	Fields  []NumericField `yaml:"fields" json:"fields"`

	byCity  map[string][]string
	byField map[string]NumericField
}

// RequiredFields are the metric columns every catalog must bound
var RequiredFields = []string{
	"DownloadSpeed_Mbps",
	"UploadSpeed_Mbps",
	"Latency_ms",
	"Jitter_ms",
	"PacketLoss_%",
	"Complaints",
}

// Default returns the catalog embedded in the binary
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog document from disk
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if len(c.Cities) == 0 {
		return fmt.Errorf("catalog has no cities")
	}
	if len(c.Weather) == 0 {
		return fmt.Errorf("catalog has no weather conditions")
	}

	c.byCity = make(map[string][]string, len(c.Cities))
	for _, city := range c.Cities {
		if strings.TrimSpace(city.Name) == "" {
			return fmt.Errorf("catalog has a city without a name")
		}
		if _, dup := c.byCity[city.Name]; dup {
			return fmt.Errorf("duplicate city %q", city.Name)
		}
		if len(city.Localities) == 0 {
			return fmt.Errorf("city %q has no localities", city.Name)
		}
		c.byCity[city.Name] = city.Localities
	}

	c.byField = make(map[string]NumericField, len(c.Fields))
	for _, f := range c.Fields {
		if f.Column == "" {
			return fmt.Errorf("numeric field without a column name")
		}
		if f.Min > f.Max {
			return fmt.Errorf("field %s: min %v is greater than max %v", f.Column, f.Min, f.Max)
		}
		if f.Step <= 0 {
			return fmt.Errorf("field %s: step must be positive", f.Column)
		}
		c.byField[f.Column] = f
	}
	for _, col := range RequiredFields {
		if _, ok := c.byField[col]; !ok {
			return fmt.Errorf("catalog is missing numeric field %s", col)
		}
	}
	return nil
}

// CityNames returns the cities in document order
func (c *Catalog) CityNames() []string {
	names := make([]string, len(c.Cities))
	for i, city := range c.Cities {
		names[i] = city.Name
	}
	return names
}

// HasCity reports whether name is a known city
func (c *Catalog) HasCity(name string) bool {
	_, ok := c.byCity[name]
	return ok
}

// Localities returns the localities of a city; unknown or empty cities have none
func (c *Catalog) Localities(city string) []string {
	return c.byCity[city]
}

// HasLocality reports whether locality belongs to city
func (c *Catalog) HasLocality(city, locality string) bool {
	for _, l := range c.byCity[city] {
		if l == locality {
			return true
		}
	}
	return false
}

// HasWeather reports whether w is a known weather condition
func (c *Catalog) HasWeather(w string) bool {
	for _, v := range c.Weather {
		if v == w {
			return true
		}
	}
	return false
}

// Field looks up a numeric field by column name
func (c *Catalog) Field(column string) (NumericField, bool) {
	f, ok := c.byField[column]
	return f, ok
}

// Clamp forces v into [Min, Max] and rounds it to the field's step precision.
// NaN falls back to Min.
func (f NumericField) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return f.Min
	}
	if v < f.Min {
		v = f.Min
	}
	if v > f.Max {
		v = f.Max
	}
	p := math.Pow(10, float64(f.Decimals()))
	return math.Round(v*p) / p
}

// Decimals is the number of fractional digits implied by the step
func (f NumericField) Decimals() int {
	if f.Integer {
		return 0
	}
	s := strconv.FormatFloat(f.Step, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

// FormatValue renders v using the field's display format
func (f NumericField) FormatValue(v float64) string {
	if f.Integer {
		return strconv.FormatInt(int64(math.Round(v)), 10)
	}
	if f.Format != "" {
		return fmt.Sprintf(f.Format, v)
	}
	return strconv.FormatFloat(v, 'f', f.Decimals(), 64)
}

package classifier

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kartoza/downtime-predictor/internal/features"
)

// Remote calls a model server that hosts the serialized estimator
type Remote struct {
	endpoint string
	columns  []string
	accuracy float64
	client   *http.Client
}

// RemoteRequest is the body POSTed to <endpoint>/predict
type RemoteRequest struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// RemoteResponse is the model server's answer
type RemoteResponse struct {
	Predictions []string `json:"predictions"`
}

// NewRemote creates a client for the model server at endpoint
func NewRemote(endpoint string, timeout time.Duration, columns []string) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if len(columns) == 0 {
		columns = features.Row{}.Columns()
	}
	return &Remote{
		endpoint: endpoint,
		columns:  columns,
		client:   &http.Client{Timeout: timeout},
	}
}

// Info describes the remote model
func (c *Remote) Info() Info {
	sum := sha256.Sum256([]byte(c.endpoint + "\n" + strings.Join(c.columns, ",")))
	return Info{
		Name:     "Remote classifier",
		Source:   c.endpoint,
		Accuracy: c.accuracy,
		Features: append([]string(nil), c.columns...),
		Digest:   hex.EncodeToString(sum[:]),
	}
}

// Predict sends one row and returns the first predicted label
func (c *Remote) Predict(ctx context.Context, row features.Row) (string, error) {
	values := make([]interface{}, len(c.columns))
	for i, col := range c.columns {
		v, err := row.Value(col)
		if err != nil {
			return "", err
		}
		values[i] = v
	}

	body, err := json.Marshal(RemoteRequest{Columns: c.columns, Rows: [][]interface{}{values}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model service returned status: %d", resp.StatusCode)
	}

	var out RemoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(out.Predictions) == 0 {
		return "", ErrEmptyPrediction
	}
	return out.Predictions[0], nil
}

// Health checks that the model server is up
func (c *Remote) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: %d", resp.StatusCode)
	}
	return nil
}

package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kartoza/downtime-predictor/internal/features"
)

// KindRandomForest is the only artifact kind understood by LoadForest
const KindRandomForest = "random_forest"

// Artifact is the exported form of a trained random forest. Trees use the
// flat node layout of scikit-learn's tree_ attribute: a node whose Left is -1
// is a leaf and its Value holds per-class weights.
type Artifact struct {
	Name       string              `json:"name"`
	Kind       string              `json:"kind"`
	Accuracy   float64             `json:"accuracy"`
	Author     string              `json:"author"`
	Features   []string            `json:"features"`
	Categories map[string][]string `json:"categories"`
	Classes    []string            `json:"classes"`
	Trees      []Tree              `json:"trees"`
}

// Tree is a single decision tree
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split or a leaf
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

func (n Node) isLeaf() bool { return n.Left == -1 }

// Forest is a random forest classifier loaded from an Artifact
type Forest struct {
	art      Artifact
	encoders map[string]map[string]float64
	digest   string
}

// LoadForest reads and validates a forest artifact file
func LoadForest(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeForest(f)
}

// DecodeForest reads and validates a forest artifact
func DecodeForest(r io.Reader) (*Forest, error) {
	var art Artifact
	if err := json.NewDecoder(r).Decode(&art); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	return NewForest(art)
}

// NewForest validates an artifact and prepares its categorical encoders
func NewForest(art Artifact) (*Forest, error) {
	if art.Kind != KindRandomForest {
		return nil, fmt.Errorf("unsupported model kind %q", art.Kind)
	}
	if len(art.Features) == 0 {
		return nil, fmt.Errorf("model has no feature columns")
	}
	if len(art.Classes) == 0 {
		return nil, fmt.Errorf("model has no classes")
	}
	if len(art.Trees) == 0 {
		return nil, fmt.Errorf("model has no trees")
	}

	var blank features.Row
	encoders := make(map[string]map[string]float64)
	for _, col := range art.Features {
		if _, err := blank.Value(col); err != nil {
			return nil, err
		}
		if !features.IsCategorical(col) {
			continue
		}
		cats, ok := art.Categories[col]
		if !ok {
			return nil, fmt.Errorf("categorical column %s has no encoding", col)
		}
		enc := make(map[string]float64, len(cats))
		for i, c := range cats {
			enc[c] = float64(i)
		}
		encoders[col] = enc
	}

	for ti, tree := range art.Trees {
		if err := validateTree(tree, len(art.Features), len(art.Classes)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
	}

	canonical, err := json.Marshal(art)
	if err != nil {
		return nil, fmt.Errorf("failed to digest model artifact: %w", err)
	}
	sum := sha256.Sum256(canonical)

	return &Forest{art: art, encoders: encoders, digest: hex.EncodeToString(sum[:])}, nil
}

// validateTree checks indices so that Predict can walk without bounds
// checks. Children always sit after their parent, which rules out cycles.
func validateTree(t Tree, nFeatures, nClasses int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("no nodes")
	}
	for i, n := range t.Nodes {
		if n.isLeaf() {
			if len(n.Value) != nClasses {
				return fmt.Errorf("leaf %d has %d values, expected %d", i, len(n.Value), nClasses)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, nFeatures)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// Info describes the forest
func (f *Forest) Info() Info {
	return Info{
		Name:     f.art.Name,
		Source:   "forest",
		Accuracy: f.art.Accuracy,
		Author:   f.art.Author,
		Features: append([]string(nil), f.art.Features...),
		Classes:  append([]string(nil), f.art.Classes...),
		Digest:   f.digest,
	}
}

// Predict returns the class with the highest mean probability across trees
func (f *Forest) Predict(ctx context.Context, row features.Row) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	proba, err := f.PredictProba(row)
	if err != nil {
		return "", err
	}
	best := 0
	for i, p := range proba {
		if p > proba[best] {
			best = i
		}
	}
	return f.art.Classes[best], nil
}

// PredictProba returns the mean of the per-tree class probabilities, in
// the artifact's class order.
func (f *Forest) PredictProba(row features.Row) ([]float64, error) {
	x, err := f.vector(row)
	if err != nil {
		return nil, err
	}

	proba := make([]float64, len(f.art.Classes))
	for _, tree := range f.art.Trees {
		leaf := tree.leaf(x)
		var total float64
		for _, v := range leaf.Value {
			total += v
		}
		for i, v := range leaf.Value {
			if total > 0 {
				proba[i] += v / total
			} else {
				proba[i] += 1 / float64(len(leaf.Value))
			}
		}
	}
	n := float64(len(f.art.Trees))
	for i := range proba {
		proba[i] /= n
	}
	return proba, nil
}

// vector lays the row out in the artifact's column order, ordinal-encoding
// categorical columns. Categories unseen at training time encode as -1.
func (f *Forest) vector(row features.Row) ([]float64, error) {
	x := make([]float64, len(f.art.Features))
	for i, col := range f.art.Features {
		if enc, ok := f.encoders[col]; ok {
			v, _ := row.Value(col)
			s, _ := v.(string)
			code, known := enc[s]
			if !known {
				code = -1
			}
			x[i] = code
			continue
		}
		v, err := row.Float(col)
		if err != nil {
			return nil, err
		}
		x[i] = v
	}
	return x, nil
}

func (t Tree) leaf(x []float64) Node {
	i := 0
	for {
		n := t.Nodes[i]
		if n.isLeaf() {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

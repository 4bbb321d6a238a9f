package graph

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/formula"
)

//go:embed graph.yaml
var defaultTable []byte

var validate = validator.New()

type nodeSpec struct {
	ID        string             `yaml:"id" validate:"required"`
	Name      string             `yaml:"name" validate:"required"`
	Category  string             `yaml:"category" validate:"required,oneof=base calculated sub-index index currency"`
	Currency  string             `yaml:"currency" validate:"required,oneof=BRL USD EUR"`
	Unit      string             `yaml:"unit"`
	Formula   string             `yaml:"formula" validate:"required"`
	DependsOn map[string]string  `yaml:"depends_on" validate:"dive,keys,required,endkeys,required"`
	Weights   map[string]float64 `yaml:"weights" validate:"dive,gte=0"`
}

type tableSpec struct {
	Assets []nodeSpec `yaml:"assets" validate:"required,min=1,dive"`
}

// Default builds the graph from the embedded asset table.
func Default() (*Graph, error) {
	return Parse(defaultTable)
}

// LoadFile builds the graph from a YAML table on disk.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML asset table.
func Parse(data []byte) (*Graph, error) {
	var spec tableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decoding graph table: %w", err)
	}
	if err := validate.Struct(spec); err != nil {
		return nil, fmt.Errorf("validating graph table: %w", err)
	}

	nodes := make([]Node, 0, len(spec.Assets))
	for _, s := range spec.Assets {
		n, err := s.toNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return New(nodes)
}

func (s nodeSpec) toNode() (Node, error) {
	id, err := formula.Parse(s.Formula)
	if err != nil {
		return Node{}, fmt.Errorf("asset %q: %w", s.ID, err)
	}

	n := Node{
		ID:       domain.AssetID(s.ID),
		Name:     s.Name,
		Category: domain.Category(s.Category),
		Currency: domain.Currency(s.Currency),
		Unit:     s.Unit,
		Formula:  id,
	}
	if len(s.DependsOn) > 0 {
		n.Inputs = make(map[formula.Role]domain.AssetID, len(s.DependsOn))
		for role, asset := range s.DependsOn {
			n.Inputs[formula.Role(role)] = domain.AssetID(asset)
		}
	}
	if len(s.Weights) > 0 {
		n.Weights = make(map[domain.AssetID]decimal.Decimal, len(s.Weights))
		for asset, w := range s.Weights {
			n.Weights[domain.AssetID(asset)] = decimal.NewFromFloat(w)
		}
	}
	return n, nil
}

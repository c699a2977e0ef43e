package resource

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conductor/internal/domain"
)

// ClusterSpec — YAML-описание кластера с полными ёмкостями узлов.
type ClusterSpec struct {
	Name  string            `yaml:"name"`
	Nodes []domain.NodeInfo `yaml:"nodes"`
}

// ParseClusterSpec разбирает YAML-описание кластера.
//
// Узлы без явного ID нумеруются по позиции; адрес по умолчанию — имя узла.
// Повторное имя узла — ошибка.
func ParseClusterSpec(text string) (*ClusterSpec, error) {
	var spec ClusterSpec
	if err := yaml.Unmarshal([]byte(text), &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if len(spec.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	seen := make(map[string]bool, len(spec.Nodes))
	for i := range spec.Nodes {
		n := &spec.Nodes[i]
		if n.Name == "" {
			return nil, fmt.Errorf("%w: node %d has no name", ErrParse, i)
		}
		if seen[n.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.Name)
		}
		seen[n.Name] = true

		if n.ID == 0 && i != 0 {
			n.ID = i
		}
		if n.Address == "" {
			n.Address = n.Name
		}
	}

	return &spec, nil
}

// LoadClusterSpec читает и разбирает cluster spec с диска.
func LoadClusterSpec(path string) (*ClusterSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cluster spec: %w", err)
	}
	return ParseClusterSpec(string(data))
}

package ml

import (
	"errors"
	"fmt"
)

const (
	DecisionTreeType = "decision_tree"
	RandomForestType = "random_forest"
)

type DecisionTree struct {
	classes   []int
	nFeatures int
	nodes     []TreeNode
}

type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	IsLeaf     bool      `json:"is_leaf"`
	Value      []float64 `json:"value"`
}

type treeArtifact struct {
	Type      string     `json:"type"`
	Classes   []int      `json:"classes"`
	NFeatures int        `json:"n_features"`
	Nodes     []TreeNode `json:"nodes"`
}

func NewDecisionTree(classes []int, nFeatures int, nodes []TreeNode) (*DecisionTree, error) {
	if err := validateClasses(classes); err != nil {
		return nil, err
	}
	if err := validateNodes(nodes, len(classes), nFeatures); err != nil {
		return nil, err
	}
	return &DecisionTree{
		classes:   append([]int(nil), classes...),
		nFeatures: nFeatures,
		nodes:     append([]TreeNode(nil), nodes...),
	}, nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not loaded")
	}
	if dt.nFeatures > 0 && len(features) != dt.nFeatures {
		return nil, fmt.Errorf("%w: tree expects %d features, got %d", ErrSchemaMismatch, dt.nFeatures, len(features))
	}
	leaf, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	return normalize(leaf.Value), nil
}

func (dt *DecisionTree) Classes() []int {
	return append([]int(nil), dt.classes...)
}

func (dt *DecisionTree) NumFeatures() int {
	return dt.nFeatures
}

func (dt *DecisionTree) Type() string {
	return DecisionTreeType
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	idx := 0
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
	return TreeNode{}, errors.New("tree traversal did not terminate")
}

func validateClasses(classes []int) error {
	if len(classes) < 2 {
		return fmt.Errorf("%w: classifier needs at least 2 classes, got %d", ErrSchemaMismatch, len(classes))
	}
	seen := make(map[int]bool, len(classes))
	for _, c := range classes {
		if seen[c] {
			return fmt.Errorf("%w: duplicate class %d", ErrSchemaMismatch, c)
		}
		seen[c] = true
	}
	return nil
}

func validateNodes(nodes []TreeNode, nClasses, nFeatures int) error {
	if len(nodes) == 0 {
		return fmt.Errorf("%w: tree has no nodes", ErrSchemaMismatch)
	}
	for i, node := range nodes {
		if node.IsLeaf {
			if len(node.Value) != nClasses {
				return fmt.Errorf("%w: leaf %d has %d values for %d classes", ErrSchemaMismatch, i, len(node.Value), nClasses)
			}
			for _, v := range node.Value {
				if v < 0 {
					return fmt.Errorf("%w: leaf %d has negative weight", ErrSchemaMismatch, i)
				}
			}
			continue
		}
		if node.FeatureIdx < 0 || (nFeatures > 0 && node.FeatureIdx >= nFeatures) {
			return fmt.Errorf("%w: node %d splits on feature %d of %d", ErrSchemaMismatch, i, node.FeatureIdx, nFeatures)
		}
		// children are laid out after their parent
		if node.LeftChild <= i || node.LeftChild >= len(nodes) || node.RightChild <= i || node.RightChild >= len(nodes) {
			return fmt.Errorf("%w: node %d has invalid children %d/%d", ErrSchemaMismatch, i, node.LeftChild, node.RightChild)
		}
	}
	return nil
}

func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total == 0 {
		uniform := 1 / float64(len(values))
		for i := range out {
			out[i] = uniform
		}
		return out
	}
	for i, v := range values {
		out[i] = v / total
	}
	return out
}

package ml

import (
	"errors"
	"fmt"
)

// RandomForest averages the leaf class distributions of its trees, matching
// scikit-learn's RandomForestClassifier.predict_proba.
type RandomForest struct {
	classes   []int
	nFeatures int
	trees     []*DecisionTree
}

type forestArtifact struct {
	Type      string `json:"type"`
	Classes   []int  `json:"classes"`
	NFeatures int    `json:"n_features"`
	Trees     []struct {
		Nodes []TreeNode `json:"nodes"`
	} `json:"trees"`
}

func NewRandomForest(classes []int, nFeatures int, trees [][]TreeNode) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrSchemaMismatch)
	}
	forest := &RandomForest{
		classes:   append([]int(nil), classes...),
		nFeatures: nFeatures,
		trees:     make([]*DecisionTree, 0, len(trees)),
	}
	for i, nodes := range trees {
		tree, err := NewDecisionTree(classes, nFeatures, nodes)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		forest.trees = append(forest.trees, tree)
	}
	return forest, nil
}

func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.trees) == 0 {
		return nil, errors.New("model not loaded")
	}
	sum := make([]float64, len(rf.classes))
	for _, tree := range rf.trees {
		proba, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		for i, p := range proba {
			sum[i] += p
		}
	}
	n := float64(len(rf.trees))
	for i := range sum {
		sum[i] /= n
	}
	return sum, nil
}

func (rf *RandomForest) Classes() []int {
	return append([]int(nil), rf.classes...)
}

func (rf *RandomForest) NumFeatures() int {
	return rf.nFeatures
}

func (rf *RandomForest) Type() string {
	return RandomForestType
}

func (rf *RandomForest) NumTrees() int {
	return len(rf.trees)
}

package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadModel reads a classifier artifact. An empty modelType accepts whatever
// type the artifact declares.
func LoadModel(modelType, path string) (Classifier, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read model: %v", ErrArtifactLoad, err)
	}
	return DecodeModel(modelType, payload)
}

func DecodeModel(modelType string, payload []byte) (Classifier, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &header); err != nil {
		return nil, fmt.Errorf("%w: decode model: %v", ErrArtifactLoad, err)
	}
	switch {
	case modelType == "":
		modelType = header.Type
	case header.Type != "" && header.Type != modelType:
		return nil, fmt.Errorf("%w: configured model type %q, artifact declares %q", ErrArtifactLoad, modelType, header.Type)
	}

	switch modelType {
	case DecisionTreeType:
		var artifact treeArtifact
		if err := json.Unmarshal(payload, &artifact); err != nil {
			return nil, fmt.Errorf("%w: decode decision tree: %v", ErrArtifactLoad, err)
		}
		return classifier(NewDecisionTree(artifact.Classes, artifact.NFeatures, artifact.Nodes))
	case RandomForestType:
		var artifact forestArtifact
		if err := json.Unmarshal(payload, &artifact); err != nil {
			return nil, fmt.Errorf("%w: decode random forest: %v", ErrArtifactLoad, err)
		}
		trees := make([][]TreeNode, len(artifact.Trees))
		for i, tree := range artifact.Trees {
			trees[i] = tree.Nodes
		}
		return classifier(NewRandomForest(artifact.Classes, artifact.NFeatures, trees))
	case LogisticRegressionType:
		var artifact logisticArtifact
		if err := json.Unmarshal(payload, &artifact); err != nil {
			return nil, fmt.Errorf("%w: decode logistic regression: %v", ErrArtifactLoad, err)
		}
		if artifact.NFeatures > 0 && artifact.NFeatures != len(artifact.Coef) {
			return nil, fmt.Errorf("%w: n_features %d but %d coefficients", ErrSchemaMismatch, artifact.NFeatures, len(artifact.Coef))
		}
		return classifier(NewLogisticRegression(artifact.Classes, artifact.Coef, artifact.Intercept))
	case "":
		return nil, fmt.Errorf("%w: model type not set", ErrArtifactLoad)
	default:
		return nil, fmt.Errorf("%w: unsupported model type %q", ErrArtifactLoad, modelType)
	}
}

// classifier keeps a failed constructor from leaking a typed nil.
func classifier(model Classifier, err error) (Classifier, error) {
	if err != nil {
		return nil, err
	}
	return model, nil
}

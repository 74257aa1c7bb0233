package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
)

// TreeParams controls how a single CART tree grows.
// MaxDepth 0 means unlimited, MaxFeatures 0 means every feature is tried at each split.
type TreeParams struct {
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MaxFeatures     int `json:"max_features"`
}

// DecisionTree is a CART classifier stored as a flat node slice; node 0 is the root.
type DecisionTree struct {
	Params    TreeParams `json:"params"`
	Nodes     []TreeNode `json:"nodes"`
	NClasses  int        `json:"n_classes"`
	NFeatures int        `json:"n_features"`
	Seed      int64      `json:"seed"`
}

// TreeNode is either a split or, when IsLeaf is set, a class distribution.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	Value      []float64 `json:"value,omitempty"`
	IsLeaf     bool      `json:"is_leaf"`
}

// NewDecisionTree returns an unfitted tree.
func NewDecisionTree(params TreeParams) *DecisionTree {
	return &DecisionTree{Params: params}
}

// Fit grows the tree on every row, using Seed for feature sampling.
func (dt *DecisionTree) Fit(ctx context.Context, features [][]float64, labels []int) error {
	nFeatures, nClasses, err := checkTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(dt.Seed))
	return dt.fit(features, labels, idx, nFeatures, nClasses, rng)
}

// fit grows the tree over the rows named by idx. Rows may repeat (bootstrap samples).
func (dt *DecisionTree) fit(features [][]float64, labels []int, idx []int, nFeatures, nClasses int, rng *rand.Rand) error {
	if len(idx) == 0 {
		return errors.New("features or labels empty")
	}
	b := &treeBuilder{
		features:  features,
		labels:    labels,
		params:    dt.Params,
		nFeatures: nFeatures,
		nClasses:  nClasses,
		rng:       rng,
	}
	if b.params.MinSamplesSplit < 2 {
		b.params.MinSamplesSplit = 2
	}
	if b.params.MaxFeatures <= 0 || b.params.MaxFeatures > nFeatures {
		b.params.MaxFeatures = nFeatures
	}
	b.build(idx, 0)

	dt.Nodes = b.nodes
	dt.NClasses = nClasses
	dt.NFeatures = nFeatures
	return nil
}

// PredictProba returns the class distribution of the leaf the sample falls into.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	proba := make([]float64, len(leaf.Value))
	copy(proba, leaf.Value)
	return proba, nil
}

func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return 0, 0, err
	}
	label, confidence := argmax(leaf.Value)
	return label, confidence, nil
}

func (dt *DecisionTree) leaf(features []float64) (*TreeNode, error) {
	if len(dt.Nodes) == 0 {
		return nil, ErrNotTrained
	}
	if len(features) != dt.NFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(features), dt.NFeatures)
	}
	idx := 0
	for {
		node := &dt.Nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

// Save writes the tree as JSON, replacing path atomically.
func (dt *DecisionTree) Save(path string) error {
	if len(dt.Nodes) == 0 {
		return ErrNotTrained
	}
	return writeJSON(path, dt)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded DecisionTree
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return fmt.Errorf("decode decision tree: %w", err)
	}
	if err := loaded.validate(); err != nil {
		return err
	}
	*dt = loaded
	return nil
}

// validate rejects trees that could index out of range or loop during traversal.
func (dt *DecisionTree) validate() error {
	if len(dt.Nodes) == 0 {
		return ErrNotTrained
	}
	if dt.NClasses <= 0 || dt.NFeatures <= 0 {
		return fmt.Errorf("%w: n_classes=%d n_features=%d", ErrCorruptModel, dt.NClasses, dt.NFeatures)
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if len(node.Value) != dt.NClasses {
				return fmt.Errorf("%w: leaf %d has %d class values", ErrCorruptModel, i, len(node.Value))
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= dt.NFeatures {
			return fmt.Errorf("%w: node %d feature index %d", ErrCorruptModel, i, node.FeatureIdx)
		}
		if node.LeftChild <= i || node.LeftChild >= len(dt.Nodes) ||
			node.RightChild <= i || node.RightChild >= len(dt.Nodes) {
			return fmt.Errorf("%w: node %d children %d/%d", ErrCorruptModel, i, node.LeftChild, node.RightChild)
		}
	}
	return nil
}

type treeBuilder struct {
	features  [][]float64
	labels    []int
	params    TreeParams
	nFeatures int
	nClasses  int
	rng       *rand.Rand
	nodes     []TreeNode
}

// build appends the subtree for idx and returns its root position. Children always
// land after their parent, which validate relies on.
func (b *treeBuilder) build(idx []int, depth int) int {
	nodeID := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{})

	counts := b.classCounts(idx)
	if b.stop(idx, counts, depth) {
		b.nodes[nodeID] = b.leafNode(counts, len(idx))
		return nodeID
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		b.nodes[nodeID] = b.leafNode(counts, len(idx))
		return nodeID
	}

	left, right := partition(b.features, idx, feature, threshold)
	leftID := b.build(left, depth+1)
	rightID := b.build(right, depth+1)

	b.nodes[nodeID] = TreeNode{
		FeatureIdx: feature,
		Threshold:  threshold,
		LeftChild:  leftID,
		RightChild: rightID,
	}
	return nodeID
}

func (b *treeBuilder) stop(idx []int, counts []int, depth int) bool {
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}
	if len(idx) < b.params.MinSamplesSplit {
		return true
	}
	return isPure(counts)
}

func (b *treeBuilder) leafNode(counts []int, total int) TreeNode {
	value := make([]float64, b.nClasses)
	for class, count := range counts {
		value[class] = float64(count) / float64(total)
	}
	return TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      value,
		IsLeaf:     true,
	}
}

func (b *treeBuilder) classCounts(idx []int) []int {
	counts := make([]int, b.nClasses)
	for _, i := range idx {
		counts[b.labels[i]]++
	}
	return counts
}

// bestSplit searches MaxFeatures randomly drawn features for the threshold with the lowest
// weighted gini impurity. When none of the drawn features can split the node (all constant)
// the remaining features are tried before giving up.
func (b *treeBuilder) bestSplit(idx []int, counts []int) (int, float64, bool) {
	order := b.featureOrder()

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := -1.0

	sorted := make([]int, len(idx))
	for visited, featureIdx := range order {
		if visited >= b.params.MaxFeatures && bestFeature != -1 {
			break
		}
		copy(sorted, idx)
		threshold, score, ok := b.scanFeature(sorted, counts, featureIdx)
		if ok && score > bestScore {
			bestScore = score
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (b *treeBuilder) featureOrder() []int {
	if b.params.MaxFeatures >= b.nFeatures || b.rng == nil {
		order := make([]int, b.nFeatures)
		for i := range order {
			order[i] = i
		}
		return order
	}
	return b.rng.Perm(b.nFeatures)
}

// scanFeature sorts rows by one feature and sweeps every boundary between distinct values.
// Minimising weighted gini is the same as maximising sum(left^2)/nl + sum(right^2)/nr,
// which can be updated in constant time per step.
func (b *treeBuilder) scanFeature(sorted []int, counts []int, featureIdx int) (float64, float64, bool) {
	column := b.features
	sort.SliceStable(sorted, func(i, j int) bool {
		return column[sorted[i]][featureIdx] < column[sorted[j]][featureIdx]
	})

	n := len(sorted)
	left := make([]int, b.nClasses)
	right := make([]int, b.nClasses)
	copy(right, counts)

	var leftSq, rightSq float64
	for _, c := range counts {
		rightSq += float64(c) * float64(c)
	}

	bestScore := -1.0
	bestThreshold := 0.0
	for i := 0; i < n-1; i++ {
		class := b.labels[sorted[i]]
		leftSq += float64(2*left[class] + 1)
		left[class]++
		rightSq -= float64(2*right[class] - 1)
		right[class]--

		current := column[sorted[i]][featureIdx]
		next := column[sorted[i+1]][featureIdx]
		if current >= next {
			continue
		}
		nl := float64(i + 1)
		nr := float64(n - i - 1)
		score := leftSq/nl + rightSq/nr
		if score > bestScore {
			bestScore = score
			bestThreshold = current + (next-current)/2
			if bestThreshold >= next {
				bestThreshold = current
			}
		}
	}
	if bestScore < 0 {
		return 0, 0, false
	}
	return bestThreshold, bestScore, true
}

func partition(features [][]float64, idx []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(idx)/2)
	right := make([]int, 0, len(idx)/2)
	for _, i := range idx {
		if features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// argmax returns the first index holding the largest value.
func argmax(values []float64) (int, float64) {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	return best, values[best]
}

func checkTrainingSet(features [][]float64, labels []int) (nFeatures, nClasses int, err error) {
	if len(features) == 0 || len(labels) == 0 {
		return 0, 0, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return 0, 0, errors.New("features and labels size mismatch")
	}
	nFeatures = len(features[0])
	if nFeatures == 0 {
		return 0, 0, errors.New("feature vectors are empty")
	}
	for i, row := range features {
		if len(row) != nFeatures {
			return 0, 0, fmt.Errorf("row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}
	for i, label := range labels {
		if label < 0 {
			return 0, 0, fmt.Errorf("row %d has negative label %d", i, label)
		}
		if label+1 > nClasses {
			nClasses = label + 1
		}
	}
	return nFeatures, nClasses, nil
}

package forecast

import (
	"math"
	"math/rand"
	"sort"
)

// Forest is a bagged ensemble of regression trees. Trees are stored as
// flat node arrays so a fitted forest round-trips through JSON.
type Forest struct {
	Trees   []Tree `json:"trees"`
	NTrees  int    `json:"n_trees"`
	Depth   int    `json:"depth"`
	MinLeaf int    `json:"min_leaf"`
}

// Tree is a regression tree in index-linked form; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is either an internal split or a leaf holding the mean target of
// the training samples that reached it.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"v"`
}

func newForest(nTrees, depth, minLeaf int) *Forest {
	return &Forest{NTrees: nTrees, Depth: depth, MinLeaf: minLeaf}
}

func (f *Forest) fit(x [][]float64, y []float64, rng *rand.Rand) {
	n := len(y)
	nFeat := len(x[0])
	// Random feature subset per split, sqrt(d) as usual.
	mtry := int(math.Ceil(math.Sqrt(float64(nFeat))))

	f.Trees = make([]Tree, f.NTrees)
	for t := 0; t < f.NTrees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		b := &treeBuilder{x: x, y: y, minLeaf: f.MinLeaf, maxDepth: f.Depth, mtry: mtry, rng: rng}
		b.grow(idx, 0)
		f.Trees[t] = Tree{Nodes: b.nodes}
	}
}

func (f *Forest) predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].predict(x)
	}
	return sum / float64(len(f.Trees))
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		nd := t.Nodes[i]
		if nd.Leaf {
			return nd.Value
		}
		if x[nd.Feature] <= nd.Threshold {
			i = nd.Left
		} else {
			i = nd.Right
		}
	}
}

type treeBuilder struct {
	x        [][]float64
	y        []float64
	minLeaf  int
	maxDepth int
	mtry     int
	rng      *rand.Rand
	nodes    []Node
}

// grow appends the subtree for idx and returns its root node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf {
		b.nodes[self] = Node{Leaf: true, Value: b.mean(idx)}
		return self
	}

	feat, thr, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[self] = Node{Leaf: true, Value: b.mean(idx)}
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minLeaf || len(right) < b.minLeaf {
		b.nodes[self] = Node{Leaf: true, Value: b.mean(idx)}
		return self
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = Node{Feature: feat, Threshold: thr, Left: l, Right: r}
	return self
}

// bestSplit searches a random feature subset for the split minimizing the
// summed squared error of the two halves.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	nFeat := len(b.x[idx[0]])
	feats := b.rng.Perm(nFeat)[:b.mtry]
	sort.Ints(feats) // stable evaluation order regardless of Perm internals

	bestSSE := math.Inf(1)
	bestFeat, bestThr := -1, 0.0

	vals := make([]float64, 0, len(idx))
	for _, feat := range feats {
		vals = vals[:0]
		for _, i := range idx {
			vals = append(vals, b.x[i][feat])
		}
		sort.Float64s(vals)
		for v := 1; v < len(vals); v++ {
			if vals[v] == vals[v-1] {
				continue
			}
			thr := (vals[v] + vals[v-1]) / 2
			sse := b.splitSSE(idx, feat, thr)
			if sse < bestSSE {
				bestSSE, bestFeat, bestThr = sse, feat, thr
			}
		}
	}
	return bestFeat, bestThr, bestFeat >= 0
}

func (b *treeBuilder) splitSSE(idx []int, feat int, thr float64) float64 {
	var ln, rn int
	var lsum, lsum2, rsum, rsum2 float64
	for _, i := range idx {
		yv := b.y[i]
		if b.x[i][feat] <= thr {
			ln++
			lsum += yv
			lsum2 += yv * yv
		} else {
			rn++
			rsum += yv
			rsum2 += yv * yv
		}
	}
	if ln == 0 || rn == 0 {
		return math.Inf(1)
	}
	lsse := lsum2 - lsum*lsum/float64(ln)
	rsse := rsum2 - rsum*rsum/float64(rn)
	return lsse + rsse
}

func (b *treeBuilder) mean(idx []int) float64 {
	sum := 0.0
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}

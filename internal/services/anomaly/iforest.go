package anomaly

import (
	"math"
	"math/rand"
)

// isolation forest per Liu et al.: anomalous points isolate in fewer
// random splits, so short average path lengths mean high outlier scores.

// ITree is an isolation tree in index-linked form; node 0 is the root.
type ITree struct {
	Nodes []INode `json:"nodes"`
}

// INode is either a random split or a leaf recording how many baseline
// samples ended there.
type INode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Leaf      bool    `json:"leaf"`
	Size      int     `json:"n"`
}

func buildITree(data [][]float64, idx []int, rng *rand.Rand, maxHeight int) ITree {
	b := &itreeBuilder{data: data, rng: rng, maxHeight: maxHeight}
	b.grow(idx, 0)
	return ITree{Nodes: b.nodes}
}

type itreeBuilder struct {
	data      [][]float64
	rng       *rand.Rand
	maxHeight int
	nodes     []INode
}

func (b *itreeBuilder) grow(idx []int, height int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, INode{})

	if height >= b.maxHeight || len(idx) <= 1 {
		b.nodes[self] = INode{Leaf: true, Size: len(idx)}
		return self
	}

	dim := len(b.data[idx[0]])
	feat := b.rng.Intn(dim)
	lo, hi := b.data[idx[0]][feat], b.data[idx[0]][feat]
	for _, i := range idx {
		v := b.data[i][feat]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		b.nodes[self] = INode{Leaf: true, Size: len(idx)}
		return self
	}
	thr := lo + b.rng.Float64()*(hi-lo)

	var left, right []int
	for _, i := range idx {
		if b.data[i][feat] < thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, height+1)
	r := b.grow(right, height+1)
	b.nodes[self] = INode{Feature: feat, Threshold: thr, Left: l, Right: r}
	return self
}

func (t *ITree) pathLength(x []float64) float64 {
	i, depth := 0, 0
	for {
		nd := t.Nodes[i]
		if nd.Leaf {
			return float64(depth) + avgPathLength(nd.Size)
		}
		if x[nd.Feature] < nd.Threshold {
			i = nd.Left
		} else {
			i = nd.Right
		}
		depth++
	}
}

const eulerMascheroni = 0.5772156649

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points; it normalizes leaf sizes and the final score.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

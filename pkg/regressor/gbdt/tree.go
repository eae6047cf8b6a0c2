package gbdt

import (
	"math"
	"sort"

	"github.com/ethpandaops/laptime/pkg/stats"
)

const (
	leafFeature = -1
	minGain     = 1e-12
)

// Node is one tree node. Leaves have Feature -1.
type Node struct {
	Feature     int     `json:"f"`
	Threshold   float64 `json:"t,omitempty"`
	Categorical bool    `json:"cat,omitempty"`
	Categories  []int   `json:"c,omitempty"`
	DefaultLeft bool    `json:"d,omitempty"`
	Left        int     `json:"l,omitempty"`
	Right       int     `json:"r,omitempty"`
	Value       float64 `json:"v,omitempty"`
}

// Tree is a regression tree stored as a flat node list rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (n *Node) goesLeft(v float64) bool {
	if isMissing(v) {
		return n.DefaultLeft
	}

	if n.Categorical {
		code := int(v)
		for _, c := range n.Categories {
			if c == code {
				return true
			}
		}

		return false
	}

	return v <= n.Threshold
}

func (t *Tree) predict(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == leafFeature {
			return n.Value
		}

		if n.goesLeft(row[n.Feature]) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type split struct {
	feature     int
	gain        float64
	bin         int
	leftCats    []bool
	missingLeft bool
}

// grower builds one tree fitting the gradient by least squares. Leaf values
// are the median residual of the rows reaching them.
type grower struct {
	params   *Params
	data     *dataset
	grad     []float64
	resid    []float64
	features []int
	nodes    []Node
}

func (g *grower) build(rows []int) Tree {
	g.nodes = g.nodes[:0]
	g.grow(rows, 0)

	return Tree{Nodes: append([]Node(nil), g.nodes...)}
}

func (g *grower) grow(rows []int, depth int) int {
	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: leafFeature})

	if depth < g.params.MaxDepth && len(rows) >= 2*g.params.MinSamplesLeaf {
		if sp, ok := g.bestSplit(rows); ok {
			left, right := g.partition(rows, sp)

			l := g.grow(left, depth+1)
			r := g.grow(right, depth+1)

			n := Node{
				Feature:     sp.feature,
				DefaultLeft: sp.missingLeft,
				Left:        l,
				Right:       r,
			}

			if g.data.categorical[sp.feature] {
				n.Categorical = true
				for code, in := range sp.leftCats {
					if in {
						n.Categories = append(n.Categories, code)
					}
				}
			} else {
				thr := g.data.thresholds[sp.feature]
				if sp.bin < len(thr) {
					n.Threshold = thr[sp.bin]
				} else {
					n.Threshold = math.MaxFloat64
				}
			}

			g.nodes[idx] = n

			return idx
		}
	}

	residuals := make([]float64, len(rows))
	for j, i := range rows {
		residuals[j] = g.resid[i]
	}

	g.nodes[idx].Value = stats.Median(residuals) * g.params.LearningRate

	return idx
}

func (g *grower) partition(rows []int, sp split) (left, right []int) {
	bins := g.data.bins[sp.feature]
	categorical := g.data.categorical[sp.feature]

	for _, i := range rows {
		b := int(bins[i])

		var goLeft bool
		switch {
		case b == missingBin:
			goLeft = sp.missingLeft
		case categorical:
			goLeft = b < len(sp.leftCats) && sp.leftCats[b]
		default:
			goLeft = b <= sp.bin
		}

		if goLeft {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return left, right
}

func (g *grower) bestSplit(rows []int) (split, bool) {
	var total float64
	for _, i := range rows {
		total += g.grad[i]
	}

	n := len(rows)
	base := total * total / float64(n)
	minLeaf := g.params.MinSamplesLeaf

	best := split{gain: minGain}
	found := false

	for _, f := range g.features {
		nb := g.data.nbins[f]
		if nb == 0 {
			continue
		}

		sums := make([]float64, nb)
		counts := make([]int, nb)

		var missSum float64
		missCount := 0

		bins := g.data.bins[f]
		for _, i := range rows {
			b := bins[i]
			if b == missingBin {
				missSum += g.grad[i]
				missCount++

				continue
			}
			sums[b] += g.grad[i]
			counts[b]++
		}

		order := make([]int, 0, nb)
		for b := 0; b < nb; b++ {
			if counts[b] > 0 {
				order = append(order, b)
			}
		}

		if g.data.categorical[f] {
			sort.SliceStable(order, func(a, b int) bool {
				return sums[order[a]]/float64(counts[order[a]]) < sums[order[b]]/float64(counts[order[b]])
			})
		}

		var leftSum float64
		leftCount := 0

		for k, b := range order {
			leftSum += sums[b]
			leftCount += counts[b]

			for _, missLeft := range []bool{false, true} {
				if missLeft && missCount == 0 {
					continue
				}

				lSum, lCount := leftSum, leftCount
				if missLeft {
					lSum += missSum
					lCount += missCount
				}

				rCount := n - lCount
				if lCount < minLeaf || rCount < minLeaf {
					continue
				}

				rSum := total - lSum
				gain := lSum*lSum/float64(lCount) + rSum*rSum/float64(rCount) - base

				if gain > best.gain {
					best = split{feature: f, gain: gain, bin: b, missingLeft: missLeft}
					if missCount == 0 {
						best.missingLeft = lCount > rCount
					}

					if g.data.categorical[f] {
						best.leftCats = make([]bool, nb)
						for _, c := range order[:k+1] {
							best.leftCats[c] = true
						}
					}

					found = true
				}
			}
		}
	}

	return best, found
}

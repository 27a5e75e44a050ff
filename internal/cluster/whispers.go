package cluster

import (
	"math/rand/v2"

	"github.com/jvanek/facegroups/internal/constants"
	"github.com/jvanek/facegroups/internal/faces"
)

// node is one face in the propagation graph.
type node struct {
	face  *faces.DetectedFace
	label string // current cluster label; group id for anchors
	fixed bool   // anchors never change label
}

// edge connects two nodes whose similarity clears the threshold.
type edge struct {
	peer   int
	weight float64
}

// graph is the similarity graph the whisper pass runs over.
type graph struct {
	nodes []node
	adj   [][]edge
	rng   *rand.Rand
}

// buildGraph constructs the propagation graph: the new faces plus every
// already-grouped face as a fixed anchor. Edges connect pairs above the
// clustering threshold; with quality weighting enabled the edge weight is
// the product of the endpoints' quality scores.
func buildGraph(newFaces, grouped []*faces.DetectedFace, cfg faces.RecognitionConfig) *graph {
	g := &graph{
		// Fixed PCG seed: one propagation pass is repeatable in-process.
		rng: rand.New(rand.NewPCG(0x6661636573, 0x67726f757073)),
	}

	for _, f := range newFaces {
		g.nodes = append(g.nodes, node{face: f, label: f.ID})
	}
	for _, f := range grouped {
		g.nodes = append(g.nodes, node{face: f, label: f.GroupID, fixed: true})
	}

	g.adj = make([][]edge, len(g.nodes))
	for i := range g.nodes {
		for j := i + 1; j < len(g.nodes); j++ {
			if g.nodes[i].fixed && g.nodes[j].fixed {
				// Existing groups are fixed context; no need to connect them.
				continue
			}
			sim := Similarity(g.nodes[i].face, g.nodes[j].face, cfg)
			if sim < cfg.ClusterThreshold {
				continue
			}
			weight := 1.0
			if cfg.QualityWeighting {
				weight = g.nodes[i].face.Quality * g.nodes[j].face.Quality
			}
			g.adj[i] = append(g.adj[i], edge{peer: j, weight: weight})
			g.adj[j] = append(g.adj[j], edge{peer: i, weight: weight})
		}
	}
	return g
}

// propagate runs Chinese Whispers label propagation until labels
// stabilize or the iteration cap is reached. Faces below the quality gate
// may adopt labels but never contribute their own label to neighbors.
func (g *graph) propagate(cfg faces.RecognitionConfig) {
	order := make([]int, 0, len(g.nodes))
	for i, n := range g.nodes {
		if !n.fixed {
			order = append(order, i)
		}
	}

	for iter := 0; iter < constants.MaxWhisperIterations; iter++ {
		g.rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })

		changed := false
		for _, i := range order {
			best := g.strongestLabel(i, cfg)
			if best != "" && best != g.nodes[i].label {
				g.nodes[i].label = best
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// strongestLabel tallies neighbor labels by edge weight and returns the
// winner. Ties resolve to the lexicographically smallest label so a
// single pass is deterministic.
func (g *graph) strongestLabel(i int, cfg faces.RecognitionConfig) string {
	tally := make(map[string]float64)
	for _, e := range g.adj[i] {
		peer := g.nodes[e.peer]
		if peer.face.Quality < cfg.QualityGate {
			continue // below the gate: passively attached, never an anchor
		}
		tally[peer.label] += e.weight
	}

	var best string
	var bestWeight float64
	for label, weight := range tally {
		if weight > bestWeight || (weight == bestWeight && (best == "" || label < best)) {
			best = label
			bestWeight = weight
		}
	}
	return best
}

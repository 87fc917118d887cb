package graph

import "sort"

// SpreadingConfig controls the bounded-propagation spreading activation
// algorithm (Collins & Loftus 1975, adapted from SA-RAG arXiv:2512.15922).
type SpreadingConfig struct {
	DecayFactor     float64
	FiringThreshold float64
	MaxDepth        int
	FanOutPenalty   float64
}

// DefaultSpreadingConfig returns the spec defaults.
func DefaultSpreadingConfig() SpreadingConfig {
	return SpreadingConfig{
		DecayFactor:     0.5,
		FiringThreshold: 0.01,
		MaxDepth:        3,
		FanOutPenalty:   0.1,
	}
}

// Activated is one memory/entity reached by spreading activation.
type Activated struct {
	ID         string
	Activation float64
	Depth      int
}

// NeighborLister exposes the adjacency a graph needs for activation,
// satisfied by *Store.Neighbors.
type NeighborLister interface {
	Neighbors(id string) []Edge
}

// Spread performs bounded BFS propagation from seeds through graph, per hop:
//
//	propagated = current_activation * edge_weight * decay_factor * fan_out_factor
//	fan_out_factor = 1 / (1 + fan_out_penalty * degree)
//
// A propagated value below FiringThreshold is dropped. A neighbor's
// accumulated activation only updates (capped at 1.0) when the new
// propagated value strictly exceeds what's already recorded, and the
// neighbor is only re-queued when the new depth improves on any previously
// recorded depth for it. Results are sorted by activation descending, with
// ties broken by the order nodes were first activated (insertion order).
func Spread(graph NeighborLister, seeds []Activated, cfg SpreadingConfig) []Activated {
	activation := make(map[string]float64)
	visitedDepth := make(map[string]int)
	insertOrder := make(map[string]int)
	var order int

	type queued struct {
		id    string
		depth int
		act   float64
	}
	var queue []queued

	for _, seed := range seeds {
		act := clamp01(seed.Activation)
		activation[seed.ID] = act
		visitedDepth[seed.ID] = 0
		insertOrder[seed.ID] = order
		order++
		queue = append(queue, queued{id: seed.ID, depth: 0, act: act})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= cfg.MaxDepth {
			continue
		}

		neighbors := graph.Neighbors(current.id)
		degree := float64(len(neighbors))
		fanOutFactor := 1.0 / (1.0 + cfg.FanOutPenalty*degree)

		for _, edge := range neighbors {
			propagated := current.act * edge.Weight * cfg.DecayFactor * fanOutFactor
			if propagated < cfg.FiringThreshold {
				continue
			}

			newDepth := current.depth + 1
			existing, hasExisting := activation[edge.TargetID]

			if propagated > existing {
				next := existing + propagated
				if next > 1.0 {
					next = 1.0
				}
				activation[edge.TargetID] = next
				if !hasExisting {
					insertOrder[edge.TargetID] = order
					order++
				}

				recordedDepth, hasDepth := visitedDepth[edge.TargetID]
				if !hasDepth || newDepth < recordedDepth {
					visitedDepth[edge.TargetID] = newDepth
					queue = append(queue, queued{id: edge.TargetID, depth: newDepth, act: next})
				}
			}
		}
	}

	var results []Activated
	for id, act := range activation {
		if act < cfg.FiringThreshold {
			continue
		}
		results = append(results, Activated{ID: id, Activation: act, Depth: visitedDepth[id]})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Activation != results[j].Activation {
			return results[i].Activation > results[j].Activation
		}
		return insertOrder[results[i].ID] < insertOrder[results[j].ID]
	})
	return results
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

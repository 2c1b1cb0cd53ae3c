package routing

import (
	"math"

	"kuanb/gosm-transport/geom"
	"kuanb/gosm-transport/network"
)

// Coordinate represents a GPS observation point
type Coordinate struct {
	Lat float64
	Lon float64
}

// TraceMatch represents the output of the HMM map matching
type TraceMatch struct {
	Points     []PositionerPointOnGraph // matched point per observation
	Confidence float64                  // overall confidence score (0-1)
}

// HMMMapMatcher matches a whole trace of observations at once using a Hidden Markov Model.
// Transitions are scored by comparing the route distance between candidates with the great circle distance.
type HMMMapMatcher struct {
	graph            Graph
	pathfinder       *Pathfinder
	Network          network.NetworkType
	SigmaZ           float64 // GPS measurement noise (meters), typically 4.07
	Beta             float64 // transition probability parameter, typically 3.0
	MaxCandidateDist float64 // maximum distance to consider a candidate (meters)
	MaxCandidates    int     // candidates kept per observation, nearest first
}

// NewHMMMapMatcher creates a new HMM map matcher with default parameters
func NewHMMMapMatcher(g Graph, net network.NetworkType) *HMMMapMatcher {
	return &HMMMapMatcher{
		graph:            g,
		pathfinder:       NewPathfinder(g, nil),
		Network:          net,
		SigmaZ:           4.07, // typical GPS noise
		Beta:             3.0,  // transition parameter
		MaxCandidateDist: 35.0, // max 35m from GPS point
		MaxCandidates:    8,
	}
}

// Match performs HMM map matching on a sequence of coordinates
func (m *HMMMapMatcher) Match(coords []Coordinate) TraceMatch {
	if len(coords) == 0 {
		return TraceMatch{}
	}

	// Step 1: Find candidates for each observation
	candidates := m.findCandidates(coords)

	// Any observation without candidates breaks the chain
	for _, c := range candidates {
		if len(c) == 0 {
			return TraceMatch{}
		}
	}

	// Step 2: Run Viterbi algorithm
	path, confidence := m.viterbi(coords, candidates)

	return TraceMatch{
		Points:     path,
		Confidence: confidence,
	}
}

// findCandidates finds the matched points within MaxCandidateDist for each coordinate
func (m *HMMMapMatcher) findCandidates(coords []Coordinate) [][]PositionerPointOnGraph {
	candidates := make([][]PositionerPointOnGraph, len(coords))
	for i, coord := range coords {
		found := findCandidates(m.graph, matchInput{
			network:           m.Network,
			lat:               coord.Lat,
			lon:               coord.Lon,
			maxDistanceMeters: m.MaxCandidateDist,
		})
		if m.MaxCandidates > 0 && len(found) > m.MaxCandidates {
			found = found[:m.MaxCandidates]
		}
		candidates[i] = make([]PositionerPointOnGraph, 0, len(found))
		for _, c := range found {
			candidates[i] = append(candidates[i], resolve(c, nil))
		}
	}
	return candidates
}

// emissionProbability calculates P(observation | state) using Gaussian distribution
func (m *HMMMapMatcher) emissionProbability(distance float64) float64 {
	// Gaussian probability: exp(-0.5 * (d/sigma)^2)
	return math.Exp(-0.5 * math.Pow(distance/m.SigmaZ, 2))
}

// transitionProbability calculates P(state_t | state_{t-1})
// Based on the difference between great circle distance and route distance
func (m *HMMMapMatcher) transitionProbability(from, to PositionerPointOnGraph, gcDist float64) float64 {
	route, err := m.pathfinder.FindShortestPath(PathfindOptions{
		StartDirectedEdgeID: from.DirectedEdgeID,
		StartParameter:      from.ParameterizedPointOnEdge,
		GoalDirectedEdgeID:  to.DirectedEdgeID,
		GoalParameter:       to.ParameterizedPointOnEdge,
		AllowUTurnAtStart:   true,
		AllowUTurnAtGoal:    true,
	})
	if err != nil || !route.IsPathFound {
		return 0.001 * math.Exp(-gcDist/m.Beta)
	}
	// P(transition) = exp(-|routeDist - gcDist| / beta)
	return math.Exp(-math.Abs(route.DistanceMeters-gcDist) / m.Beta)
}

// viterbi runs the Viterbi algorithm to find the most likely path
func (m *HMMMapMatcher) viterbi(coords []Coordinate, candidates [][]PositionerPointOnGraph) ([]PositionerPointOnGraph, float64) {
	n := len(coords)
	if n == 0 {
		return nil, 0
	}

	// V[t][i] = probability of most likely path ending in candidate i at time t
	V := make([][]float64, n)
	// backpointer[t][i] = index of previous candidate in most likely path
	backpointer := make([][]int, n)

	for t := 0; t < n; t++ {
		V[t] = make([]float64, len(candidates[t]))
		backpointer[t] = make([]int, len(candidates[t]))
	}

	// Initialize: first observation
	for i, cand := range candidates[0] {
		V[0][i] = math.Log(m.emissionProbability(cand.DistanceMeters) + 1e-10)
		backpointer[0][i] = -1
	}

	// Recursion
	for t := 1; t < n; t++ {
		gcDist := geom.GreatCircleDistance(
			coords[t-1].Lon, coords[t-1].Lat,
			coords[t].Lon, coords[t].Lat,
		)

		for j, currCand := range candidates[t] {
			maxProb := math.Inf(-1)
			maxIdx := 0

			for i, prevCand := range candidates[t-1] {
				transProb := m.transitionProbability(prevCand, currCand, gcDist)
				prob := V[t-1][i] + math.Log(transProb+1e-10)

				if prob > maxProb {
					maxProb = prob
					maxIdx = i
				}
			}

			emitProb := m.emissionProbability(currCand.DistanceMeters)
			V[t][j] = maxProb + math.Log(emitProb+1e-10)
			backpointer[t][j] = maxIdx
		}
	}

	// Find best final state
	maxProb := math.Inf(-1)
	maxIdx := 0
	for i, prob := range V[n-1] {
		if prob > maxProb {
			maxProb = prob
			maxIdx = i
		}
	}

	// Backtrack to find path
	path := make([]PositionerPointOnGraph, n)
	idx := maxIdx
	for t := n - 1; t >= 0; t-- {
		path[t] = candidates[t][idx]
		idx = backpointer[t][idx]
	}

	return path, calculateConfidence(V, n, maxIdx)
}

// calculateConfidence converts the Viterbi probabilities to a confidence score
func calculateConfidence(V [][]float64, n int, bestIdx int) float64 {
	if n == 0 {
		return 0
	}

	// Use the ratio of best path probability to average probability
	bestLogProb := V[n-1][bestIdx]

	sumExp := 0.0
	for _, logP := range V[n-1] {
		sumExp += math.Exp(logP - bestLogProb) // normalize to prevent overflow
	}
	avgLogProb := bestLogProb + math.Log(sumExp/float64(len(V[n-1])))

	// Confidence based on how much better best path is than average
	confidence := 1.0 - math.Exp(-(bestLogProb - avgLogProb))
	return math.Max(0, math.Min(1, confidence))
}

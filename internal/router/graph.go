package router

import (
	"context"
	"fmt"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/sirupsen/logrus"
)

// NodeName identifies a processing node
type NodeName string

const (
	NodeExtractVariant NodeName = "extract_variant"
	NodeScoreVariant   NodeName = "score_variant"
	NodeBrainTumor     NodeName = "brain_tumor_model"
	NodeDiabetes       NodeName = "diabetes_analysis"
	NodeGenerateReport NodeName = "generate_report"
	nodeEnd            NodeName = ""
)

// Node transforms state into a partial update. Nodes never return errors;
// failures are reported through the update's Error field.
type Node func(ctx context.Context, state domain.SessionState) Update

// Graph is a fixed directed graph with one conditional entry branch
type Graph struct {
	classifier *Classifier
	nodes      map[NodeName]Node
	entries    map[Route]NodeName
	edges      map[NodeName]NodeName
	log        *logrus.Logger
}

// NewGraph wires the analysis nodes into the routing topology
func NewGraph(classifier *Classifier, nodes *Nodes, logger *logrus.Logger) *Graph {
	return &Graph{
		classifier: classifier,
		nodes: map[NodeName]Node{
			NodeExtractVariant: nodes.ExtractVariant,
			NodeScoreVariant:   nodes.ScoreVariant,
			NodeBrainTumor:     nodes.AnalyzeBrainScan,
			NodeDiabetes:       nodes.AnalyzeDiabetes,
			NodeGenerateReport: nodes.SynthesizeReport,
		},
		entries: map[Route]NodeName{
			RouteVariantExtraction: NodeExtractVariant,
			RouteBrainTumor:        NodeBrainTumor,
			RouteDiabetes:          NodeDiabetes,
			RouteReport:            NodeGenerateReport,
		},
		edges: map[NodeName]NodeName{
			NodeExtractVariant: NodeScoreVariant,
			NodeScoreVariant:   NodeGenerateReport,
			NodeBrainTumor:     NodeGenerateReport,
			NodeDiabetes:       NodeGenerateReport,
			NodeGenerateReport: nodeEnd,
		},
		log: logger,
	}
}

// Run classifies the query and executes the selected path to the end
func (g *Graph) Run(ctx context.Context, state domain.SessionState) (domain.SessionState, error) {
	route := g.classifier.Classify(state.UserQuery)
	entry, ok := g.entries[route]
	if !ok {
		return state, fmt.Errorf("no entry node for route %q", route)
	}

	g.log.WithFields(logrus.Fields{
		"session_id": state.SessionID,
		"route":      route,
	}).Info("Query routed")

	return g.RunFrom(ctx, entry, state)
}

// RunFrom executes the graph starting at node
func (g *Graph) RunFrom(ctx context.Context, start NodeName, state domain.SessionState) (domain.SessionState, error) {
	current := start
	for current != nodeEnd {
		node, ok := g.nodes[current]
		if !ok {
			return state, fmt.Errorf("unknown node %q", current)
		}

		began := time.Now()
		state = node(ctx, state).Apply(state)

		entry := g.log.WithFields(logrus.Fields{
			"session_id":  state.SessionID,
			"node":        current,
			"data_type":   state.DataType,
			"duration_ms": time.Since(began).Milliseconds(),
		})
		if state.Error != "" {
			entry.WithField("error", state.Error).Warn("Node reported failure")
		} else {
			entry.Debug("Node completed")
		}

		current = g.edges[current]
	}
	return state, nil
}

package scoring

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// Classifier maps a fixed-width feature vector to a probability in
// [0,1]. Implementations are pluggable; the shipped default is a
// deterministic weighted heuristic.
type Classifier interface {
	Predict(features []float64) (float64, error)
}

// VectorWidth is the fixed width of the anomaly feature vector.
const VectorWidth = 10

// AnomalyThreshold is the probability above which a threat is flagged
// anomalous.
const AnomalyThreshold = 0.5

// attackVocabulary is the curated keyword list matched case-insensitively
// against threat descriptions.
var attackVocabulary = []string{
	"attack", "exploit", "breach", "unauthorized", "malicious",
	"injection", "overflow", "backdoor", "botnet", "payload",
}

// AnomalyScorer scores threats against a pluggable binary classifier.
type AnomalyScorer struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewAnomalyScorer creates a scorer backed by the given classifier.
func NewAnomalyScorer(classifier Classifier, logger *slog.Logger) *AnomalyScorer {
	return &AnomalyScorer{classifier: classifier, logger: logger}
}

// Score returns the anomaly probability for a threat.
func (s *AnomalyScorer) Score(threat model.Threat) (float64, error) {
	features := ExtractFeatures(threat)
	p, err := s.classifier.Predict(features)
	if err != nil {
		return 0, fmt.Errorf("anomaly prediction failed: %w", err)
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p, nil
}

// IsAnomaly reports whether a probability crosses the decision threshold.
func (s *AnomalyScorer) IsAnomaly(probability float64) bool {
	return probability > AnomalyThreshold
}

// ExtractFeatures builds the fixed-width anomaly vector:
// severity score, keyword hits, normalized source address, normalized
// port, then zero padding up to VectorWidth.
func ExtractFeatures(threat model.Threat) []float64 {
	features := make([]float64, VectorWidth)
	features[0] = threat.Severity.Score()
	features[1] = keywordHits(threat.Description)
	features[2] = normalizeAddress(threat.SourceIP)
	features[3] = normalizePort(threat.Port)
	return features
}

func keywordHits(description string) float64 {
	lower := strings.ToLower(description)
	hits := 0
	for _, word := range attackVocabulary {
		if strings.Contains(lower, word) {
			hits++
		}
	}
	return float64(hits) / float64(len(attackVocabulary))
}

// normalizeAddress maps an IPv4 address onto [0,1] using its numeric
// value. Unparseable or missing addresses map to 0.
func normalizeAddress(addr string) float64 {
	ip := net.ParseIP(addr)
	if ip == nil {
		return 0
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	numeric := uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
	return float64(numeric) / float64(^uint32(0))
}

func normalizePort(port int) float64 {
	if port <= 0 || port > 65535 {
		return 0
	}
	return float64(port) / 65535.0
}

// HeuristicClassifier is the default deterministic classifier. It is a
// stand-in with the same contract a trained model would have; scores
// are reproducible, which the tests rely on.
type HeuristicClassifier struct {
	weights []float64
	bias    float64
}

// NewHeuristicClassifier returns the default classifier with fixed
// weights favoring severity and vocabulary hits.
func NewHeuristicClassifier() *HeuristicClassifier {
	return NewWeightedClassifier([]float64{0.45, 0.35, 0.05, 0.15, 0, 0, 0, 0, 0, 0}, 0.1)
}

// NewWeightedClassifier builds a deterministic classifier over an
// arbitrary vector width. The behavioral profiler uses this with
// 12-dimension weights.
func NewWeightedClassifier(weights []float64, bias float64) *HeuristicClassifier {
	return &HeuristicClassifier{weights: weights, bias: bias}
}

// Predict returns a weighted sum of the features clamped to [0,1].
func (c *HeuristicClassifier) Predict(features []float64) (float64, error) {
	if len(features) != len(c.weights) {
		return 0, fmt.Errorf("expected %d features, got %d", len(c.weights), len(features))
	}
	sum := c.bias
	for i, w := range c.weights {
		sum += w * features[i]
	}
	if sum < 0 {
		sum = 0
	}
	if sum > 1 {
		sum = 1
	}
	return sum, nil
}

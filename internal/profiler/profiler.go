package profiler

import (
	"container/ring"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
	"github.com/saksham1508/CyberSentinelAI/internal/scoring"
)

// VectorWidth is the fixed width of the behavioral feature vector.
const VectorWidth = 12

// HistorySize bounds the per-profile observation ring.
const HistorySize = 100

// BehavioralThreshold is the score above which behavior is flagged
// anomalous.
const BehavioralThreshold = 0.5

// Feature indices into the behavioral vector. Names are exported for
// the explainability auditor.
const (
	FeatSeverity = iota
	FeatPort
	FeatProtocol
	FeatDescriptionLength
	FeatProfileCount
	FeatRepetition
	FeatTypeDDoS
	FeatTypeIntrusion
	FeatTypeMalware
	FeatTypeCredential
	FeatTemporalAnomaly
	FeatFrequencyAnomaly
)

// FeatureNames maps vector indices to human-readable names.
var FeatureNames = [VectorWidth]string{
	"severity",
	"port",
	"protocol_class",
	"description_length",
	"profile_count",
	"repetition",
	"type_ddos",
	"type_intrusion",
	"type_malware",
	"type_credential_compromise",
	"temporal_anomaly",
	"frequency_anomaly",
}

// observation is one history entry in a profile's ring.
type observation struct {
	At       time.Time
	Severity model.Severity
	Type     model.ThreatType
}

// Profile is the rolling behavioral history for one (source, protocol)
// key. Profiles are created on first observation and evicted only by
// the LRU bound, never deleted explicitly.
type Profile struct {
	Key       string
	FirstSeen time.Time
	Count     int64
	history   *ring.Ring
	retained  int
}

// recent returns up to n most recent observations, newest last.
func (p *Profile) recent(n int) []observation {
	if n > p.retained {
		n = p.retained
	}
	out := make([]observation, 0, n)
	r := p.history
	for i := 0; i < n; i++ {
		r = r.Prev()
		obs, ok := r.Value.(observation)
		if !ok {
			break
		}
		out = append([]observation{obs}, out...)
	}
	return out
}

// HistoryLen reports how many observations the profile retains.
func (p *Profile) HistoryLen() int { return p.retained }

// BehavioralProfiler maintains per-(source, protocol) profiles and
// derives anomaly features from them.
type BehavioralProfiler struct {
	mu         sync.Mutex
	profiles   *lru.Cache[string, *Profile]
	classifier scoring.Classifier
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a profiler bounded to maxProfiles keys.
func New(maxProfiles int, classifier scoring.Classifier, logger *slog.Logger) (*BehavioralProfiler, error) {
	cache, err := lru.New[string, *Profile](maxProfiles)
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	if classifier == nil {
		classifier = defaultBehavioralClassifier()
	}
	return &BehavioralProfiler{
		profiles:   cache,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func defaultBehavioralClassifier() scoring.Classifier {
	weights := make([]float64, VectorWidth)
	weights[FeatSeverity] = 0.3
	weights[FeatRepetition] = 0.15
	weights[FeatTemporalAnomaly] = 0.2
	weights[FeatFrequencyAnomaly] = 0.2
	weights[FeatTypeDDoS] = 0.05
	weights[FeatTypeIntrusion] = 0.05
	weights[FeatTypeMalware] = 0.05
	return scoring.NewWeightedClassifier(weights, 0.05)
}

func profileKey(t model.Threat) string {
	source := t.SourceIP
	if source == "" {
		source = "unknown"
	}
	protocol := strings.ToLower(t.Protocol)
	if protocol == "" {
		protocol = "unknown"
	}
	return source + "|" + protocol
}

// Observe records the threat into its profile and derives the
// fixed-width behavioral feature vector.
func (bp *BehavioralProfiler) Observe(threat model.Threat) ([]float64, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := profileKey(threat)
	profile, ok := bp.profiles.Get(key)
	if !ok {
		profile = &Profile{
			Key:       key,
			FirstSeen: bp.now().UTC(),
			history:   ring.New(HistorySize),
		}
		bp.profiles.Add(key, profile)
	}

	at := threat.CreatedAt
	if at.IsZero() {
		at = bp.now().UTC()
	}
	profile.history.Value = observation{At: at, Severity: threat.Severity, Type: threat.Type}
	profile.history = profile.history.Next()
	if profile.retained < HistorySize {
		profile.retained++
	}
	profile.Count++

	return bp.featuresLocked(threat, profile), nil
}

// Score runs the behavioral vector through the classifier.
func (bp *BehavioralProfiler) Score(features []float64) (float64, error) {
	p, err := bp.classifier.Predict(features)
	if err != nil {
		return 0, fmt.Errorf("behavioral prediction failed: %w", err)
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p, nil
}

// IsAnomalous reports whether a behavioral score crosses the threshold.
func (bp *BehavioralProfiler) IsAnomalous(score float64) bool {
	return score > BehavioralThreshold
}

// ProfileCount reports how many profiles are currently tracked.
func (bp *BehavioralProfiler) ProfileCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.profiles.Len()
}

func (bp *BehavioralProfiler) featuresLocked(threat model.Threat, profile *Profile) []float64 {
	features := make([]float64, VectorWidth)
	features[FeatSeverity] = threat.Severity.Score()
	features[FeatPort] = normalizePort(threat.Port)
	features[FeatProtocol] = protocolClass(threat.Protocol)
	features[FeatDescriptionLength] = math.Min(float64(len(threat.Description))/200.0, 1.0)
	features[FeatProfileCount] = math.Min(float64(profile.Count)/float64(HistorySize), 1.0)
	if profile.Count > 5 {
		features[FeatRepetition] = 1.0
	}
	switch threat.Type {
	case model.TypeDDoS:
		features[FeatTypeDDoS] = 1.0
	case model.TypeIntrusion:
		features[FeatTypeIntrusion] = 1.0
	case model.TypeMalware:
		features[FeatTypeMalware] = 1.0
	case model.TypeCredentialCompromise:
		features[FeatTypeCredential] = 1.0
	}
	features[FeatTemporalAnomaly] = temporalAnomaly(profile)
	features[FeatFrequencyAnomaly] = frequencyAnomaly(profile)
	return features
}

func normalizePort(port int) float64 {
	if port <= 0 || port > 65535 {
		return 0
	}
	return float64(port) / 65535.0
}

// protocolClass buckets a protocol string onto [0,1].
func protocolClass(protocol string) float64 {
	switch strings.ToLower(protocol) {
	case "tcp":
		return 0.25
	case "udp":
		return 0.5
	case "icmp":
		return 0.75
	case "":
		return 0
	default:
		return 1.0
	}
}

// temporalAnomaly compares the most recent inter-arrival gap against
// the mean of all prior gaps. A zero mean means no anomaly. Requires
// at least two retained observations.
func temporalAnomaly(profile *Profile) float64 {
	history := profile.recent(profile.retained)
	if len(history) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		gaps = append(gaps, history[i].At.Sub(history[i-1].At).Seconds())
	}
	lastGap := gaps[len(gaps)-1]
	prior := gaps[:len(gaps)-1]
	if len(prior) == 0 {
		return 0
	}
	sum := 0.0
	for _, g := range prior {
		sum += g
	}
	mean := sum / float64(len(prior))
	if mean == 0 {
		return 0
	}
	if math.Abs(lastGap-mean) > 2*mean {
		return 1.0
	}
	return 0
}

// frequencyAnomaly compares the rate over the most recent 5 entries
// against the overall per-entry average rate. Requires at least three
// total observations.
func frequencyAnomaly(profile *Profile) float64 {
	if profile.Count < 3 {
		return 0
	}
	history := profile.recent(profile.retained)
	if len(history) < 3 {
		return 0
	}
	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	recentSpan := recent[len(recent)-1].At.Sub(recent[0].At).Seconds()
	totalSpan := history[len(history)-1].At.Sub(history[0].At).Seconds()
	if recentSpan <= 0 || totalSpan <= 0 {
		return 0
	}
	recentRate := float64(len(recent)) / recentSpan
	averageRate := float64(len(history)) / totalSpan
	if averageRate == 0 {
		return 0
	}
	if recentRate > 3*averageRate {
		return 1.0
	}
	return 0
}

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/insilicare/postmarket/internal/metrics"
)

// Decl declares one rule section: its report key and the human-readable
// rationale emitted under "information".
type Decl struct {
	Name        string
	Information string
}

type section struct {
	information string
	results     map[string]interface{}
}

// Report collects per-record rule results under declared sections. Sections
// serialize in declaration order regardless of insertion order, and a result
// is never overwritten once recorded.
type Report struct {
	order    []string
	sections map[string]*section
}

// New builds an empty report with the declared sections.
func New(decls ...Decl) *Report {
	r := &Report{sections: make(map[string]*section, len(decls))}
	for _, d := range decls {
		r.order = append(r.order, d.Name)
		r.sections[d.Name] = &section{
			information: d.Information,
			results:     make(map[string]interface{}),
		}
	}
	return r
}

// Add records the result for one record under a section. Recording twice for
// the same (section, record) pair is a programming error.
func (r *Report) Add(sectionName, recordID string, result interface{}) error {
	s, ok := r.sections[sectionName]
	if !ok {
		return fmt.Errorf("unknown report section %q", sectionName)
	}
	if _, exists := s.results[recordID]; exists {
		return fmt.Errorf("duplicate result for record %q in section %q", recordID, sectionName)
	}
	s.results[recordID] = result
	return nil
}

// Result returns the recorded result for a (section, record) pair.
func (r *Report) Result(sectionName, recordID string) (interface{}, bool) {
	s, ok := r.sections[sectionName]
	if !ok {
		return nil, false
	}
	res, ok := s.results[recordID]
	return res, ok
}

// MarshalJSON writes sections in declaration order. Within a section the
// "information" entry comes first and records follow sorted by identifier,
// so output is stable under concurrent evaluation.
func (r *Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, name := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		s := r.sections[name]

		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(`:{"information":`)

		info, err := json.Marshal(s.information)
		if err != nil {
			return nil, err
		}
		buf.Write(info)

		ids := make([]string, 0, len(s.results))
		for id := range s.results {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			buf.WriteByte(',')
			idKey, err := json.Marshal(id)
			if err != nil {
				return nil, err
			}
			buf.Write(idKey)
			buf.WriteByte(':')
			res, err := json.Marshal(s.results[id])
			if err != nil {
				return nil, fmt.Errorf("marshal result for %q: %w", id, err)
			}
			buf.Write(res)
		}
		buf.WriteByte('}')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PercentPair compares a percentage metric between datasets, formatted in
// percentage points.
type PercentPair struct {
	RWD        string `json:"rwd"`
	Synthetic  string `json:"synthetic"`
	Difference string `json:"difference"`
}

// ValuePair compares an absolute-error metric between datasets. The
// difference is the key comparability signal.
type ValuePair struct {
	RWD        float64 `json:"rwd"`
	Synthetic  float64 `json:"synthetic"`
	Difference string  `json:"difference"`
}

// Adversarial is the model-performance comparison between the real-world and
// synthetic datasets. Field declaration order fixes the serialized order.
type Adversarial struct {
	Information  string      `json:"information"`
	CoverageRate PercentPair `json:"Coverage Rate"`
	MAE          ValuePair   `json:"MAE"`
	RMSE         ValuePair   `json:"RMSE"`
	MAPE         PercentPair `json:"MAPE"`
}

// NewAdversarial assembles the comparison report from the two independently
// computed metric summaries.
func NewAdversarial(information string, rwd, synthetic metrics.Summary) Adversarial {
	return Adversarial{
		Information:  information,
		CoverageRate: percentPair(rwd.Coverage, synthetic.Coverage),
		MAE:          valuePair(rwd.MAE, synthetic.MAE),
		RMSE:         valuePair(rwd.RMSE, synthetic.RMSE),
		MAPE:         percentPair(rwd.MAPE, synthetic.MAPE),
	}
}

func percentPair(rwd, synthetic float64) PercentPair {
	return PercentPair{
		RWD:        fmt.Sprintf("%.2fpp", rwd),
		Synthetic:  fmt.Sprintf("%.2fpp", synthetic),
		Difference: fmt.Sprintf("%.2fpp", math.Abs(rwd-synthetic)),
	}
}

func valuePair(rwd, synthetic float64) ValuePair {
	return ValuePair{
		RWD:        round4(rwd),
		Synthetic:  round4(synthetic),
		Difference: fmt.Sprintf("%.4f", math.Abs(rwd-synthetic)),
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Exclusion records one file left out of an evaluation, with the reason.
// Exclusions are report data, never silent.
type Exclusion struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Combined bundles the three evaluation documents into the single run
// artifact handed to downstream reporting.
type Combined struct {
	RunID               string                 `json:"run_id"`
	GeneratedAt         time.Time              `json:"generated_at"`
	ExpertKnowledge     json.RawMessage        `json:"expert_knowledge_evaluation"`
	StatisticalAnalysis json.RawMessage        `json:"statistical_analysis_evaluation"`
	Adversarial         json.RawMessage        `json:"adversarial_evaluation"`
	Exclusions          map[string][]Exclusion `json:"excluded_files,omitempty"`
}

package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insilicare/postmarket/internal/metrics"
)

type result struct {
	Valid bool `json:"valid"`
}

func TestReport_SectionsSerializeInDeclarationOrder(t *testing.T) {
	rep := New(
		Decl{Name: "check_1", Information: "first"},
		Decl{Name: "check_2", Information: "second"},
	)

	// Insert against declaration order.
	require.NoError(t, rep.Add("check_2", "b.json", result{Valid: true}))
	require.NoError(t, rep.Add("check_1", "a.json", result{Valid: false}))

	b, err := json.Marshal(rep)
	require.NoError(t, err)

	out := string(b)
	assert.Less(t, strings.Index(out, "check_1"), strings.Index(out, "check_2"))
}

func TestReport_RecordsSortedByIdentifier(t *testing.T) {
	rep := New(Decl{Name: "check_1", Information: "info"})
	require.NoError(t, rep.Add("check_1", "z.json", result{}))
	require.NoError(t, rep.Add("check_1", "a.json", result{}))

	b, err := json.Marshal(rep)
	require.NoError(t, err)

	out := string(b)
	assert.Less(t, strings.Index(out, "a.json"), strings.Index(out, "z.json"))
	assert.Less(t, strings.Index(out, "information"), strings.Index(out, "a.json"))
}

func TestReport_DuplicateInsertFails(t *testing.T) {
	rep := New(Decl{Name: "check_1", Information: "info"})
	require.NoError(t, rep.Add("check_1", "a.json", result{Valid: true}))

	err := rep.Add("check_1", "a.json", result{Valid: false})
	assert.Error(t, err)

	// The original result is untouched.
	res, ok := rep.Result("check_1", "a.json")
	require.True(t, ok)
	assert.Equal(t, result{Valid: true}, res)
}

func TestReport_UnknownSectionFails(t *testing.T) {
	rep := New(Decl{Name: "check_1", Information: "info"})
	assert.Error(t, rep.Add("check_9", "a.json", result{}))
}

func TestReport_RoundTrip(t *testing.T) {
	rep := New(
		Decl{Name: "criterion_1", Information: "glucose range"},
		Decl{Name: "criterion_2", Information: "subcutaneous insulin"},
	)
	require.NoError(t, rep.Add("criterion_1", "p1.json", result{Valid: true}))
	require.NoError(t, rep.Add("criterion_2", "p1.json", result{Valid: false}))

	b, err := json.Marshal(rep)
	require.NoError(t, err)

	var parsed map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &parsed))

	require.Contains(t, parsed, "criterion_1")
	require.Contains(t, parsed, "criterion_2")
	assert.JSONEq(t, `"glucose range"`, string(parsed["criterion_1"]["information"]))
	assert.JSONEq(t, `{"valid":true}`, string(parsed["criterion_1"]["p1.json"]))
	assert.JSONEq(t, `{"valid":false}`, string(parsed["criterion_2"]["p1.json"]))

	// Serializing again produces the identical document.
	again, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(again))
}

func TestNewAdversarial_Formatting(t *testing.T) {
	rwd := metrics.Summary{Coverage: 90.0, MAE: 1.23456, RMSE: 2.34567, MAPE: 12.5}
	synthetic := metrics.Summary{Coverage: 85.5, MAE: 1.5, RMSE: 2.0, MAPE: 10.0}

	rep := NewAdversarial("info", rwd, synthetic)

	assert.Equal(t, "90.00pp", rep.CoverageRate.RWD)
	assert.Equal(t, "85.50pp", rep.CoverageRate.Synthetic)
	assert.Equal(t, "4.50pp", rep.CoverageRate.Difference)

	assert.Equal(t, 1.2346, rep.MAE.RWD)
	assert.Equal(t, 1.5, rep.MAE.Synthetic)
	assert.Equal(t, "0.2654", rep.MAE.Difference)

	assert.Equal(t, 2.3457, rep.RMSE.RWD)
	assert.Equal(t, "0.3457", rep.RMSE.Difference)

	assert.Equal(t, "12.50pp", rep.MAPE.RWD)
	assert.Equal(t, "2.50pp", rep.MAPE.Difference)
}

func TestNewAdversarial_DifferenceIsAbsolute(t *testing.T) {
	rwd := metrics.Summary{MAE: 1.0}
	synthetic := metrics.Summary{MAE: 3.0}

	rep := NewAdversarial("info", rwd, synthetic)
	assert.Equal(t, "2.0000", rep.MAE.Difference)
}

func TestAdversarial_KeyOrder(t *testing.T) {
	rep := NewAdversarial("info", metrics.Summary{}, metrics.Summary{})
	b, err := json.Marshal(rep)
	require.NoError(t, err)

	out := string(b)
	order := []string{"information", "Coverage Rate", "MAE", "RMSE", "MAPE"}
	last := -1
	for _, key := range order {
		idx := strings.Index(out, `"`+key+`"`)
		require.GreaterOrEqual(t, idx, 0, key)
		assert.Greater(t, idx, last)
		last = idx
	}
}

package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPatient = `{
	"hospitalID": "H-001",
	"updateTime": 1710504000000,
	"episodes": [{"bloodGlucose": [[1710500400000, 6.5]]}]
}`

func writeSample(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "patient_a.json", validPatient)
	writeSample(t, dir, "patient_b.json", validPatient)
	writeSample(t, dir, "broken.json", `{"hospitalID": "H-002"`)
	writeSample(t, dir, "no_anchor.json", `{"hospitalID": "H-003", "episodes": []}`)
	writeSample(t, dir, "notes.txt", "not a sample")

	records, failures, err := LoadDir(dir)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "patient_a.json", records[0].Name)
	assert.Equal(t, "patient_b.json", records[1].Name)
	assert.Equal(t, "H-001", records[0].Patient.HospitalID)

	require.Len(t, failures, 2)
	names := []string{failures[0].Name, failures[1].Name}
	assert.ElementsMatch(t, []string{"broken.json", "no_anchor.json"}, names)
	for _, f := range failures {
		assert.NotEmpty(t, f.Reason)
	}
}

func TestLoadDir_SubdirectoriesIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))
	writeSample(t, dir, "patient.json", validPatient)

	records, failures, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Empty(t, failures)
}

func TestLoadDir_EmptyDirIsNotAnError(t *testing.T) {
	records, failures, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, failures)
}

func TestLoadDir_MissingDirFails(t *testing.T) {
	_, _, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

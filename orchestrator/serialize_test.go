package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtifactNDJSONSkipsBlankLines(t *testing.T) {
	data := []byte("{\"name\":\"a\",\"value\":\"1\"}\n\n{\"name\":\"b\",\"value\":\"2\"}\n")

	items, err := parseArtifact(data, FormatNDJSON)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Name)
	assert.Equal(t, "b", items[1].Name)
}

func TestParseArtifactNDJSONReportsLineNumber(t *testing.T) {
	data := []byte("{\"name\":\"a\",\"value\":\"1\"}\nnot json\n")

	_, err := parseArtifact(data, FormatNDJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestFormatForArtifactInfersFromSuffix(t *testing.T) {
	assert.Equal(t, FormatNDJSON, formatForArtifact("col/backup-x.ndjson", FormatJSON))
	assert.Equal(t, FormatJSON, formatForArtifact("col/backup-x.json", FormatNDJSON))
	assert.Equal(t, FormatNDJSON, formatForArtifact("col/backup-x.snap", FormatNDJSON))
	assert.Equal(t, FormatJSON, formatForArtifact("col/backup-x.snap", ""))
}

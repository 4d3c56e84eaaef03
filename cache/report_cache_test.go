package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "voicecleaner:run:abc", RunKey("abc"))
	assert.Equal(t, "voicecleaner:run:latest", LatestKey())
}

func TestDecodeSummary(t *testing.T) {
	s, err := decodeSummary([]byte(`{"runId":"r1","preset":"light","entries":[{"fileId":"a.wav","status":"succeeded"}],"succeeded":1}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", s.RunID)
	require.Len(t, s.Entries, 1)
	assert.Equal(t, "a.wav", s.Entries[0].FileID)

	_, err = decodeSummary([]byte("{"))
	assert.Error(t, err)
}

func TestReportCache_Name(t *testing.T) {
	assert.Equal(t, "redis", NewReportCache(nil, 0).Name())
}

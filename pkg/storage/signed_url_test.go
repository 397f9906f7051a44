package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, expires, err := signer.Generate("report-1", "marks/report-1.csv")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	reportID, relPath, _, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "report-1", reportID)
	assert.Equal(t, "marks/report-1.csv", relPath)
}

func TestSignedURLTamperedSignature(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, _, err := signer.Generate("report-1", "marks/report-1.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token + "ff")
	require.Error(t, err)
}

func TestSignedURLExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	signer.ttl = -time.Minute

	token, _, err := signer.Generate("report-1", "marks/report-1.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
}

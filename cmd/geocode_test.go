package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/darren-owldoor/owldoor-geocoder/internal/batch"
)

func TestChunkSizeOrDefault(t *testing.T) {
	assert.Equal(t, 500, chunkSizeOrDefault(500, 2000))
	assert.Equal(t, 2000, chunkSizeOrDefault(0, 2000))
	assert.Equal(t, batch.DefaultChunkSize, chunkSizeOrDefault(0, 0))
	assert.Equal(t, batch.DefaultChunkSize, chunkSizeOrDefault(-1, -1))
}

func TestDelimiterRune(t *testing.T) {
	assert.Equal(t, ';', delimiterRune(";", ","))
	assert.Equal(t, '\t', delimiterRune("\t", ""))
	assert.Equal(t, '|', delimiterRune("", "|"))
	assert.Equal(t, ',', delimiterRune("", ""))
	// Only the first rune counts.
	assert.Equal(t, ';', delimiterRune(";;", ""))
}

func TestEncodingOrDefault(t *testing.T) {
	assert.Equal(t, "latin1", encodingOrDefault("latin1", "utf8"))
	assert.Equal(t, "utf8", encodingOrDefault("", "utf8"))
	assert.Equal(t, "", encodingOrDefault("", ""))
}

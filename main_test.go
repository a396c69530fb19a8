package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/rmbg/config"
)

func TestBuildRemover(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	_, err = buildRemover(cfg)
	assert.Error(t, err, "no backend should fail startup")

	cfg.Model.Endpoint = "http://localhost:8188/segment"
	chain, err := buildRemover(cfg)
	require.NoError(t, err)
	assert.Len(t, chain, 1)

	cfg.RemoveBG.APIKey = "key"
	chain, err = buildRemover(cfg)
	require.NoError(t, err)
	assert.Len(t, chain, 2)

	cfg.Model.Endpoint = "ftp://nope"
	_, err = buildRemover(cfg)
	assert.Error(t, err)
}

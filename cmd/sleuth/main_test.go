package main

import (
	"bytes"
	"io"
	"testing"

	"coinsleuth/adapters/ingestion"
	"coinsleuth/adapters/stats/runlength"
	"coinsleuth/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDataFile(t *testing.T) {
	assert.True(t, isDataFile("flips.CSV"))
	assert.True(t, isDataFile("book.xlsx"))
	assert.True(t, isDataFile("export.json"))
	assert.False(t, isDataFile("0011"))
}

func TestLoadDataset_InlineSequences(t *testing.T) {
	data, err := loadDataset(nil, []string{"0011", "HTHT"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{ingestion.SequenceColumn}, data.Headers)
	assert.Equal(t, []string{"0011", "HTHT"}, data.Column(ingestion.SequenceColumn))
}

func TestOpenContainer_FlagOverrides(t *testing.T) {
	t.Setenv("SLEUTH_BACKEND", "sqlite")
	t.Setenv("LOG_LEVEL", "ERROR")

	flags := &storageFlags{folder: t.TempDir(), file: "cli.db", workers: 3, noCache: true}
	c, err := openContainer(t.Context(), flags)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "cli.db", c.Config.Storage.FileName)
	assert.Equal(t, 3, c.Config.Analysis.Workers)
	assert.False(t, c.Config.Storage.EnableInMemoryCache)
	assert.True(t, c.Config.Storage.EnablePersistence)
}

func TestRender_Formats(t *testing.T) {
	table, err := runlength.Calculate(t.Context(), 1)
	require.NoError(t, err)
	doc := api.TableDocument(table)

	var out bytes.Buffer
	require.NoError(t, render(&out, "yaml", doc, nil))
	assert.Contains(t, out.String(), "key: /statistics/N_1")
	assert.Contains(t, out.String(), "log_chi_squared: null")

	out.Reset()
	require.NoError(t, render(&out, "json", doc, nil))
	assert.Contains(t, out.String(), `"log_chi_squared": null`)

	out.Reset()
	require.NoError(t, render(&out, "text", doc, func(w io.Writer) error { return printTable(w, table) }))
	assert.Contains(t, out.String(), "total multiplicity 2")

	assert.Error(t, render(&out, "xml", doc, nil))
}

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ella-cms/scribble/internal/catalog"
)

func TestParseValues_Assignments(t *testing.T) {
	got, err := parseValues("", []string{"username=johndoe", "id=12", "commercial=true", "title=a=b", "note=12abc"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"username":   "johndoe",
		"id":         json.Number("12"),
		"commercial": true,
		"title":      "a=b",
		"note":       "12abc",
	}, got)
}

func TestParseValues_JSONThenAssignments(t *testing.T) {
	got, err := parseValues(`{"title":"from json","category":{"id":3}}`, []string{"title=override"})
	require.NoError(t, err)

	assert.Equal(t, "override", got["title"])
	assert.Equal(t, map[string]any{"id": json.Number("3")}, got["category"])
}

func TestParseValues_Malformed(t *testing.T) {
	_, err := parseValues("", []string{"novalue"})
	assert.Error(t, err)

	_, err = parseValues("{", nil)
	assert.Error(t, err)
}

func TestPrintTypes_ListsFieldsWithTargets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTypes(&buf, catalog.MustNew()))

	out := buf.String()
	assert.Contains(t, out, "article\n")
	assert.Contains(t, out, "authors")
	assert.Contains(t, out, "collection -> author")
	assert.Contains(t, out, "parent_category")
}

package service

import (
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/ella-cms/scribble/internal/catalog"
)

func TestFilterValues_Scalars(t *testing.T) {
	listing := mustNew(t, catalog.Listing, map[string]any{
		"commercial":   false,
		"publish_from": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		"resource_uri": "/x/",
	})

	got := FilterValues(listing, zerolog.Nop())
	assert.Equal(t, url.Values{
		"commercial":   {"false"},
		"publish_from": {"2024-01-02T03:04:05.000Z"},
		"resource_uri": {"/x/"},
	}, got)
}

func TestFilterValues_NestedEncodeAsIDs(t *testing.T) {
	article := mustNew(t, catalog.Article, map[string]any{
		"category": 3,
		"authors":  []any{1, map[string]any{"name": "unsaved"}, 2},
		"source":   map[string]any{"name": "unsaved"},
	})

	got := FilterValues(article, zerolog.Nop())
	assert.Equal(t, url.Values{
		"category": {"3"},
		"authors":  {"1", "2"},
	}, got)
}

func TestFilterValues_EmptyEntityHasNoFilter(t *testing.T) {
	assert.Empty(t, FilterValues(mustNew(t, catalog.Site, nil), zerolog.Nop()))
}

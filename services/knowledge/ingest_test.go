// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIngestor_NilClient(t *testing.T) {
	_, err := NewIngestor(nil, nil)
	assert.Error(t, err)
}

func TestIngest_Validation(t *testing.T) {
	ing := &Ingestor{client: &Client{}}

	_, err := ing.Ingest(context.Background(), IngestRequest{Source: "doc.md"})
	assert.Error(t, err, "empty content rejected")

	_, err = ing.Ingest(context.Background(), IngestRequest{Content: "text"})
	assert.Error(t, err, "empty source rejected")
}

func TestSplitterForSource(t *testing.T) {
	// Markdown documents split on heading boundaries before paragraphs.
	md := splitterForSource("lists.md")
	chunks, err := md.SplitText("# Lists\n\n" + strings.Repeat("Lists hold ordered items. ", 60) +
		"\n## Appending\n\n" + strings.Repeat("Append adds to the end. ", 60))
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)

	// Short content stays in one chunk regardless of splitter.
	plain := splitterForSource("notes.txt")
	chunks, err = plain.SplitText("A single short paragraph.")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

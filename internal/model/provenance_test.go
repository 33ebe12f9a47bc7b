package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceRank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, SourceOCR.Rank(), SourceDOM.Rank())
	assert.Greater(t, SourceDOM.Rank(), SourceAI.Rank())
	assert.Zero(t, Source("other").Rank())
}

func TestProvenance_Clone(t *testing.T) {
	t.Parallel()

	p := Provenance{FieldMRP: SourceOCR, FieldOrigin: SourceDOM}
	c := p.Clone()
	c[FieldOrigin] = SourceAI

	assert.Equal(t, SourceDOM, p[FieldOrigin], "clone is independent")
	assert.Equal(t, SourceOCR, c[FieldMRP])
	assert.Empty(t, Provenance(nil).Clone())
}

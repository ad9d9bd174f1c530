package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pdfreader-backend/internal/model"
)

func TestIsLegacy(t *testing.T) {
	legacy := &model.Annotation{GeometryMode: model.GeometryLegacyAbsolute.String()}
	normalized := &model.Annotation{GeometryMode: model.GeometryNormalized.String()}

	assert.True(t, isLegacy(legacy))
	assert.False(t, isLegacy(normalized))
}

func TestWasRepaired(t *testing.T) {
	normalized := &model.Annotation{GeometryMode: model.GeometryNormalized.String()}
	legacy := &model.Annotation{GeometryMode: model.GeometryLegacyAbsolute.String()}

	// 변환 대상이었고 normalized가 된 경우만 저장한다
	assert.True(t, wasRepaired(normalized, true))
	assert.False(t, wasRepaired(normalized, false))
	assert.False(t, wasRepaired(legacy, true))
}

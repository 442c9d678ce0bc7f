package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubetrack-backend/internal/models"
)

func TestJSONArray(t *testing.T) {
	assert.Equal(t, "[]", string(jsonArray(nil)))
	assert.Equal(t, "[]", string(jsonArray([]string(nil))))
	assert.Equal(t, `["a","b"]`, string(jsonArray([]string{"a", "b"})))
}

func TestJSONNullable(t *testing.T) {
	var f *models.FormulaOrLogic
	assert.Nil(t, jsonNullable(f))
	assert.Equal(t, `{"formula":"a+b"}`, string(jsonNullable(&models.FormulaOrLogic{Formula: "a+b"})))
}

func TestUnmarshalIfSet(t *testing.T) {
	var got []int
	require.NoError(t, unmarshalIfSet(nil, &got))
	require.NoError(t, unmarshalIfSet([]byte("null"), &got))
	assert.Nil(t, got)

	require.NoError(t, unmarshalIfSet([]byte("[1,-1]"), &got))
	assert.Equal(t, []int{1, -1}, got)
}

package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	obj, ok := ExtractObject(`{"a":1}`)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, obj)

	obj, ok = ExtractObject("Here is my answer:\n```json\n{\"direction\": \"buy\"}\n```\nhope that helps")
	require.True(t, ok)
	assert.Equal(t, `{"direction": "buy"}`, obj)

	obj, ok = ExtractObject(`prefix {"outer":{"inner":"}"}} suffix`)
	require.True(t, ok)
	assert.Equal(t, `{"outer":{"inner":"}"}}`, obj)

	_, ok = ExtractObject("no object here")
	assert.False(t, ok)

	_, ok = ExtractObject(`{"unbalanced": true`)
	assert.False(t, ok)

	_, ok = ExtractObject("")
	assert.False(t, ok)
}

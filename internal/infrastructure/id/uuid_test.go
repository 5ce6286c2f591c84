package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator(t *testing.T) {
	g := NewUUIDGenerator("ord_")
	a, b := g.NewID(), g.NewID()
	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "ord_"))
	_, err := uuid.Parse(strings.TrimPrefix(a, "ord_"))
	require.NoError(t, err)
}

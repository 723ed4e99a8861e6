package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listou/internal/liststore"
	"listou/internal/shopping"
)

func TestResolveItem(t *testing.T) {
	items := listOrder([]shopping.Item{
		{ID: "3f2a9c10-aaaa", Name: "Arroz", Category: shopping.Mercearia},
		{ID: "7b61d0e4-bbbb", Name: "Leite", Category: shopping.Laticinios},
		{ID: "7b61d0ff-cccc", Name: "Pão", Category: shopping.Padaria},
	})
	require.Equal(t, []string{"Leite", "Pão", "Arroz"}, []string{items[0].Name, items[1].Name, items[2].Name})

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "first position", ref: "1", want: "7b61d0e4-bbbb"},
		{name: "last position", ref: "3", want: "3f2a9c10-aaaa"},
		{name: "full id", ref: "7b61d0ff-cccc", want: "7b61d0ff-cccc"},
		{name: "id prefix", ref: "3f2a9c", want: "3f2a9c10-aaaa"},
		{name: "position zero", ref: "0"},
		{name: "position past the end", ref: "4"},
		{name: "short prefix", ref: "3f2a"},
		{name: "unknown id", ref: "ffffff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveItem(items, tt.ref)
			if tt.want == "" {
				assert.ErrorIs(t, err, liststore.ErrNotFound)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveItemPrefixTakesFirstMatch(t *testing.T) {
	items := []shopping.Item{{ID: "7b61d0e4-bbbb"}, {ID: "7b61d0ff-cccc"}}

	got, err := resolveItem(items, "7b61d0")
	require.NoError(t, err)
	assert.Equal(t, "7b61d0e4-bbbb", got)
}

func TestResolveItemEmptyList(t *testing.T) {
	_, err := resolveItem(nil, "1")
	assert.ErrorIs(t, err, liststore.ErrNotFound)
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("R$ 4,50")
	require.NoError(t, err)
	assert.Equal(t, 4.5, *v)

	_, err = parseAmount("caro")
	assert.Error(t, err)
}

func TestReorderMovesFlagsFirst(t *testing.T) {
	got := reorder([]string{"Arroz", "-qty", "2", "-clear-price", "-unit=kg"})
	assert.Equal(t, []string{"-qty", "2", "-clear-price", "-unit=kg", "Arroz"}, got)
}

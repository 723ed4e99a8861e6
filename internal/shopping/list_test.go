package shopping

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	items := []Item{
		{ID: "a", Name: "Arroz", Quantity: 2, Category: Mercearia, Price: Float(10)},
		{ID: "b", Name: "Leite", Quantity: 3, Category: Laticinios, Price: Float(4.5), Bought: true},
		{ID: "c", Name: "Sal", Quantity: 1, Category: Mercearia},
	}

	got := ComputeTotals(items)
	assert.InDelta(t, 33.5, got.Total, 1e-9)
	assert.InDelta(t, 13.5, got.Bought, 1e-9)
	assert.InDelta(t, 20, got.Remaining, 1e-9)
}

func TestProgressAndComplete(t *testing.T) {
	tests := []struct {
		name     string
		items    []Item
		progress int
		complete bool
	}{
		{"empty", nil, 0, false},
		{"none bought", []Item{{ID: "a"}, {ID: "b"}}, 0, false},
		{"one of three", []Item{{ID: "a", Bought: true}, {ID: "b"}, {ID: "c"}}, 33, false},
		{"two of three", []Item{{ID: "a", Bought: true}, {ID: "b", Bought: true}, {ID: "c"}}, 67, false},
		{"all", []Item{{ID: "a", Bought: true}, {ID: "b", Bought: true}}, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.progress, Progress(tt.items))
			assert.Equal(t, tt.complete, Complete(tt.items))
		})
	}
}

func TestEqual(t *testing.T) {
	a := []Item{{ID: "a", Name: "Arroz", Price: Float(5)}}
	b := []Item{{ID: "a", Name: "Arroz", Price: Float(5)}}
	assert.True(t, Equal(a, b), "prices compare by value, not pointer")

	b[0].Price = Float(6)
	assert.False(t, Equal(a, b))

	b[0].Price = nil
	assert.False(t, Equal(a, b))

	assert.True(t, Equal(nil, []Item{}))
	assert.False(t, Equal(a, append(Clone(a), Item{ID: "b"})))
}

func TestCloneIsIndependent(t *testing.T) {
	orig := []Item{{ID: "a", Price: Float(1)}}
	dup := Clone(orig)
	*dup[0].Price = 99
	dup[0].Name = "changed"

	assert.Equal(t, 1.0, *orig[0].Price)
	assert.Empty(t, orig[0].Name)
	assert.Nil(t, Clone(nil))
}

func TestPatchApply(t *testing.T) {
	item := Item{ID: "a", Name: "Arroz", Quantity: 1, Unit: "kg", Category: Mercearia, Price: Float(5), AddedBy: "Ana"}

	name := "Arroz integral"
	qty := 2.0
	got := Patch{Name: &name, Quantity: &qty}.Apply(item)
	assert.Equal(t, "Arroz integral", got.Name)
	assert.Equal(t, 2.0, got.Quantity)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, "Ana", got.AddedBy)
	assert.Equal(t, 5.0, *got.Price)

	cleared := Patch{ClearPrice: true}.Apply(item)
	assert.Nil(t, cleared.Price)
	assert.NotNil(t, item.Price, "apply must not touch the original")
}

func TestGroupByCategory(t *testing.T) {
	items := []Item{
		{ID: "1", Category: Limpeza},
		{ID: "2", Category: Carnes},
		{ID: "3", Category: "Pet"},
		{ID: "4", Category: Carnes},
	}

	groups := GroupByCategory(items)
	require.Len(t, groups, 3)
	assert.Equal(t, Carnes, groups[0].Category)
	assert.Equal(t, []string{"2", "4"}, []string{groups[0].Items[0].ID, groups[0].Items[1].ID})
	assert.Equal(t, Limpeza, groups[1].Category)
	assert.Equal(t, Category("Pet"), groups[2].Category)
}

func TestBasicBasket(t *testing.T) {
	first := BasicBasket()
	second := BasicBasket()
	require.Len(t, first, 17)

	seen := map[string]bool{}
	for i, item := range first {
		require.NoError(t, Validate(item), item.Name)
		assert.NotEmpty(t, item.ID)
		assert.NotEqual(t, item.ID, second[i].ID)
		assert.False(t, seen[item.ID])
		seen[item.ID] = true
	}
}

func TestValidate(t *testing.T) {
	valid := Item{ID: "a", Name: "Pão", Quantity: 1, Category: Padaria, Price: Float(0)}
	require.NoError(t, Validate(valid))

	tests := []struct {
		name   string
		mutate func(*Item)
	}{
		{"missing name", func(i *Item) { i.Name = "" }},
		{"negative quantity", func(i *Item) { i.Quantity = -1 }},
		{"NaN quantity", func(i *Item) { i.Quantity = math.NaN() }},
		{"negative price", func(i *Item) { i.Price = Float(-0.5) }},
		{"unknown category", func(i *Item) { i.Category = "Brinquedos" }},
		{"missing category", func(i *Item) { i.Category = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := valid.Clone()
			tt.mutate(&item)
			assert.Error(t, Validate(item))
		})
	}
}

func TestCategoryIcon(t *testing.T) {
	assert.Equal(t, "🥛", Laticinios.Icon())
	assert.Empty(t, Category("Pet").Icon())
}

package shopping

// basicBasket is the staple set added by "basic basket".
var basicBasket = []Item{
	{Name: "Arroz", Quantity: 3, Unit: "kg", Category: Mercearia},
	{Name: "Feijão", Quantity: 2, Unit: "kg", Category: Mercearia},
	{Name: "Açúcar", Quantity: 1, Unit: "kg", Category: Mercearia},
	{Name: "Café", Quantity: 500, Unit: "g", Category: Mercearia},
	{Name: "Óleo", Quantity: 2, Unit: "litros", Category: Mercearia},
	{Name: "Leite", Quantity: 4, Unit: "litros", Category: Laticinios},
	{Name: "Macarrão", Quantity: 1, Unit: "kg", Category: Mercearia},
	{Name: "Sardinha", Quantity: 2, Unit: "unidades", Category: Mercearia},
	{Name: "Farinha de trigo", Quantity: 1, Unit: "kg", Category: Mercearia},
	{Name: "Sal", Quantity: 1, Unit: "kg", Category: Mercearia},
	{Name: "Massa de milho", Quantity: 1, Unit: "kg", Category: Mercearia},
	{Name: "Carne bovina", Quantity: 2, Unit: "kg", Category: Carnes},
	{Name: "Frango", Quantity: 2, Unit: "kg", Category: Carnes},
	{Name: "Ovos", Quantity: 1, Unit: "dúzia", Category: Mercearia},
	{Name: "Papel higiênico", Quantity: 4, Unit: "rolos", Category: Higiene},
	{Name: "Sabonete", Quantity: 4, Unit: "unidades", Category: Higiene},
	{Name: "Detergente", Quantity: 2, Unit: "unidades", Category: Limpeza},
}

// BasicBasket returns fresh copies of the staple items, each with a new ID.
func BasicBasket() []Item {
	out := make([]Item, len(basicBasket))
	for i, item := range basicBasket {
		item.ID = NewID()
		out[i] = item
	}
	return out
}

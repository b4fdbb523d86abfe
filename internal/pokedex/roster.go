package pokedex

// defaultRoster is the built-in Pokemon set, usable without any CSV file.
var defaultRoster = []Pokemon{
	{Name: "Pikachu", HP: 35, Attack: 55, Defense: 40, SpAttack: 50, SpDefense: 50, Speed: 90, Type1: "electric"},
	{Name: "Charmander", HP: 39, Attack: 52, Defense: 43, SpAttack: 60, SpDefense: 50, Speed: 65, Type1: "fire"},
	{Name: "Squirtle", HP: 44, Attack: 48, Defense: 65, SpAttack: 50, SpDefense: 64, Speed: 43, Type1: "water"},
	{Name: "Bulbasaur", HP: 45, Attack: 49, Defense: 49, SpAttack: 65, SpDefense: 65, Speed: 45, Type1: "grass", Type2: "poison"},
	{Name: "Charizard", HP: 78, Attack: 84, Defense: 78, SpAttack: 109, SpDefense: 85, Speed: 100, Type1: "fire", Type2: "flying"},
	{Name: "Blastoise", HP: 79, Attack: 83, Defense: 100, SpAttack: 85, SpDefense: 105, Speed: 78, Type1: "water"},
	{Name: "Venusaur", HP: 80, Attack: 82, Defense: 83, SpAttack: 100, SpDefense: 100, Speed: 80, Type1: "grass", Type2: "poison"},
	{Name: "Gengar", HP: 60, Attack: 65, Defense: 60, SpAttack: 130, SpDefense: 75, Speed: 110, Type1: "ghost", Type2: "poison"},
	{Name: "Onix", HP: 35, Attack: 45, Defense: 160, SpAttack: 30, SpDefense: 45, Speed: 70, Type1: "rock", Type2: "ground"},
	{Name: "Eevee", HP: 55, Attack: 55, Defense: 50, SpAttack: 45, SpDefense: 65, Speed: 55, Type1: "normal"},
	{Name: "Snorlax", HP: 160, Attack: 110, Defense: 65, SpAttack: 65, SpDefense: 110, Speed: 30, Type1: "normal"},
	{Name: "Alakazam", HP: 55, Attack: 50, Defense: 45, SpAttack: 135, SpDefense: 95, Speed: 120, Type1: "psychic"},
	{Name: "Gyarados", HP: 95, Attack: 125, Defense: 79, SpAttack: 60, SpDefense: 100, Speed: 81, Type1: "water", Type2: "flying"},
	{Name: "Dragonite", HP: 91, Attack: 134, Defense: 95, SpAttack: 100, SpDefense: 100, Speed: 80, Type1: "dragon", Type2: "flying"},
	{Name: "Lucario", HP: 70, Attack: 110, Defense: 70, SpAttack: 115, SpDefense: 70, Speed: 90, Type1: "fighting", Type2: "steel"},
	{Name: "Mewtwo", HP: 106, Attack: 110, Defense: 90, SpAttack: 154, SpDefense: 90, Speed: 130, Type1: "psychic"},
}

package pokedex

// defaultMoves is the built-in move table.
var defaultMoves = []Move{
	// Fire
	{"Ember", 40, CategorySpecial, "fire"},
	{"Flame Thrower", 90, CategorySpecial, "fire"},
	{"Fire Blast", 110, CategorySpecial, "fire"},
	{"Flame Charge", 50, CategoryPhysical, "fire"},
	{"Fire Fang", 65, CategoryPhysical, "fire"},

	// Water
	{"Water Gun", 40, CategorySpecial, "water"},
	{"Hydro Pump", 110, CategorySpecial, "water"},
	{"Surf", 90, CategorySpecial, "water"},
	{"Aqua Tail", 90, CategoryPhysical, "water"},
	{"Waterfall", 80, CategoryPhysical, "water"},

	// Electric
	{"Thunder Shock", 40, CategorySpecial, "electric"},
	{"Thunderbolt", 90, CategorySpecial, "electric"},
	{"Thunder", 110, CategorySpecial, "electric"},
	{"Wild Charge", 90, CategoryPhysical, "electric"},
	{"Thunder Punch", 75, CategoryPhysical, "electric"},

	// Grass
	{"Vine Whip", 45, CategoryPhysical, "grass"},
	{"Solar Beam", 120, CategorySpecial, "grass"},
	{"Leaf Blade", 90, CategoryPhysical, "grass"},
	{"Energy Ball", 90, CategorySpecial, "grass"},
	{"Seed Bomb", 80, CategoryPhysical, "grass"},

	// Psychic
	{"Confusion", 50, CategorySpecial, "psychic"},
	{"Psychic", 90, CategorySpecial, "psychic"},
	{"Psyshock", 80, CategorySpecial, "psychic"},
	{"Zen Headbutt", 80, CategoryPhysical, "psychic"},
	{"Psycho Cut", 70, CategoryPhysical, "psychic"},

	// Normal
	{"Tackle", 40, CategoryPhysical, "normal"},
	{"Body Slam", 85, CategoryPhysical, "normal"},
	{"Hyper Beam", 150, CategorySpecial, "normal"},
	{"Return", 102, CategoryPhysical, "normal"},
	{"Swift", 60, CategorySpecial, "normal"},

	// Fighting
	{"Karate Chop", 50, CategoryPhysical, "fighting"},
	{"Close Combat", 120, CategoryPhysical, "fighting"},
	{"Aura Sphere", 80, CategorySpecial, "fighting"},
	{"Brick Break", 75, CategoryPhysical, "fighting"},
	{"Focus Blast", 120, CategorySpecial, "fighting"},

	// Poison
	{"Poison Sting", 15, CategoryPhysical, "poison"},
	{"Sludge Bomb", 90, CategorySpecial, "poison"},
	{"Gunk Shot", 120, CategoryPhysical, "poison"},
	{"Acid", 40, CategorySpecial, "poison"},
	{"Cross Poison", 70, CategoryPhysical, "poison"},

	// Bug
	{"Bug Bite", 60, CategoryPhysical, "bug"},
	{"X-Scissor", 80, CategoryPhysical, "bug"},
	{"Bug Buzz", 90, CategorySpecial, "bug"},
	{"Signal Beam", 75, CategorySpecial, "bug"},
	{"Megahorn", 120, CategoryPhysical, "bug"},

	// Dark
	{"Bite", 60, CategoryPhysical, "dark"},
	{"Crunch", 80, CategoryPhysical, "dark"},
	{"Dark Pulse", 80, CategorySpecial, "dark"},
	{"Foul Play", 95, CategoryPhysical, "dark"},
	{"Night Slash", 70, CategoryPhysical, "dark"},

	// Dragon
	{"Dragon Breath", 60, CategorySpecial, "dragon"},
	{"Dragon Claw", 80, CategoryPhysical, "dragon"},
	{"Dragon Pulse", 85, CategorySpecial, "dragon"},
	{"Outrage", 120, CategoryPhysical, "dragon"},

	// Fairy
	{"Fairy Wind", 40, CategorySpecial, "fairy"},
	{"Moonblast", 95, CategorySpecial, "fairy"},
	{"Play Rough", 90, CategoryPhysical, "fairy"},
	{"Dazzling Gleam", 80, CategorySpecial, "fairy"},

	// Flying
	{"Peck", 35, CategoryPhysical, "flying"},
	{"Aerial Ace", 60, CategoryPhysical, "flying"},
	{"Fly", 90, CategoryPhysical, "flying"},
	{"Air Slash", 75, CategorySpecial, "flying"},
	{"Brave Bird", 120, CategoryPhysical, "flying"},

	// Ghost
	{"Lick", 30, CategoryPhysical, "ghost"},
	{"Shadow Ball", 80, CategorySpecial, "ghost"},
	{"Shadow Punch", 60, CategoryPhysical, "ghost"},
	{"Shadow Claw", 70, CategoryPhysical, "ghost"},
	{"Hex", 65, CategorySpecial, "ghost"},

	// Ground
	{"Mud Slap", 20, CategorySpecial, "ground"},
	{"Earthquake", 100, CategoryPhysical, "ground"},
	{"Earth Power", 90, CategorySpecial, "ground"},
	{"Bulldoze", 60, CategoryPhysical, "ground"},
	{"Stomping Tantrum", 75, CategoryPhysical, "ground"},

	// Ice
	{"Ice Beam", 90, CategorySpecial, "ice"},
	{"Ice Punch", 75, CategoryPhysical, "ice"},
	{"Blizzard", 110, CategorySpecial, "ice"},
	{"Ice Shard", 40, CategoryPhysical, "ice"},
	{"Avalanche", 60, CategoryPhysical, "ice"},

	// Rock
	{"Rock Throw", 50, CategoryPhysical, "rock"},
	{"Rock Slide", 75, CategoryPhysical, "rock"},
	{"Stone Edge", 100, CategoryPhysical, "rock"},
	{"Power Gem", 80, CategorySpecial, "rock"},
	{"Ancient Power", 60, CategorySpecial, "rock"},

	// Steel
	{"Metal Claw", 50, CategoryPhysical, "steel"},
	{"Iron Head", 80, CategoryPhysical, "steel"},
	{"Flash Cannon", 80, CategorySpecial, "steel"},
	{"Steel Wing", 70, CategoryPhysical, "steel"},
	{"Meteor Mash", 90, CategoryPhysical, "steel"},
}

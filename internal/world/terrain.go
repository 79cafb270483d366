package world

// Height bands of the map data. Heights are 0-127 world units.
const (
	WaterLevel   = 32  // Sea level, tiles at or below are water
	CoastMax     = 35  // Coast and beach
	FlatlandMax  = 45  // Plains
	HillMax      = 60  // Hills
	MountainMax  = 90  // Mountains
	HighPeakMax  = 110 // Alps, Taurus
	MaxHeight    = 127 // Snow-covered peaks above HighPeakMax
	BarbarianID  = 0   // Province id of unclaimed territory
	ProvinceMax  = 41  // Highest named province id
	DefaultBiome = 2   // Mediterranean scrub, used by the reference chunk generator
)

var provinceNames = [...]string{
	"Barbarian",
	"Achaea", "Aegyptus", "Africa Proconsularis",
	"Alpes Cottiae", "Alpes Graiae et Poeninae",
	"Alpes Maritimae", "Arabia", "Armenia",
	"Asia", "Assyria", "Baetica",
	"Bithynia et Pontus", "Britannia",
	"Cappadocia et Galatia", "Cilicia et Cyprus",
	"Corsica et Sardinia", "Creta et Cyrenaica",
	"Dacia", "Dalmatia", "Gallia Aquitania",
	"Gallia Belgica", "Gallia Lugdunensis",
	"Gallia Narbonensis", "Germania Inferior",
	"Germania Superior", "Hispania Tarraconensis",
	"Italia", "Lusitania", "Macedonia",
	"Mauretania Caesariensis", "Mauretania Tingitana",
	"Mesopotamia", "Moesia Inferior", "Moesia Superior",
	"Noricum", "Pannonia Inferior", "Pannonia Superior",
	"Raetia", "Sicilia", "Syria", "Thracia",
}

// ProvinceName returns the display name of a province id.
func ProvinceName(id int) string {
	if id < 0 || id >= len(provinceNames) {
		return "Unknown"
	}
	return provinceNames[id]
}

package domain

// Flat-rate delivery fees in dirhams, keyed by destination name. Lookups are
// exact-match: the storefront feeds these values from a fixed city picker, so
// no normalisation happens here.
const StandardShippingFee int64 = 50

// CityShippingFees maps the cities offered by the checkout form to their flat
// delivery fee. "Autre ville" is the catch-all entry of the picker itself.
var CityShippingFees = map[string]int64{
	"Casablanca":  25,
	"Rabat":       25,
	"Salé":        25,
	"Témara":      25,
	"Mohammedia":  25,
	"Bouskoura":   25,
	"Dar Bouazza": 25,
	"Marrakech":   35,
	"Fès":         35,
	"Meknès":      35,
	"Tanger":      35,
	"Tétouan":     40,
	"Kénitra":     30,
	"Agadir":      40,
	"Oujda":       45,
	"El Jadida":   30,
	"Safi":        40,
	"Essaouira":   45,
	"Béni Mellal": 40,
	"Khouribga":   35,
	"Settat":      30,
	"Berrechid":   30,
	"Nador":       45,
	"Taza":        45,
	"Larache":     40,
	"Khemisset":   35,
	"Errachidia":  55,
	"Ouarzazate":  55,
	"Laâyoune":    60,
	"Dakhla":      60,
	"Autre ville": StandardShippingFee,
}

// RegionShippingFees prices destinations where only the administrative region
// is known. Consulted after the city lookup misses.
var RegionShippingFees = map[string]int64{
	"Casablanca-Settat":          25,
	"Rabat-Salé-Kénitra":         30,
	"Marrakech-Safi":             35,
	"Fès-Meknès":                 35,
	"Tanger-Tétouan-Al Hoceïma":  40,
	"L'Oriental":                 45,
	"Béni Mellal-Khénifra":       40,
	"Souss-Massa":                40,
	"Drâa-Tafilalet":             55,
	"Guelmim-Oued Noun":          55,
	"Laâyoune-Sakia El Hamra":    60,
	"Dakhla-Oued Ed-Dahab":       60,
}

// ShippingCost resolves the delivery fee for the given destination and cart
// content. An empty cart, a zero subtotal, or a missing destination all price
// to zero: nothing is charged before there is something shippable and a known
// place to ship it to.
func ShippingCost(info *ShippingInfo, itemsCount int, subtotal int64) int64 {
	if itemsCount <= 0 || subtotal <= 0 {
		return 0
	}
	if info == nil || !info.HasDestination() {
		return 0
	}
	if fee, ok := CityShippingFees[info.City]; ok {
		return fee
	}
	if fee, ok := RegionShippingFees[info.Region]; ok {
		return fee
	}
	return StandardShippingFee
}

// Package geo detects Indonesian provinces and cities mentioned in
// free-form post text.
package geo

import "strings"

// Location is the detection result attached to a stored record.
// DetectedFrom records provenance: "text" when a match was found,
// "none" otherwise. Original carries a location string the author
// provided themselves, when present.
type Location struct {
	Province     string `json:"province,omitempty"`
	City         string `json:"city,omitempty"`
	DetectedFrom string `json:"detected_from"`
	Original     string `json:"original,omitempty"`
}

// Empty reports whether nothing was detected or provided.
func (l Location) Empty() bool {
	return l.Province == "" && l.City == "" && l.Original == ""
}

// provinces maps province names to their well-known cities and
// regencies. The table is intentionally partial; it covers the areas
// the default query panel targets plus the largest population centers.
var provinces = map[string][]string{
	"DKI Jakarta": {
		"Jakarta", "Jakarta Selatan", "Jakarta Pusat",
		"Jakarta Barat", "Jakarta Utara", "Jakarta Timur",
	},
	"Jawa Barat": {
		"Bandung", "Bekasi", "Bogor", "Depok", "Cimahi",
		"Tasikmalaya", "Cirebon", "Sukabumi", "Garut",
	},
	"Jawa Tengah": {
		"Semarang", "Solo", "Surakarta", "Magelang",
		"Pekalongan", "Tegal", "Salatiga",
	},
	"DI Yogyakarta": {
		"Yogyakarta", "Sleman", "Bantul",
	},
	"Jawa Timur": {
		"Surabaya", "Malang", "Sidoarjo", "Madiun", "Kediri",
		"Jember", "Gresik", "Mojokerto",
	},
	"Banten": {
		"Tangerang", "Tangerang Selatan", "Serang", "Cilegon",
	},
	"Sumatera Utara": {
		"Medan", "Binjai", "Pematangsiantar",
	},
	"Sumatera Selatan": {
		"Palembang", "Lubuklinggau", "Prabumulih",
	},
	"Sumatera Barat": {
		"Padang", "Bukittinggi", "Payakumbuh",
	},
	"Riau": {
		"Pekanbaru", "Dumai",
	},
	"Lampung": {
		"Bandar Lampung", "Metro",
	},
	"Sulawesi Selatan": {
		"Makassar", "Parepare", "Palopo",
	},
	"Sulawesi Utara": {
		"Manado", "Bitung", "Tomohon",
	},
	"Kalimantan Timur": {
		"Samarinda", "Balikpapan", "Bontang",
	},
	"Kalimantan Selatan": {
		"Banjarmasin", "Banjarbaru",
	},
	"Bali": {
		"Denpasar", "Badung", "Gianyar",
	},
	"Aceh": {
		"Banda Aceh", "Lhokseumawe", "Langsa",
	},
	"Nusa Tenggara Barat": {
		"Mataram", "Bima",
	},
	"Papua": {
		"Jayapura",
	},
}

// abbreviations maps common informal short forms to the full city name.
var abbreviations = map[string]string{
	"jaksel":  "Jakarta Selatan",
	"jaktim":  "Jakarta Timur",
	"jakbar":  "Jakarta Barat",
	"jakut":   "Jakarta Utara",
	"jakpus":  "Jakarta Pusat",
	"sby":     "Surabaya",
	"bdg":     "Bandung",
	"smg":     "Semarang",
	"ygy":     "Yogyakarta",
	"jogja":   "Yogyakarta",
	"mks":     "Makassar",
	"tangsel": "Tangerang Selatan",
}

// directional words that appear as the second token of many city names
// and must not count as a match on their own.
var genericTokens = map[string]bool{
	"selatan": true, "utara": true, "barat": true, "timur": true,
	"pusat": true, "tengah": true, "kota": true, "bandar": true,
}

// Detector matches known location names against normalized text.
// The zero value is not usable; call NewDetector.
type Detector struct {
	cityProvince map[string]string // lowercase city name -> province
	cityByToken  map[string]string // distinctive lowercase token -> city
	provinceSet  map[string]string // lowercase province name -> province
}

// NewDetector builds a Detector over the built-in location table.
func NewDetector() *Detector {
	d := &Detector{
		cityProvince: make(map[string]string),
		cityByToken:  make(map[string]string),
		provinceSet:  make(map[string]string),
	}
	for province, cities := range provinces {
		d.provinceSet[strings.ToLower(province)] = province
		for _, city := range cities {
			lower := strings.ToLower(city)
			d.cityProvince[lower] = province
			for _, tok := range strings.Fields(lower) {
				if len(tok) > 3 && !genericTokens[tok] {
					if _, taken := d.cityByToken[tok]; !taken {
						d.cityByToken[tok] = city
					}
				}
			}
		}
	}
	return d
}

// Detect scans post text and the author display name for a known city
// or province. Cities win over provinces; the first match in normalized
// token order is used.
func (d *Detector) Detect(text, authorName string) Location {
	if text == "" && authorName == "" {
		return Location{DetectedFrom: "none"}
	}

	haystack := normalize(text + " " + authorName)
	padded := " " + haystack + " "

	// Full city names first: multi-word names such as "tangerang
	// selatan" must beat their single-token prefix.
	var bestCity string
	for lower, province := range d.cityProvince {
		if !strings.Contains(padded, " "+lower+" ") {
			continue
		}
		if len(lower) > len(bestCity) {
			bestCity = cityTitle(lower, province)
		}
	}
	if bestCity != "" {
		return Location{
			Province:     d.cityProvince[strings.ToLower(bestCity)],
			City:         bestCity,
			DetectedFrom: "text",
		}
	}

	for _, tok := range strings.Fields(haystack) {
		if full, ok := abbreviations[tok]; ok {
			return Location{
				Province:     d.cityProvince[strings.ToLower(full)],
				City:         full,
				DetectedFrom: "text",
			}
		}
		if city, ok := d.cityByToken[tok]; ok {
			return Location{
				Province:     d.cityProvince[strings.ToLower(city)],
				City:         city,
				DetectedFrom: "text",
			}
		}
	}

	for lower, province := range d.provinceSet {
		if strings.Contains(padded, " "+lower+" ") {
			return Location{Province: province, DetectedFrom: "text"}
		}
	}

	return Location{DetectedFrom: "none"}
}

// cityTitle recovers the canonical spelling for a lowercase city key.
func cityTitle(lower, province string) string {
	for _, city := range provinces[province] {
		if strings.ToLower(city) == lower {
			return city
		}
	}
	return lower
}

// normalize lowercases text and flattens separators so word-boundary
// matching works across hyphenated and slash-joined location strings.
func normalize(s string) string {
	s = strings.ToLower(s)
	replacer := strings.NewReplacer(
		"-", " ", "/", " ", "\\", " ", "|", " ",
		"_", " ", ",", " ", ";", " ", ".", " ",
	)
	return strings.Join(strings.Fields(replacer.Replace(s)), " ")
}

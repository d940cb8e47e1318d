package colorcode

import (
	"strconv"
	"strings"
)

// palette maps normalized codes of the A-H and M series to their swatch colour.
var palette = map[string]string{
	"A1": "#FAF5CD", "A2": "#FCFED6", "A3": "#FCFF92", "A4": "#F7EC5C", "A5": "#FFE44B", "A6": "#FDA951", "A7": "#FA8C4F", "A8": "#F9E045", "A9": "#F99C5F", "A10": "#F47E36", "A11": "#FEDB99", "A12": "#FDA276", "A13": "#FEC667", "A14": "#F85842", "A15": "#FBF65E", "A16": "#FEFF97", "A17": "#FDE173", "A18": "#FCBF80", "A19": "#FD7E77", "A20": "#F9D66E", "A21": "#FAE393", "A22": "#EDF878", "A23": "#E1C9BD", "A24": "#F3F6A9", "A25": "#FFD785", "A26": "#FEC832",
	"B1": "#DFF139", "B2": "#64F343", "B3": "#9FF685", "B4": "#5FDF34", "B5": "#39E158", "B6": "#64B0A4", "B7": "#3FAE7C", "B8": "#1D9E54", "B9": "#2A5037", "B10": "#9AD1BA", "B11": "#627032", "B12": "#1A6E3D", "B13": "#C8E87D", "B14": "#ACE84C", "B15": "#305335", "B16": "#C0ED9C", "B17": "#9FB33E", "B18": "#E6ED4F", "B19": "#26B78E", "B20": "#CAEDCF", "B21": "#176268", "B22": "#0A4241", "B23": "#343B1A", "B24": "#E8FAA6", "B25": "#4E846D", "B26": "#907C35", "B27": "#D0E0AF", "B28": "#9EE5BB", "B29": "#C6DF5F", "B30": "#E3FBB1", "B31": "#B2F694", "B32": "#92AD60",
	"C1": "#FFFEE4", "C2": "#ABF8FE", "C3": "#9EE0F8", "C4": "#44CDFB", "C5": "#06ABE3", "C6": "#54A7E9", "C7": "#3977CC", "C8": "#0F52BD", "C9": "#3349C3", "C10": "#3DBBE3", "C11": "#2ADED3", "C12": "#1E334E", "C13": "#CDE7FE", "C14": "#D6FDFC", "C15": "#21C5C4", "C16": "#1858A2", "C17": "#02D1F3", "C18": "#213244", "C19": "#188690", "C20": "#1A70A9", "C21": "#BEDDFC", "C22": "#6BB1BB", "C23": "#C8E2F9", "C24": "#7EC5F9", "C25": "#A9E8E0", "C26": "#42ADD1", "C27": "#D0DEEF", "C28": "#BDCEED", "C29": "#364A89",
	"D1": "#ACB7EF", "D2": "#868DD3", "D3": "#3653AF", "D4": "#162C7E", "D5": "#B34EC6", "D6": "#B37BDC", "D7": "#8758A9", "D8": "#E3D2FE", "D9": "#D6BAF5", "D10": "#301A49", "D11": "#BCBAE2", "D12": "#DC99CE", "D13": "#B5038F", "D14": "#882893", "D15": "#2F1E8E", "D16": "#E2E4F0", "D17": "#C7D3F9", "D18": "#9A64B8", "D19": "#D8C2D9", "D20": "#9C34AD", "D21": "#940595", "D22": "#383995", "D23": "#FADBF8", "D24": "#768AE1", "D25": "#4950C2", "D26": "#D6C6EB",
	"E1": "#F6D4CB", "E2": "#FCC1DD", "E3": "#F6BDE8", "E4": "#E9639E", "E5": "#F1559F", "E6": "#BC4072", "E7": "#C63674", "E8": "#FDDBE9", "E9": "#E575C7", "E10": "#D33997", "E11": "#F7DAD4", "E12": "#F893BF", "E13": "#B5026A", "E14": "#FAD4BF", "E15": "#F5C9CA", "E16": "#FBF4EC", "E17": "#F7E3EC", "E18": "#FBCBDB", "E19": "#F6BBD1", "E20": "#D7C6CE", "E21": "#C09DA4", "E22": "#B58B9F", "E23": "#937D8A", "E24": "#DEBEE5",
	"F1": "#FF9280", "F2": "#F73D48", "F3": "#EF4D3E", "F4": "#F92B40", "F5": "#E30328", "F6": "#913635", "F7": "#911932", "F8": "#BB0126", "F9": "#B0677A", "F10": "#874628", "F11": "#6F321D", "F12": "#F8516D", "F13": "#F45C45", "F14": "#FCADB2", "F15": "#D50527", "F16": "#F8C0A9", "F17": "#E89B7D", "F18": "#D07E4A", "F19": "#BE454A", "F20": "#C69495", "F21": "#F2BBC6", "F22": "#F7C3D0", "F23": "#EC806D", "F24": "#E09DAF", "F25": "#E84854",
	"G1": "#FFEAD3", "G2": "#FCC6AC", "G3": "#F1C4A5", "G4": "#DCB387", "G5": "#E7B34E", "G6": "#F3A014", "G7": "#98503A", "G8": "#4B2B1C", "G9": "#E4B685", "G10": "#DA8C42", "G11": "#DAC898", "G12": "#FEC993", "G13": "#B2714B", "G14": "#8B684C", "G15": "#F6F8E3", "G16": "#F2D8C1", "G17": "#79544E", "G18": "#FFEAD6", "G19": "#DD7D41", "G20": "#A5452F", "G21": "#B38561",
	"H1": "#FBFBFB", "H2": "#FFFFFF", "H3": "#B4B4B4", "H4": "#878787", "H5": "#464648", "H6": "#2C2C2C", "H7": "#010101", "H8": "#E7D6DC", "H9": "#EFEDEE", "H10": "#ECEAEB", "H11": "#CDCDCD", "H12": "#FDF6EE", "H13": "#F4EFD1", "H14": "#CED7D4", "H15": "#98A6A6", "H16": "#1B1213", "H17": "#F0EEEF", "H18": "#FCFFF8", "H19": "#F2EEE5", "H20": "#96A09F", "H21": "#F8FBE6", "H22": "#CACADA", "H23": "#9B9C94",
	"M1": "#BBC6B6", "M2": "#909994", "M3": "#697E30", "M4": "#E0D4BC", "M5": "#D0CBAE", "M6": "#B0AA86", "M7": "#B0A796", "M8": "#AE8082", "M9": "#A88764", "M10": "#C6B2BB", "M11": "#9D7693", "M12": "#644B51", "M13": "#C79266", "M14": "#C37463", "M15": "#747D7A",
}

const (
	darkText  = "#111827"
	lightText = "#ffffff"
)

// Hex returns the swatch colour for code, or "" when the code is not in the palette.
func Hex(code string) string {
	return palette[Normalize(code)]
}

// ContrastColor picks a readable text colour for a swatch.
func ContrastColor(hex string) string {
	cleaned := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(cleaned) != 6 {
		return darkText
	}
	rgb, err := strconv.ParseUint(cleaned, 16, 32)
	if err != nil {
		return darkText
	}
	r := float64(rgb >> 16 & 0xff)
	g := float64(rgb >> 8 & 0xff)
	b := float64(rgb & 0xff)
	if (r*299+g*587+b*114)/1000 > 125 {
		return darkText
	}
	return lightText
}

// Codes lists every palette code in collation order.
func Codes() []string {
	reqs := make([]Requirement, 0, len(palette))
	for code := range palette {
		reqs = append(reqs, Requirement{Code: code})
	}
	Sort(reqs)
	codes := make([]string, len(reqs))
	for i, r := range reqs {
		codes[i] = r.Code
	}
	return codes
}

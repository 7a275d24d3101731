package models

// Info describes one selectable model size.
type Info struct {
	Name        string `json:"name"`
	Parameters  string `json:"parameters"`
	Download    string `json:"download"`
	Description string `json:"description"`
}

// DefaultSize is used when neither the request nor the config names a size.
const DefaultSize = "base"

var catalog = []Info{
	{Name: "tiny", Parameters: "39M", Download: "~75 MB", Description: "fastest, lowest accuracy"},
	{Name: "base", Parameters: "74M", Download: "~140 MB", Description: "good default for clean speech"},
	{Name: "small", Parameters: "244M", Download: "~460 MB", Description: "better timing on noisy audio"},
	{Name: "medium", Parameters: "769M", Download: "~1.5 GB", Description: "slow on CPU"},
	{Name: "large", Parameters: "1550M", Download: "~2.9 GB", Description: "best accuracy, GPU recommended"},
}

// Catalog returns the offered model sizes, smallest first.
func Catalog() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns just the size names from Catalog.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for _, info := range catalog {
		names = append(names, info.Name)
	}
	return names
}

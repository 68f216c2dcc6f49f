package domain

// FacetSet is the normalized intent extracted from free-form text.
// Set-valued facets hold canonical names in keyword-table order, without duplicates.
type FacetSet struct {
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Colors      []string `json:"colors"`
	Materials   []string `json:"materials"`
	Styles      []string `json:"styles"`
	Room        string   `json:"room,omitempty"`
	Dimensions  string   `json:"dimensions,omitempty"`
}

// IsEmpty reports whether no facet was extracted
func (f FacetSet) IsEmpty() bool {
	return f.Category == "" &&
		f.Subcategory == "" &&
		len(f.Colors) == 0 &&
		len(f.Materials) == 0 &&
		len(f.Styles) == 0 &&
		f.Room == "" &&
		f.Dimensions == ""
}

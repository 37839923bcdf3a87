package models

// PageRequest is one offset/limit slice of the remote listing.
type PageRequest struct {
	Offset     int
	Limit      int
	SearchText string
	Facets     map[string][]string
}

// PageResponse is a decoded listing page. Total is nil when the response did
// not report one.
type PageResponse struct {
	Total   *int
	Entries []RawListing
}

type Location struct {
	Name string `json:"name"`
}

// RawListing mirrors a single entry of the jobPostings array.
type RawListing struct {
	Title         string     `json:"title"`
	Locations     []Location `json:"locations"`
	LocationsText string     `json:"locationsText"`
	PostedOn      string     `json:"postedOn"`
	ExternalPath  string     `json:"externalPath"`
}

// LocationNames returns the non-empty location names in listing order,
// unmodified.
func (l RawListing) LocationNames() []string {
	names := make([]string, 0, len(l.Locations))
	for _, loc := range l.Locations {
		if loc.Name != "" {
			names = append(names, loc.Name)
		}
	}
	return names
}

package model

// Works is an aggregate over a filtered set of works
type Works struct {
	TotalCount             int     `json:"totalCount"`
	TotalCountFromCrossref int     `json:"totalCountFromCrossref,omitempty"`
	Published              []Facet `json:"published,omitempty"`
	RegistrationAgencies   []Facet `json:"registrationAgencies,omitempty"`
}

// Agency returns the count for a registration agency title
func (w Works) Agency(title string) int {
	for _, f := range w.RegistrationAgencies {
		if f.Title == title {
			return f.Count
		}
	}
	return 0
}

// Source is an aggregate with a per-year breakdown
type Source struct {
	TotalCount int     `json:"totalCount"`
	Years      []Facet `json:"years,omitempty"`
}

// Stats is the portal-wide statistics page
type Stats struct {
	Total             Works  `json:"total"`
	Cited             Works  `json:"cited"`
	Claimed           Works  `json:"claimed"`
	Connected         Works  `json:"connected"`
	People            Source `json:"people"`
	Organizations     Source `json:"organizations"`
	Publications      Works  `json:"publications"`
	Datasets          Works  `json:"datasets"`
	Softwares         Works  `json:"softwares"`
	CitedPublications Works  `json:"citedPublications"`
	CitedDatasets     Works  `json:"citedDatasets"`
	CitedSoftwares    Works  `json:"citedSoftwares"`
}

// PersonStats is the statistics page for works connected to people
type PersonStats struct {
	People     Source `json:"people"`
	Total      Works  `json:"total"`
	Claimed    Works  `json:"claimed"`
	Cited      Works  `json:"cited"`
	Viewed     Works  `json:"viewed"`
	Downloaded Works  `json:"downloaded"`
}

// Registration agency titles used in stats breakdowns
const (
	AgencyDataCite = "DataCite"
	AgencyCrossref = "Crossref"
)

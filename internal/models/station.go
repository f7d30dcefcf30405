package models

// Station is a known railway station position.
type Station struct {
	Name      string  `json:"name"`
	Code      string  `json:"code"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// StationMatch is the nearest station to a point and its distance.
type StationMatch struct {
	Station    Station
	DistanceKm float64
}

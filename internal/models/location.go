package models

// LocationRequest carries a GPS fix sent by the client.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	AccuracyM *float64 `json:"accuracy_m,omitempty" validate:"omitempty,gte=0"`
}

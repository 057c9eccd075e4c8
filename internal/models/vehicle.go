package models

// Vehicle is a fleet unit as the fleet registry exposes it. The scheduling
// engine never modifies vehicles.
type Vehicle struct {
	ID          string `json:"id"`
	Plate       string `json:"plate"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Responsible string `json:"responsible,omitempty"`
	Supplier    string `json:"supplier,omitempty"`
}

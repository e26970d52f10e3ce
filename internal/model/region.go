package model

// Region is an administrative boundary (a US state in practice) that pings
// are resolved against. Geometry lives in the store and the geo package.
type Region struct {
	Code string `json:"state_code" yaml:"state_code"`
	Name string `json:"name" yaml:"name"`
}

// Subscriber is an opaque mobile customer.
type Subscriber struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

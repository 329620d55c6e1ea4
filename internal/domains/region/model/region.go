package model

import "errors"

var (
	// ErrNoRegions is returned when the reference tables are empty
	ErrNoRegions = errors.New("no region polygons loaded")
)

// Kind names a reference polygon table.
type Kind string

const (
	KindMunicipality Kind = "municipality"
	KindProvince     Kind = "province"
	KindANB          Kind = "anb"
)

// Shape is a reference polygon as stored: EPSG:31370 GeoJSON.
type Shape struct {
	Kind       Kind
	ID         int64
	Name       string
	ProvinceID *int64
	GeoJSON    []byte
}

type Municipality struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	NISCode    string `json:"nis_code"`
	ProvinceID *int64 `json:"province_id"`
}

type Province struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

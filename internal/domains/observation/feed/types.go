package feed

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Record is one observation as served by the upstream list endpoint.
type Record struct {
	ID               *int64      `json:"id"`
	Date             string      `json:"date"`
	Time             *string     `json:"time"`
	Point            *Point      `json:"point"`
	Created          string      `json:"created"`
	Modified         string      `json:"modified"`
	Species          *int        `json:"species"`
	Attributes       []Attribute `json:"attributes"`
	Nest             *Nest       `json:"nest"`
	User             *Observer   `json:"user"`
	Notes            string      `json:"notes"`
	ValidationStatus string      `json:"validation_status"`
	Photos           []string    `json:"photos"`
}

type Point struct {
	Coordinates []float64 `json:"coordinates"`
}

type Attribute struct {
	Attribute int        `json:"attribute"`
	Name      string     `json:"name"`
	Value     FlexString `json:"value"`
}

type Nest struct {
	ID *int64 `json:"id"`
}

type Observer struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// PageResult is one page of the observation list.
type PageResult struct {
	Count   int      `json:"count"`
	Next    *string  `json:"next"`
	Results []Record `json:"results"`

	// Undecodable holds the entries of results that did not fit Record.
	Undecodable []UndecodableRecord `json:"-"`
}

// UndecodableRecord is one page entry that could not be decoded on its own.
type UndecodableRecord struct {
	ExternalID string
	Err        error
}

// UnmarshalJSON decodes every result separately so one malformed record
// does not discard the rest of the page.
func (p *PageResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Count   int               `json:"count"`
		Next    *string           `json:"next"`
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Count = raw.Count
	p.Next = raw.Next
	p.Results = make([]Record, 0, len(raw.Results))
	p.Undecodable = nil
	for _, msg := range raw.Results {
		var rec Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			p.Undecodable = append(p.Undecodable, UndecodableRecord{ExternalID: rawID(msg), Err: err})
			continue
		}
		p.Results = append(p.Results, rec)
	}
	return nil
}

// Len is the number of entries the upstream served on this page.
func (p *PageResult) Len() int {
	return len(p.Results) + len(p.Undecodable)
}

// HasNext reports whether the upstream advertises another page.
func (p *PageResult) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

func rawID(msg json.RawMessage) string {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(msg, &head); err != nil || len(head.ID) == 0 {
		return "unknown"
	}
	return strings.Trim(string(head.ID), `"`)
}

type nestDetail struct {
	ID             int64   `json:"id"`
	ObservationIDs []int64 `json:"observation_ids"`
}

// FlexString decodes attribute values of any JSON type. Strings are kept
// as is; numbers, bools, lists and objects keep their compact JSON text.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*s = ""
	case strings.HasPrefix(raw, `"`):
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
	case strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{"):
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*s = FlexString(buf.String())
	default:
		if _, err := strconv.ParseFloat(raw, 64); err != nil && raw != "true" && raw != "false" {
			return fmt.Errorf("unsupported attribute value %s", raw)
		}
		*s = FlexString(raw)
	}
	return nil
}

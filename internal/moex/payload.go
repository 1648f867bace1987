// Package moex implements the upstream market-data client and the
// normalization of its payloads into canonical bond event records.
package moex

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SectionShape classifies the wire form of one event table. The payload
// shape is decided once here; extractors never re-probe.
type SectionShape int

const (
	// ShapeEmpty is an absent or null section.
	ShapeEmpty SectionShape = iota
	// ShapeTabular is the {"columns": [...], "data": [[...]]} form.
	ShapeTabular
	// ShapeRecords is a flat list of record objects.
	ShapeRecords
)

// Section is one event table decoded into uniform records regardless of
// its original shape.
type Section struct {
	Shape   SectionShape
	Records []map[string]interface{}
}

// Len returns the number of rows in the section.
func (s Section) Len() int { return len(s.Records) }

type tabularSection struct {
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
}

// classifySection decodes a raw section into records. Tabular rows are
// zipped with their column names; short rows keep only the columns they
// cover.
func classifySection(raw json.RawMessage) (Section, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Section{Shape: ShapeEmpty}, nil
	}

	switch trimmed[0] {
	case '[':
		var records []map[string]interface{}
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return Section{}, fmt.Errorf("decoding record list: %w", err)
		}
		return Section{Shape: ShapeRecords, Records: records}, nil

	case '{':
		var tab tabularSection
		if err := json.Unmarshal(trimmed, &tab); err != nil {
			return Section{}, fmt.Errorf("decoding tabular section: %w", err)
		}
		if tab.Columns == nil {
			return Section{}, fmt.Errorf("object section has no columns field")
		}
		records := make([]map[string]interface{}, 0, len(tab.Data))
		for _, row := range tab.Data {
			rec := make(map[string]interface{}, len(tab.Columns))
			for i, col := range tab.Columns {
				if i < len(row) {
					rec[col] = row[i]
				}
			}
			records = append(records, rec)
		}
		return Section{Shape: ShapeTabular, Records: records}, nil
	}

	return Section{}, fmt.Errorf("unrecognized section shape")
}

// Document is a classified upstream payload for one instrument.
type Document struct {
	Coupons       Section
	Amortizations Section
	Offers        Section
}

type combinedDocument struct {
	Coupons       json.RawMessage `json:"coupons"`
	Amortizations json.RawMessage `json:"amortizations"`
	Offers        json.RawMessage `json:"offers"`
}

// ParseDocument classifies a raw payload. Accepted top-level forms: a
// combined document with coupons/amortizations/offers sub-sections, a
// bare tabular coupon table, or a bare list of coupon records.
func ParseDocument(raw []byte) (Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Document{}, fmt.Errorf("empty payload")
	}

	// A bare list is a coupon table.
	if trimmed[0] == '[' {
		coupons, err := classifySection(trimmed)
		if err != nil {
			return Document{}, err
		}
		return Document{Coupons: coupons}, nil
	}

	var combined combinedDocument
	if err := json.Unmarshal(trimmed, &combined); err != nil {
		return Document{}, fmt.Errorf("decoding payload: %w", err)
	}

	// No sub-sections: treat the whole object as one coupon table.
	if combined.Coupons == nil && combined.Amortizations == nil && combined.Offers == nil {
		coupons, err := classifySection(trimmed)
		if err != nil {
			return Document{}, err
		}
		return Document{Coupons: coupons}, nil
	}

	doc := Document{}
	var err error
	if doc.Coupons, err = classifySection(combined.Coupons); err != nil {
		return Document{}, fmt.Errorf("coupons section: %w", err)
	}
	if doc.Amortizations, err = classifySection(combined.Amortizations); err != nil {
		return Document{}, fmt.Errorf("amortizations section: %w", err)
	}
	if doc.Offers, err = classifySection(combined.Offers); err != nil {
		return Document{}, fmt.Errorf("offers section: %w", err)
	}
	return doc, nil
}

// Record field accessors. Upstream mixes snake-case tabular column names
// with camel-case record keys, so lookups try aliases in order.

func fieldString(rec map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// fieldFloat returns the numeric value for the first matching key, or
// nil when absent or null.
func fieldFloat(rec map[string]interface{}, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			f := n
			return &f
		case int:
			f := float64(n)
			return &f
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return &f
			}
		}
	}
	return nil
}

package domain

import "strings"

// Field names one overridable vehicle field.
type Field string

const (
	FieldChassisNumber      Field = "chassisNumber"
	FieldBrand              Field = "brand"
	FieldType               Field = "type"
	FieldTradeName          Field = "tradeName"
	FieldOwner              Field = "owner"
	FieldTypeApprovalNumber Field = "typeApprovalNumber"
	FieldTypeAndVariant     Field = "typeAndVariant"
)

// VehicleFieldOrder lists every overridable field in display order.
var VehicleFieldOrder = []Field{
	FieldChassisNumber,
	FieldBrand,
	FieldType,
	FieldTradeName,
	FieldOwner,
	FieldTypeApprovalNumber,
	FieldTypeAndVariant,
}

// VehicleFields is the fixed-shape field set shared by the record, the
// extraction result and the decision policy input.
type VehicleFields struct {
	ChassisNumber      string `json:"chassisNumber"`
	Brand              string `json:"brand"`
	Type               string `json:"type"`
	TradeName          string `json:"tradeName"`
	Owner              string `json:"owner"`
	TypeApprovalNumber string `json:"typeApprovalNumber"`
	TypeAndVariant     string `json:"typeAndVariant"`
}

func (v VehicleFields) Get(f Field) string {
	switch f {
	case FieldChassisNumber:
		return v.ChassisNumber
	case FieldBrand:
		return v.Brand
	case FieldType:
		return v.Type
	case FieldTradeName:
		return v.TradeName
	case FieldOwner:
		return v.Owner
	case FieldTypeApprovalNumber:
		return v.TypeApprovalNumber
	case FieldTypeAndVariant:
		return v.TypeAndVariant
	}
	return ""
}

// Set returns a copy of v with f set to value. Unknown fields are ignored.
func (v VehicleFields) Set(f Field, value string) VehicleFields {
	switch f {
	case FieldChassisNumber:
		v.ChassisNumber = value
	case FieldBrand:
		v.Brand = value
	case FieldType:
		v.Type = value
	case FieldTradeName:
		v.TradeName = value
	case FieldOwner:
		v.Owner = value
	case FieldTypeApprovalNumber:
		v.TypeApprovalNumber = value
	case FieldTypeAndVariant:
		v.TypeAndVariant = value
	}
	return v
}

// Normalized trims surrounding whitespace from every field.
func (v VehicleFields) Normalized() VehicleFields {
	for _, f := range VehicleFieldOrder {
		v = v.Set(f, strings.TrimSpace(v.Get(f)))
	}
	return v
}

// Decisions is the per-field override verdict returned by a decision policy.
type Decisions struct {
	ChassisNumber      bool `json:"chassisNumber"`
	Brand              bool `json:"brand"`
	Type               bool `json:"type"`
	TradeName          bool `json:"tradeName"`
	Owner              bool `json:"owner"`
	TypeApprovalNumber bool `json:"typeApprovalNumber"`
	TypeAndVariant     bool `json:"typeAndVariant"`
}

func (d Decisions) Approved(f Field) bool {
	switch f {
	case FieldChassisNumber:
		return d.ChassisNumber
	case FieldBrand:
		return d.Brand
	case FieldType:
		return d.Type
	case FieldTradeName:
		return d.TradeName
	case FieldOwner:
		return d.Owner
	case FieldTypeApprovalNumber:
		return d.TypeApprovalNumber
	case FieldTypeAndVariant:
		return d.TypeAndVariant
	}
	return false
}

// DocumentSource identifies which scanned document produced candidate values.
type DocumentSource string

const (
	// SourceRegistration is the canonical source of the chassis number.
	SourceRegistration DocumentSource = "registration"
	SourceLabel        DocumentSource = "label"
)

func ParseDocumentSource(s string) (DocumentSource, bool) {
	switch DocumentSource(strings.ToLower(s)) {
	case SourceRegistration:
		return SourceRegistration, true
	case SourceLabel:
		return SourceLabel, true
	}
	return "", false
}

// Document is one image handed to the extraction service.
type Document struct {
	Source   DocumentSource
	Name     string
	MIMEType string
	Data     []byte
}

package domain

// VehiclePatch carries optional vehicle field updates. Nil leaves the field untouched.
type VehiclePatch struct {
	ChassisNumber      *string `json:"chassisNumber,omitempty"`
	Brand              *string `json:"brand,omitempty"`
	Type               *string `json:"type,omitempty"`
	TradeName          *string `json:"tradeName,omitempty"`
	Owner              *string `json:"owner,omitempty"`
	TypeApprovalNumber *string `json:"typeApprovalNumber,omitempty"`
	TypeAndVariant     *string `json:"typeAndVariant,omitempty"`
}

// FullVehiclePatch sets every field of v.
func FullVehiclePatch(v VehicleFields) VehiclePatch {
	return VehiclePatch{
		ChassisNumber:      ptr(v.ChassisNumber),
		Brand:              ptr(v.Brand),
		Type:               ptr(v.Type),
		TradeName:          ptr(v.TradeName),
		Owner:              ptr(v.Owner),
		TypeApprovalNumber: ptr(v.TypeApprovalNumber),
		TypeAndVariant:     ptr(v.TypeAndVariant),
	}
}

func (p VehiclePatch) apply(v VehicleFields) VehicleFields {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&v.ChassisNumber, p.ChassisNumber)
	set(&v.Brand, p.Brand)
	set(&v.Type, p.Type)
	set(&v.TradeName, p.TradeName)
	set(&v.Owner, p.Owner)
	set(&v.TypeApprovalNumber, p.TypeApprovalNumber)
	set(&v.TypeAndVariant, p.TypeAndVariant)
	return v
}

// RecordPatch is a partial record update. Supplementary namespaces are
// replaced whole when present; attachments are set only by uploads.
type RecordPatch struct {
	Vehicle      VehiclePatch           `json:"vehicle"`
	WorkOrder    *WorkOrder             `json:"workOrder,omitempty"`
	Inspection   *Inspection            `json:"inspection,omitempty"`
	Checklist    *Checklist             `json:"checklist,omitempty"`
	TypeApproval *TypeApprovalSelection `json:"typeApproval,omitempty"`
	Signatures   *Signatures            `json:"signatures,omitempty"`

	Registration *Attachment  `json:"-"`
	Label        *Attachment  `json:"-"`
	AppendMedia  []Attachment `json:"-"`
}

// Apply merges p into a copy of r. Fields absent from p keep their values.
func (r Record) Apply(p RecordPatch) Record {
	out := r.Clone()
	out.Vehicle = p.Vehicle.apply(out.Vehicle)
	if p.WorkOrder != nil {
		out.WorkOrder = cloneWorkOrder(p.WorkOrder)
	}
	if p.Inspection != nil {
		out.Inspection = cloneInspection(p.Inspection)
	}
	if p.Checklist != nil {
		out.Checklist = cloneChecklist(p.Checklist)
	}
	if p.TypeApproval != nil {
		ta := *p.TypeApproval
		out.TypeApproval = &ta
	}
	if p.Signatures != nil {
		s := *p.Signatures
		out.Signatures = &s
	}
	if p.Registration != nil {
		a := *p.Registration
		out.Attachments.Registration = &a
	}
	if p.Label != nil {
		a := *p.Label
		out.Attachments.Label = &a
	}
	out.Attachments.Media = append(out.Attachments.Media, p.AppendMedia...)
	return out
}

// Clone deep-copies r. Live handles are shared, not copied.
func (r Record) Clone() Record {
	out := r
	out.WorkOrder = cloneWorkOrder(r.WorkOrder)
	out.Inspection = cloneInspection(r.Inspection)
	out.Checklist = cloneChecklist(r.Checklist)
	if r.TypeApproval != nil {
		ta := *r.TypeApproval
		out.TypeApproval = &ta
	}
	if r.Signatures != nil {
		s := *r.Signatures
		out.Signatures = &s
	}
	if r.Attachments.Registration != nil {
		a := *r.Attachments.Registration
		out.Attachments.Registration = &a
	}
	if r.Attachments.Label != nil {
		a := *r.Attachments.Label
		out.Attachments.Label = &a
	}
	if r.Attachments.Media != nil {
		out.Attachments.Media = append([]Attachment(nil), r.Attachments.Media...)
	}
	if r.Archive != nil {
		out.Archive = make([]ArchiveEntry, len(r.Archive))
		for i, e := range r.Archive {
			e.Record = e.Record.Clone()
			out.Archive[i] = e
		}
	}
	return out
}

// Persistable returns a copy of r with every live attachment replaced by its descriptor.
func (r Record) Persistable() Record {
	out := r.Clone()
	if a := out.Attachments.Registration; a != nil {
		d := a.AsDescriptor()
		out.Attachments.Registration = &d
	}
	if a := out.Attachments.Label; a != nil {
		d := a.AsDescriptor()
		out.Attachments.Label = &d
	}
	for i, a := range out.Attachments.Media {
		out.Attachments.Media[i] = a.AsDescriptor()
	}
	for i := range out.Archive {
		out.Archive[i].Record = out.Archive[i].Record.Persistable()
	}
	return out
}

// Empty returns a blank record carrying only the archive of r.
func (r Record) Empty() Record {
	return Record{Archive: r.Clone().Archive}
}

func cloneWorkOrder(w *WorkOrder) *WorkOrder {
	if w == nil {
		return nil
	}
	out := *w
	if w.Modifications != nil {
		out.Modifications = append([]string(nil), w.Modifications...)
	}
	return &out
}

func cloneInspection(in *Inspection) *Inspection {
	if in == nil {
		return nil
	}
	out := *in
	if in.Date != nil {
		d := *in.Date
		out.Date = &d
	}
	if in.Odometer != nil {
		o := *in.Odometer
		out.Odometer = &o
	}
	return &out
}

func cloneChecklist(c *Checklist) *Checklist {
	if c == nil {
		return nil
	}
	out := Checklist{Items: make(map[string]bool, len(c.Items))}
	for k, v := range c.Items {
		out.Items[k] = v
	}
	return &out
}

func ptr[T any](v T) *T { return &v }

package intake

import (
	"intake/internal/domain"
	"intake/internal/session"
)

// View is the client-facing projection of a session.
type View struct {
	ID         string        `json:"id"`
	Step       Step          `json:"step"`
	Branch     string        `json:"branch,omitempty"`
	EditingKey string        `json:"editingKey,omitempty"`
	Busy       bool          `json:"busy"`
	Record     domain.Record `json:"record"`
	LiveSlots  []string      `json:"liveSlots,omitempty"`
	Missing    []string      `json:"missing,omitempty"`
}

func (s *Service) view(sess *Session) View {
	rec := sess.store.Record()
	sess.mu.Lock()
	v := View{
		ID:         sess.ID,
		Step:       sess.step,
		EditingKey: sess.editingKey,
	}
	sess.mu.Unlock()
	v.Branch = sess.store.Branch()
	v.Busy = sess.busy.Load()
	v.Record = rec
	v.LiveSlots = liveSlots(rec)
	v.Missing = missing(rec)
	return v
}

func liveSlots(r domain.Record) []string {
	var out []string
	if a := r.Attachments.Registration; a != nil && a.IsLive() {
		out = append(out, session.SlotRegistration)
	}
	if a := r.Attachments.Label; a != nil && a.IsLive() {
		out = append(out, session.SlotLabel)
	}
	for i, a := range r.Attachments.Media {
		if a.IsLive() {
			out = append(out, session.MediaSlot(i))
		}
	}
	return out
}

// missing lists what the summary still lacks. Only the chassis number
// blocks a commit; the rest are hints.
func missing(r domain.Record) []string {
	var out []string
	if r.Vehicle.ChassisNumber == "" {
		out = append(out, string(domain.FieldChassisNumber))
	}
	if r.Attachments.Registration == nil {
		out = append(out, "registrationDocument")
	}
	if r.Attachments.Label == nil {
		out = append(out, "labelDocument")
	}
	if r.WorkOrder == nil {
		out = append(out, "workOrder")
	}
	if r.TypeApproval == nil {
		out = append(out, "typeApproval")
	}
	if !r.Checklist.Passed() {
		out = append(out, "checklist")
	}
	if r.Signatures == nil || r.Signatures.Technician == "" {
		out = append(out, "technicianSignature")
	}
	return out
}

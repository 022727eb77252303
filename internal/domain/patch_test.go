package domain

import (
	"encoding/json"
	"errors"
	"testing"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveFile(name string, data []byte) Attachment {
	var f openapi_types.File
	f.InitFromBytes(data, name)
	return NewLiveAttachment(&f, "image/jpeg")
}

func strp(s string) *string { return &s }

func TestApplyDisjointPatchesDoNotClobber(t *testing.T) {
	var r Record
	r = r.Apply(RecordPatch{Vehicle: VehiclePatch{Brand: strp("Volvo")}})
	r = r.Apply(RecordPatch{
		Vehicle:   VehiclePatch{Owner: strp("J. Jansen")},
		WorkOrder: &WorkOrder{Number: "WO-1"},
	})

	assert.Equal(t, "Volvo", r.Vehicle.Brand)
	assert.Equal(t, "J. Jansen", r.Vehicle.Owner)
	require.NotNil(t, r.WorkOrder)
	assert.Equal(t, "WO-1", r.WorkOrder.Number)
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	r := Record{Checklist: &Checklist{Items: map[string]bool{"brakes": false}}}
	out := r.Apply(RecordPatch{Checklist: &Checklist{Items: map[string]bool{"brakes": true}}})

	assert.False(t, r.Checklist.Items["brakes"])
	assert.True(t, out.Checklist.Items["brakes"])
}

func TestApplyAppendsMedia(t *testing.T) {
	r := Record{}.Apply(RecordPatch{AppendMedia: []Attachment{liveFile("a.jpg", []byte{1})}})
	r = r.Apply(RecordPatch{AppendMedia: []Attachment{liveFile("b.mp4", []byte{2})}})
	require.Len(t, r.Attachments.Media, 2)
	assert.Equal(t, "b.mp4", r.Attachments.Media[1].Descriptor().Name)
}

func TestPersistableDropsLiveHandles(t *testing.T) {
	reg := liveFile("kenteken.jpg", []byte("jpeg-bytes"))
	r := Record{}.Apply(RecordPatch{Registration: &reg})
	require.True(t, r.Attachments.Registration.IsLive())

	p := r.Persistable()
	assert.False(t, p.Attachments.Registration.IsLive())
	assert.Equal(t, Descriptor{Name: "kenteken.jpg", Type: "image/jpeg", Size: 10}, p.Attachments.Registration.Descriptor())
	assert.True(t, r.Attachments.Registration.IsLive(), "source record keeps its live handle")
}

func TestAttachmentJSONIsDescriptor(t *testing.T) {
	a := liveFile("label.png", []byte("png"))
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"label.png","type":"image/jpeg","size":3}`, string(raw))

	var back Attachment
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.False(t, back.IsLive())
	assert.Equal(t, a.Descriptor(), back.Descriptor())
}

func TestDescriptorAttachmentHasNoBytes(t *testing.T) {
	a := NewDescribedAttachment(Descriptor{Name: "x.jpg"})
	_, err := a.Bytes()
	assert.True(t, errors.Is(err, ErrFileUnreadable))
}

func TestEmptyKeepsArchive(t *testing.T) {
	r := Record{
		Vehicle: VehicleFields{ChassisNumber: "CH1"},
		Archive: []ArchiveEntry{{Key: "A_CH0"}},
	}
	e := r.Empty()
	assert.Equal(t, VehicleFields{}, e.Vehicle)
	require.Len(t, e.Archive, 1)
	assert.Equal(t, "A_CH0", e.Archive[0].Key)
}

func TestVehicleFieldsGetSet(t *testing.T) {
	var v VehicleFields
	for _, f := range VehicleFieldOrder {
		v = v.Set(f, string(f)+"-value")
	}
	for _, f := range VehicleFieldOrder {
		assert.Equal(t, string(f)+"-value", v.Get(f))
	}
}

func TestChecklistPassed(t *testing.T) {
	assert.False(t, (*Checklist)(nil).Passed())
	assert.False(t, (&Checklist{}).Passed())
	assert.False(t, (&Checklist{Items: map[string]bool{"a": true, "b": false}}).Passed())
	assert.True(t, (&Checklist{Items: map[string]bool{"a": true}}).Passed())
}

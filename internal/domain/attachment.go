package domain

import (
	"encoding/json"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Descriptor is the serializable stand-in for an uploaded file once its
// bytes can no longer be held.
type Descriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type attachmentKind uint8

const (
	kindDescriptor attachmentKind = iota
	kindLive
)

// Attachment is either a live upload handle or a descriptor. Conversion from
// live to descriptor happens only at the persistence boundary (Persistable
// and JSON encoding); in memory a live handle stays live for the session.
type Attachment struct {
	kind attachmentKind
	live *openapi_types.File
	desc Descriptor
}

// NewLiveAttachment wraps an upload held in memory.
func NewLiveAttachment(file *openapi_types.File, mimeType string) Attachment {
	return Attachment{
		kind: kindLive,
		live: file,
		desc: Descriptor{Name: file.Filename(), Type: mimeType, Size: file.FileSize()},
	}
}

// NewDescribedAttachment restores an attachment from its descriptor.
func NewDescribedAttachment(d Descriptor) Attachment {
	return Attachment{kind: kindDescriptor, desc: d}
}

func (a Attachment) IsLive() bool { return a.kind == kindLive && a.live != nil }

// Live returns the upload handle when the attachment is still live.
func (a Attachment) Live() (*openapi_types.File, bool) {
	if !a.IsLive() {
		return nil, false
	}
	return a.live, true
}

func (a Attachment) Descriptor() Descriptor { return a.desc }

// AsDescriptor drops the live handle, keeping name, type and size.
func (a Attachment) AsDescriptor() Attachment {
	return NewDescribedAttachment(a.desc)
}

// Bytes reads a live attachment. Descriptor-only attachments have no bytes
// and yield ErrFileUnreadable.
func (a Attachment) Bytes() ([]byte, error) {
	f, ok := a.Live()
	if !ok {
		return nil, ErrFileUnreadable
	}
	data, err := f.Bytes()
	if err != nil {
		return nil, wrap(ErrFileUnreadable, err)
	}
	if len(data) == 0 {
		return nil, ErrFileUnreadable
	}
	return data, nil
}

// MarshalJSON always emits the descriptor.
func (a Attachment) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.desc)
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*a = NewDescribedAttachment(d)
	return nil
}

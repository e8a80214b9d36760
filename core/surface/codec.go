package surface

import (
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Encode serializes a snapshot to its document form.
// A positive maxBytes caps the document size.
func Encode(snap Snapshot, maxBytes int) ([]byte, error) {
	snap.Version = DocumentVersion
	if snap.Objects == nil {
		snap.Objects = []Object{}
	}
	doc, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal")
	}
	if maxBytes > 0 && len(doc) > maxBytes {
		return nil, errors.Wrapf(ErrSnapshotTooLarge, "%d > %d bytes", len(doc), maxBytes)
	}
	return doc, nil
}

// Decode parses and validates a document.
// Every failure has ErrCorruptSnapshot as its cause.
func Decode(doc []byte, validate *validator.Validate) (Snapshot, error) {
	var snap Snapshot
	if len(doc) == 0 {
		return snap, errors.Wrap(ErrCorruptSnapshot, "empty document")
	}
	if err := json.Unmarshal(doc, &snap); err != nil {
		return Snapshot{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}
	if snap.Version != DocumentVersion {
		return Snapshot{}, errors.Wrapf(ErrCorruptSnapshot, "unsupported version %d", snap.Version)
	}
	if err := validate.Struct(snap); err != nil {
		return Snapshot{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}
	for i, obj := range snap.Objects {
		if reason := obj.degenerate(); reason != "" {
			return Snapshot{}, errors.Wrapf(ErrCorruptSnapshot, "objects[%d]: %s", i, reason)
		}
	}
	if snap.Objects == nil {
		snap.Objects = []Object{}
	}
	return snap, nil
}

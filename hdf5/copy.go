package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/nwb-merge/internal/message"
)

// attrHolder is satisfied by *Group and *Dataset.
type attrHolder interface {
	Attrs() []string
	Attr(name string) *Attribute
}

// CopyDataset copies a dataset from one file into dst under the given
// name, including its attributes. Self-contained payloads (integers,
// floats, fixed strings, compounds of those) are copied byte for byte.
// Variable-length strings are decoded and rewritten as fixed-length
// strings, since their payload references the source file's global heap.
// Attributes that cannot be re-encoded (references, compounds) are
// skipped and returned by name.
func CopyDataset(dst *Group, name string, src *Dataset) (skipped []string, err error) {
	opts, skipped := copyableAttrOptions(src)

	if src.datatype.Class == message.ClassVarLen {
		if !src.datatype.IsVarLenString {
			return skipped, fmt.Errorf("copying %s: %w: variable-length sequence data", src.Path(), ErrUnsupported)
		}
		strs, err := src.ReadString()
		if err != nil {
			return skipped, fmt.Errorf("reading strings from %s: %w", src.Path(), err)
		}
		if src.IsScalar() && len(strs) == 1 {
			opts = append(opts, WithScalarDataspace())
			_, err = dst.CreateDataset(name, strs[0], opts...)
		} else {
			_, err = dst.CreateDataset(name, strs, opts...)
		}
		if err != nil {
			return skipped, fmt.Errorf("writing %s: %w", name, err)
		}
		return skipped, nil
	}

	raw, err := src.Snapshot()
	if err != nil {
		return skipped, err
	}
	if _, err := dst.CreateDatasetFromRaw(name, raw, opts...); err != nil {
		return skipped, fmt.Errorf("writing %s: %w", name, err)
	}
	return skipped, nil
}

// CopyAttrs copies the attributes of src onto the destination group.
// Attributes that cannot be re-encoded are skipped and returned by name.
func CopyAttrs(dst *Group, src attrHolder) (skipped []string, err error) {
	for _, name := range src.Attrs() {
		attr := src.Attr(name)
		val, ok := copyableAttrValue(attr)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		if err := dst.SetAttr(name, val); err != nil {
			return skipped, fmt.Errorf("setting attribute %q: %w", name, err)
		}
	}
	return skipped, nil
}

// copyableAttrOptions builds dataset attribute options from a source
// object's attributes, reporting the ones that cannot be carried over.
func copyableAttrOptions(src attrHolder) ([]DatasetOption, []string) {
	var opts []DatasetOption
	var skipped []string
	for _, name := range src.Attrs() {
		attr := src.Attr(name)
		val, ok := copyableAttrValue(attr)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		opts = append(opts, WithAttribute(name, val))
	}
	return opts, skipped
}

// copyableAttrValue decodes an attribute into a value that the write
// path can re-encode. Reference and compound attributes have no
// re-encodable representation and report false.
func copyableAttrValue(attr *Attribute) (interface{}, bool) {
	if attr == nil {
		return nil, false
	}
	switch attr.DtypeClass() {
	case message.ClassFixedPoint, message.ClassFloatPoint, message.ClassString, message.ClassEnum:
	case message.ClassVarLen:
		if !attr.IsVarLenStringAttr() {
			return nil, false
		}
	default:
		return nil, false
	}
	val, err := attr.Value()
	if err != nil {
		return nil, false
	}
	return val, true
}
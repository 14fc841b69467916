package merge

import (
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/robert-malhotra/nwb-merge/hdf5"
)

// copier reproduces an HDF5 subtree from one file in another. Soft links
// are reproduced as links rather than followed, so shared objects stay
// shared. Per-path rules let callers drop a subtree or replace it with a
// soft link; rules match on absolute paths in the source file.
type copier struct {
	log *zap.Logger

	// skip lists source paths whose subtree is not copied.
	skip map[string]bool

	// relink maps source paths to soft-link targets written in their
	// place.
	relink map[string]string

	// created records the destination group created for each copied
	// source path, so callers can graft more content into the copy.
	created map[string]*hdf5.Group
}

func newCopier(log *zap.Logger) *copier {
	return &copier{
		log:     log,
		skip:    make(map[string]bool),
		relink:  make(map[string]string),
		created: make(map[string]*hdf5.Group),
	}
}

// copyGroup copies the attributes and members of src into dst,
// recursively.
func (c *copier) copyGroup(dst *hdf5.Group, src *hdf5.Group) error {
	skipped, err := hdf5.CopyAttrs(dst, src)
	if err != nil {
		return fmt.Errorf("copying attributes of %s: %w", src.Path(), err)
	}
	c.logSkippedAttrs(src.Path(), skipped)

	links, err := src.Links()
	if err != nil {
		return fmt.Errorf("listing %s: %w", src.Path(), err)
	}
	for _, link := range links {
		childPath := path.Join(src.Path(), link.Name)

		if c.skip[childPath] {
			c.log.Info("dropping subtree", zap.String("path", childPath))
			continue
		}
		if target, ok := c.relink[childPath]; ok {
			c.log.Info("replacing with link",
				zap.String("path", childPath),
				zap.String("target", target))
			if err := dst.CreateSoftLink(link.Name, target); err != nil {
				return fmt.Errorf("linking %s: %w", childPath, err)
			}
			continue
		}

		switch link.Kind {
		case hdf5.LinkSoft:
			if err := dst.CreateSoftLink(link.Name, link.Target); err != nil {
				return fmt.Errorf("linking %s: %w", childPath, err)
			}
		case hdf5.LinkExternal:
			// External links would make the output depend on files that
			// may not travel with it.
			c.log.Warn("skipping external link",
				zap.String("path", childPath),
				zap.String("target", link.Target))
		default:
			if err := c.copyMember(dst, src, link.Name, childPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyMember copies one hard-linked member, recursing for groups. A
// member that cannot be resolved at all (dangling target) is skipped
// with a warning; failures while copying a resolved member stay fatal.
func (c *copier) copyMember(dst, src *hdf5.Group, name, childPath string) error {
	if child, err := src.OpenGroup(name); err == nil {
		childDst, err := dst.CreateGroup(name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", childPath, err)
		}
		c.created[childPath] = childDst
		return c.copyGroup(childDst, child)
	}

	ds, err := src.OpenDataset(name)
	if err != nil {
		c.log.Warn("skipping unresolvable member",
			zap.String("path", childPath), zap.Error(err))
		return nil
	}
	skipped, err := hdf5.CopyDataset(dst, name, ds)
	c.logSkippedAttrs(childPath, skipped)
	if err != nil {
		return fmt.Errorf("copying %s: %w", childPath, err)
	}
	return nil
}

func (c *copier) logSkippedAttrs(objPath string, skipped []string) {
	if len(skipped) == 0 {
		return
	}
	c.log.Warn("skipping attributes with no portable encoding",
		zap.String("path", objPath),
		zap.Strings("attributes", skipped))
}
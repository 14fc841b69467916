package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/nwb-merge/internal/message"
	"github.com/robert-malhotra/nwb-merge/internal/object"
)

// CreateGroup creates a new subgroup with the given name.
// Attributes can be attached at creation time with WithGroupAttribute.
func (g *Group) CreateGroup(name string, opts ...GroupOption) (*Group, error) {
	if !g.file.writable {
		return nil, fmt.Errorf("file is not writable")
	}

	if name == "" {
		return nil, fmt.Errorf("group name cannot be empty")
	}

	options := defaultGroupOptions()
	for _, opt := range opts {
		opt(options)
	}

	// Calculate the path for the new group
	newPath := path.Join(g.path, name)
	if g.path == "/" {
		newPath = "/" + name
	}

	// Build attribute messages
	var attrs []*message.Attribute
	for _, a := range options.attributes {
		attrMsg, err := createAttributeMessage(a.name, a.value)
		if err != nil {
			return nil, fmt.Errorf("creating attribute %q: %w", a.name, err)
		}
		attrs = append(attrs, attrMsg)
	}

	// Create the group object header
	groupMessages := object.NewGroupHeader(nil, attrs)

	// Calculate header size and allocate space
	headerSize := object.HeaderSizeWithMinChunk(g.file.writer, groupMessages, object.MinGroupChunkSize)
	groupAddr := g.file.allocate(int64(headerSize))

	// Write the group object header
	w := g.file.writer.At(int64(groupAddr))
	if _, err := object.WriteHeaderWithMinChunk(w, groupMessages, object.MinGroupChunkSize); err != nil {
		return nil, fmt.Errorf("writing group header: %w", err)
	}

	// Create a hard link from parent to this group
	link := message.NewHardLink(name, groupAddr)

	// Add the link to the parent group
	if err := g.addLink(link); err != nil {
		return nil, fmt.Errorf("adding link to parent: %w", err)
	}

	// Create the Group object. Its header state is known: no links,
	// the attributes we just wrote.
	newGroup := &Group{
		file:         g.file,
		path:         newPath,
		header:       nil, // Will be loaded on demand if needed
		addr:         groupAddr,
		parent:       g,
		pendingLinks: nil,
		pendingAttrs: attrs,
		stateLoaded:  true,
	}

	return newGroup, nil
}

// CreateSoftLink creates a soft link in this group pointing to targetPath.
// The target does not need to exist yet; it is resolved at read time.
func (g *Group) CreateSoftLink(name string, targetPath string) error {
	if !g.file.writable {
		return fmt.Errorf("file is not writable")
	}
	if name == "" {
		return fmt.Errorf("link name cannot be empty")
	}
	if targetPath == "" {
		return fmt.Errorf("link target cannot be empty")
	}
	return g.addLink(message.NewSoftLink(name, targetPath))
}

// SetAttr sets an attribute on this group, replacing any existing
// attribute of the same name. The value can be a scalar or slice of:
// int, int8-64, uint, uint8-64, float32, float64, string.
func (g *Group) SetAttr(name string, value interface{}) error {
	if !g.file.writable {
		return fmt.Errorf("file is not writable")
	}

	attrMsg, err := createAttributeMessage(name, value)
	if err != nil {
		return fmt.Errorf("creating attribute %q: %w", name, err)
	}

	if err := g.loadHeaderState(); err != nil {
		return fmt.Errorf("loading header state: %w", err)
	}

	// Replace existing attribute with the same name
	replaced := false
	for i, existing := range g.pendingAttrs {
		if existing.Name == name {
			g.pendingAttrs[i] = attrMsg
			replaced = true
			break
		}
	}
	if !replaced {
		g.pendingAttrs = append(g.pendingAttrs, attrMsg)
	}

	return g.rewriteHeader()
}

// addLink adds a link message to this group.
// For writable files, this updates the group's object header.
func (g *Group) addLink(link *message.Link) error {
	if !g.file.writable {
		return fmt.Errorf("file is not writable")
	}

	if err := g.loadHeaderState(); err != nil {
		return fmt.Errorf("loading header state: %w", err)
	}

	g.pendingLinks = append(g.pendingLinks, link)

	// Rewrite the group's object header with the new link
	return g.rewriteHeader()
}

// loadHeaderState loads existing link and attribute messages from the
// group's object header. Subsequent calls are no-ops so in-session
// modifications are never clobbered by a reload.
func (g *Group) loadHeaderState() error {
	if g.stateLoaded {
		return nil
	}
	g.stateLoaded = true
	g.pendingLinks = make([]*message.Link, 0)
	g.pendingAttrs = make([]*message.Attribute, 0)

	// If we don't have a header loaded, try to load it
	if g.header == nil && g.file.reader != nil {
		header, err := object.Read(g.file.reader, g.addr)
		if err != nil {
			// If we can't read the header, start fresh (this is OK for new groups)
			return nil
		}
		g.header = header
	}

	// If we have a header, extract existing link and attribute messages
	if g.header != nil {
		for _, msg := range g.header.GetMessages(message.TypeLink) {
			if linkMsg, ok := msg.(*message.Link); ok {
				g.pendingLinks = append(g.pendingLinks, linkMsg)
			}
		}
		for _, msg := range g.header.GetMessages(message.TypeAttribute) {
			if attrMsg, ok := msg.(*message.Attribute); ok {
				g.pendingAttrs = append(g.pendingAttrs, attrMsg)
			}
		}
	}

	return nil
}

// rewriteHeader rewrites the group's object header with all pending
// links and attributes.
func (g *Group) rewriteHeader() error {
	// Create group header with LinkInfo, attributes, and all links
	messages := object.NewGroupHeader(g.pendingLinks, g.pendingAttrs)

	// Calculate new header size with minimum chunk size for h5py compatibility
	headerSize := object.HeaderSizeWithMinChunk(g.file.writer, messages, object.MinGroupChunkSize)

	// Allocate new space (we can't resize in place, so allocate new)
	newAddr := g.file.allocate(int64(headerSize))

	// Write the new header
	w := g.file.writer.At(int64(newAddr))
	if _, err := object.WriteHeaderWithMinChunk(w, messages, object.MinGroupChunkSize); err != nil {
		return err
	}

	// Update our address
	oldAddr := g.addr
	g.addr = newAddr

	// If this is the root group, update the superblock
	if g.path == "/" {
		g.file.superblock.RootGroupAddress = newAddr
	} else {
		// Update parent's link to point to new address
		if err := g.updateParentLink(oldAddr, newAddr); err != nil {
			return err
		}
	}

	return nil
}

// updateParentLink updates the parent group's link to point to the new address.
func (g *Group) updateParentLink(oldAddr, newAddr uint64) error {
	// Get the name of this group
	name := path.Base(g.path)

	// Find parent in our hierarchy
	parent := g.findParent()
	if parent == nil {
		return fmt.Errorf("cannot update link to %q: parent group is not tracked", g.path)
	}

	if err := parent.loadHeaderState(); err != nil {
		return fmt.Errorf("loading parent header state: %w", err)
	}

	// Update the link in parent's pending links
	for _, link := range parent.pendingLinks {
		if link.Name == name && link.IsHard() && link.ObjectAddress == oldAddr {
			link.ObjectAddress = newAddr
			break
		}
	}

	// Rewrite parent's header
	return parent.rewriteHeader()
}

// findParent finds the parent group in the file's group hierarchy.
func (g *Group) findParent() *Group {
	if g.path == "/" {
		return nil
	}

	// Groups created in this session carry a parent pointer.
	if g.parent != nil {
		return g.parent
	}

	parentPath := path.Dir(g.path)
	if parentPath == "" || parentPath == "." {
		parentPath = "/"
	}

	if parentPath == "/" {
		return g.file.root
	}

	// Parent is a nested group that was not created in this session.
	return nil
}
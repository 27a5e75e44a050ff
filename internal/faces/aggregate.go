package faces

import (
	"fmt"
	"slices"
)

// FaceByID returns the face with the given id, or nil.
func (d *FolderFaceData) FaceByID(id string) *DetectedFace {
	for _, f := range d.Faces {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// GroupByID returns the group with the given id, or nil.
func (d *FolderFaceData) GroupByID(id string) *FaceGroup {
	for _, g := range d.Groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// GroupFaces returns the member faces of a group in member order.
func (d *FolderFaceData) GroupFaces(g *FaceGroup) []*DetectedFace {
	members := make([]*DetectedFace, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		if f := d.FaceByID(id); f != nil {
			members = append(members, f)
		}
	}
	return members
}

// UngroupedFaces returns the faces with no group assignment.
func (d *FolderFaceData) UngroupedFaces() []*DetectedFace {
	var out []*DetectedFace
	for _, f := range d.Faces {
		if f.GroupID == "" {
			out = append(out, f)
		}
	}
	return out
}

// FacesForPath returns the faces detected in the given image.
func (d *FolderFaceData) FacesForPath(path string) []*DetectedFace {
	var out []*DetectedFace
	for _, f := range d.Faces {
		if f.ImagePath == path {
			out = append(out, f)
		}
	}
	return out
}

// AddFaces appends new (ungrouped) faces to the aggregate.
func (d *FolderFaceData) AddFaces(fs ...*DetectedFace) {
	d.Faces = append(d.Faces, fs...)
}

// detachFromGroup removes a face id from its group's member list,
// reassigning the representative to the first remaining member if needed
// and deleting the group when it becomes empty. The face's own GroupID is
// not touched here.
func (d *FolderFaceData) detachFromGroup(faceID, groupID string) {
	g := d.GroupByID(groupID)
	if g == nil {
		return
	}

	g.MemberIDs = slices.DeleteFunc(g.MemberIDs, func(id string) bool { return id == faceID })

	if len(g.MemberIDs) == 0 {
		d.deleteGroup(g.ID)
		return
	}
	if g.RepresentativeID == faceID {
		g.RepresentativeID = g.MemberIDs[0]
	}
}

// deleteGroup removes a group and its match record. Member faces are not
// touched; callers detach them first.
func (d *FolderFaceData) deleteGroup(id string) {
	d.Groups = slices.DeleteFunc(d.Groups, func(g *FaceGroup) bool { return g.ID == id })
	delete(d.Matches, id)
}

// RemoveFace deletes a face from the aggregate with full group cleanup.
func (d *FolderFaceData) RemoveFace(id string) {
	f := d.FaceByID(id)
	if f == nil {
		return
	}
	if f.GroupID != "" {
		d.detachFromGroup(f.ID, f.GroupID)
	}
	d.Faces = slices.DeleteFunc(d.Faces, func(x *DetectedFace) bool { return x.ID == id })
}

// PurgePaths deletes every face attached to the given image paths and
// drops the paths from the scanned-file map. Returns the removed face ids
// so callers can delete the associated thumbnails.
func (d *FolderFaceData) PurgePaths(paths []string) []string {
	var removed []string
	for _, path := range paths {
		for _, f := range d.FacesForPath(path) {
			removed = append(removed, f.ID)
		}
		delete(d.ScannedFiles, path)
	}
	for _, id := range removed {
		d.RemoveFace(id)
	}
	return removed
}

// ReassignFace moves a face into the target group, detaching it from its
// current group first (with empty-group cleanup). No-op if the face or
// target group does not exist.
func (d *FolderFaceData) ReassignFace(faceID, groupID string) {
	f := d.FaceByID(faceID)
	g := d.GroupByID(groupID)
	if f == nil || g == nil || f.GroupID == groupID {
		return
	}
	if f.GroupID != "" {
		d.detachFromGroup(f.ID, f.GroupID)
	}
	f.GroupID = g.ID
	g.MemberIDs = append(g.MemberIDs, f.ID)
}

// Validate checks the structural invariants: face/group references are
// mutually consistent, no group is empty, and every representative is a
// member. Used by tests and as a debugging aid.
func (d *FolderFaceData) Validate() error {
	owner := make(map[string]string) // face id -> group id
	for _, g := range d.Groups {
		if len(g.MemberIDs) == 0 {
			return fmt.Errorf("group %s is empty", g.ID)
		}
		if !slices.Contains(g.MemberIDs, g.RepresentativeID) {
			return fmt.Errorf("group %s: representative %s is not a member", g.ID, g.RepresentativeID)
		}
		for _, id := range g.MemberIDs {
			if prev, ok := owner[id]; ok {
				return fmt.Errorf("face %s is a member of both %s and %s", id, prev, g.ID)
			}
			owner[id] = g.ID
			if d.FaceByID(id) == nil {
				return fmt.Errorf("group %s references unknown face %s", g.ID, id)
			}
		}
	}
	for _, f := range d.Faces {
		if f.GroupID != owner[f.ID] {
			return fmt.Errorf("face %s: group reference %q does not match membership %q", f.ID, f.GroupID, owner[f.ID])
		}
	}
	return nil
}

package faces

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Store is the persistence surface the mutation layer writes through.
// Implementations live in internal/store.
type Store interface {
	SaveAggregate(data *FolderFaceData) error
	DeleteThumbnail(folder, faceID string) error
}

// MetadataWriter writes a metadata field to image files. Implemented by an
// external tool adapter; naming a group is the only consumer.
type MetadataWriter interface {
	WriteField(key, value string, imagePaths []string) error
}

// Trasher moves a file to the trash. Per-file failures are skipped during
// group deletion, not fatal.
type Trasher interface {
	Trash(path string) error
}

// Mutator applies group operations to an aggregate. Every operation
// either leaves the aggregate structurally valid or makes no change at
// all; a persistence write follows each applied mutation and its failure
// is returned as the error without rolling back the in-memory state.
type Mutator struct {
	Data     *FolderFaceData
	Store    Store          // optional; nil keeps mutations in memory only
	Metadata MetadataWriter // optional; used by NameGroup
	Trasher  Trasher        // optional; used by DeleteGroup with photos
}

// NewMutator creates a mutator over the aggregate.
func NewMutator(data *FolderFaceData, store Store) *Mutator {
	return &Mutator{Data: data, Store: store}
}

// persist saves the aggregate best-effort. In-memory state remains
// authoritative when the write fails; callers surface the error as a
// warning.
func (m *Mutator) persist() error {
	if m.Store == nil {
		return nil
	}
	if err := m.Store.SaveAggregate(m.Data); err != nil {
		return fmt.Errorf("saving face data: %w", err)
	}
	return nil
}

func (m *Mutator) deleteThumb(faceID string) {
	if m.Store == nil {
		return
	}
	// Thumbnail deletion failures leave an orphaned file, nothing more.
	_ = m.Store.DeleteThumbnail(m.Data.Folder, faceID)
}

// MergeGroups moves every member of source into target and deletes
// source. Merging a group into itself or a nonexistent group is a no-op.
func (m *Mutator) MergeGroups(sourceID, targetID string) (bool, error) {
	if sourceID == targetID {
		return false, nil
	}
	source := m.Data.GroupByID(sourceID)
	target := m.Data.GroupByID(targetID)
	if source == nil || target == nil {
		return false, nil
	}

	for _, id := range source.MemberIDs {
		if f := m.Data.FaceByID(id); f != nil {
			f.GroupID = target.ID
		}
		target.MemberIDs = append(target.MemberIDs, id)
	}
	source.MemberIDs = nil
	m.Data.deleteGroup(source.ID)

	return true, m.persist()
}

// UngroupFace removes a face from its group and creates a new
// single-member group for it. A face whose group has only one member
// stays put (no-op).
func (m *Mutator) UngroupFace(faceID string) (bool, error) {
	f := m.Data.FaceByID(faceID)
	if f == nil || f.GroupID == "" {
		return false, nil
	}
	g := m.Data.GroupByID(f.GroupID)
	if g == nil || len(g.MemberIDs) <= 1 {
		return false, nil
	}

	m.Data.detachFromGroup(f.ID, g.ID)
	solo := &FaceGroup{
		ID:               uuid.NewString(),
		RepresentativeID: f.ID,
		MemberIDs:        []string{f.ID},
	}
	f.GroupID = solo.ID
	m.insertGroupAfter(solo, g.ID)

	return true, m.persist()
}

// MergeMultiple merges the selected groups into whichever of them comes
// first in display order. Fewer than two resolvable ids is a no-op.
// Returns the id of the merge target.
func (m *Mutator) MergeMultiple(ids []string) (string, bool, error) {
	var selected []*FaceGroup
	for _, id := range ids {
		if g := m.Data.GroupByID(id); g != nil && !slices.Contains(selectedIDs(selected), g.ID) {
			selected = append(selected, g)
		}
	}
	if len(selected) < 2 {
		return "", false, nil
	}

	ordered := DisplayOrder(selected)
	target := ordered[0]
	for _, g := range ordered[1:] {
		for _, id := range g.MemberIDs {
			if f := m.Data.FaceByID(id); f != nil {
				f.GroupID = target.ID
			}
			target.MemberIDs = append(target.MemberIDs, id)
		}
		g.MemberIDs = nil
		m.Data.deleteGroup(g.ID)
	}

	return target.ID, true, m.persist()
}

func selectedIDs(groups []*FaceGroup) []string {
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids
}

// UngroupMultiple splits each selected group with more than one member:
// the first member stays, every other member gets its own solo group.
func (m *Mutator) UngroupMultiple(ids []string) (bool, error) {
	changed := false
	for _, id := range ids {
		g := m.Data.GroupByID(id)
		if g == nil || len(g.MemberIDs) <= 1 {
			continue
		}

		spun := g.MemberIDs[1:]
		g.MemberIDs = g.MemberIDs[:1]
		g.RepresentativeID = g.MemberIDs[0]

		anchor := g.ID
		for _, faceID := range spun {
			f := m.Data.FaceByID(faceID)
			solo := &FaceGroup{
				ID:               uuid.NewString(),
				RepresentativeID: faceID,
				MemberIDs:        []string{faceID},
			}
			if f != nil {
				f.GroupID = solo.ID
			}
			m.insertGroupAfter(solo, anchor)
			anchor = solo.ID
		}
		changed = true
	}
	if !changed {
		return false, nil
	}
	return true, m.persist()
}

// MoveFace moves a single face to the target group. Moving within the
// same group or to a nonexistent group is a no-op.
func (m *Mutator) MoveFace(faceID, targetGroupID string) (bool, error) {
	f := m.Data.FaceByID(faceID)
	target := m.Data.GroupByID(targetGroupID)
	if f == nil || target == nil || f.GroupID == targetGroupID {
		return false, nil
	}
	m.moveFaceInto(f, target)
	return true, m.persist()
}

// MoveFaces moves the given faces to the target group, skipping faces
// already there.
func (m *Mutator) MoveFaces(faceIDs []string, targetGroupID string) (bool, error) {
	target := m.Data.GroupByID(targetGroupID)
	if target == nil {
		return false, nil
	}
	changed := false
	for _, id := range faceIDs {
		f := m.Data.FaceByID(id)
		if f == nil || f.GroupID == targetGroupID {
			continue
		}
		m.moveFaceInto(f, target)
		changed = true
	}
	if !changed {
		return false, nil
	}
	return true, m.persist()
}

func (m *Mutator) moveFaceInto(f *DetectedFace, target *FaceGroup) {
	if f.GroupID != "" {
		m.Data.detachFromGroup(f.ID, f.GroupID)
	}
	f.GroupID = target.ID
	target.MemberIDs = append(target.MemberIDs, f.ID)
}

// CreateGroup removes the faces from their current groups and creates one
// new group containing them, inserted adjacent to the first face's prior
// group in manual order to minimize visual disruption.
func (m *Mutator) CreateGroup(faceIDs []string) (*FaceGroup, error) {
	var members []*DetectedFace
	for _, id := range faceIDs {
		if f := m.Data.FaceByID(id); f != nil {
			members = append(members, f)
		}
	}
	if len(members) == 0 {
		return nil, nil
	}

	anchor := members[0].GroupID
	group := &FaceGroup{
		ID:               uuid.NewString(),
		RepresentativeID: members[0].ID,
	}
	for _, f := range members {
		if f.GroupID != "" {
			m.Data.detachFromGroup(f.ID, f.GroupID)
		}
		f.GroupID = group.ID
		group.MemberIDs = append(group.MemberIDs, f.ID)
	}
	m.insertGroupAfter(group, anchor)

	return group, m.persist()
}

// insertGroupAfter inserts the group after the group with the given id in
// manual order, or appends when the anchor is gone.
func (m *Mutator) insertGroupAfter(g *FaceGroup, anchorID string) {
	for i, existing := range m.Data.Groups {
		if existing.ID == anchorID {
			m.Data.Groups = slices.Insert(m.Data.Groups, i+1, g)
			return
		}
	}
	m.Data.Groups = append(m.Data.Groups, g)
}

// DeleteFaces permanently removes faces, with group cleanup and thumbnail
// deletion.
func (m *Mutator) DeleteFaces(faceIDs []string) (bool, error) {
	changed := false
	for _, id := range faceIDs {
		if m.Data.FaceByID(id) == nil {
			continue
		}
		m.Data.RemoveFace(id)
		m.deleteThumb(id)
		changed = true
	}
	if !changed {
		return false, nil
	}
	return true, m.persist()
}

// DeleteGroup removes a group and all its faces. With includePhotos, the
// member faces' source images are trashed as well; per-file trash
// failures are skipped and the face-data deletion proceeds regardless.
// Returns the paths that were successfully trashed.
func (m *Mutator) DeleteGroup(groupID string, includePhotos bool) ([]string, error) {
	g := m.Data.GroupByID(groupID)
	if g == nil {
		return nil, nil
	}

	var trashed []string
	if includePhotos && m.Trasher != nil {
		seen := make(map[string]bool)
		for _, f := range m.Data.GroupFaces(g) {
			if seen[f.ImagePath] {
				continue
			}
			seen[f.ImagePath] = true
			if err := m.Trasher.Trash(f.ImagePath); err == nil {
				trashed = append(trashed, f.ImagePath)
			}
		}
		for _, path := range trashed {
			delete(m.Data.ScannedFiles, path)
		}
	}

	members := slices.Clone(g.MemberIDs)
	for _, id := range members {
		m.Data.RemoveFace(id)
		m.deleteThumb(id)
	}

	return trashed, m.persist()
}

// NameGroup assigns a human name to a group and, when a metadata writer
// is configured, records the name on every member image. Metadata write
// failures are collected and returned; the name assignment stands.
func (m *Mutator) NameGroup(groupID, name string) (bool, error) {
	g := m.Data.GroupByID(groupID)
	if g == nil || g.Name == name {
		return false, nil
	}
	g.Name = name

	var errs []error
	if err := m.persist(); err != nil {
		errs = append(errs, err)
	}
	if m.Metadata != nil && name != "" {
		paths := make([]string, 0, len(g.MemberIDs))
		seen := make(map[string]bool)
		for _, f := range m.Data.GroupFaces(g) {
			if !seen[f.ImagePath] {
				seen[f.ImagePath] = true
				paths = append(paths, f.ImagePath)
			}
		}
		if err := m.Metadata.WriteField("PersonInImage", name, paths); err != nil {
			errs = append(errs, fmt.Errorf("writing metadata: %w", err))
		}
	}
	return true, errors.Join(errs...)
}

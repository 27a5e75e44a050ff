package faces

import (
	"sort"

	"github.com/facette/natsort"
)

// DisplayOrder returns the groups in display sort order: named groups
// first, ordered naturally by name, then unnamed groups by descending
// size. Ties keep the manual order.
func DisplayOrder(groups []*FaceGroup) []*FaceGroup {
	out := make([]*FaceGroup, len(groups))
	copy(out, groups)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Named() && !b.Named():
			return true
		case !a.Named() && b.Named():
			return false
		case a.Named():
			return natsort.Compare(a.Name, b.Name)
		default:
			return a.Size() > b.Size()
		}
	})
	return out
}

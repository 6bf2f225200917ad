package catalog

// Category is a node in the shop's category hierarchy. A zero ParentID
// marks a root category.
type Category struct {
	ID       int64
	Name     string
	ParentID int64
}

// Tree holds the parent->children index for descendant lookups.
type Tree struct {
	children map[int64][]int64
}

func NewTree(categories []Category) *Tree {
	children := make(map[int64][]int64, len(categories))
	for _, c := range categories {
		if c.ParentID != 0 {
			children[c.ParentID] = append(children[c.ParentID], c.ID)
		}
	}
	return &Tree{children: children}
}

// DescendantIDs returns the given category and every category below it,
// walking the hierarchy breadth-first over an explicit frontier queue.
// Already-seen ids are skipped so a corrupt hierarchy cannot loop forever.
func (t *Tree) DescendantIDs(rootID int64) []int64 {
	seen := map[int64]struct{}{rootID: {}}
	ids := []int64{rootID}
	frontier := []int64{rootID}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		for _, child := range t.children[current] {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			ids = append(ids, child)
			frontier = append(frontier, child)
		}
	}

	return ids
}

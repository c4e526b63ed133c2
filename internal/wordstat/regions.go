package wordstat

// FlattenRegions walks a region forest in pre-order and returns every
// value-bearing node as a flat catalog entry. The walk uses an explicit
// stack so arbitrarily deep trees cannot overflow the goroutine stack.
func FlattenRegions(forest []RegionNode) []Region {
	var regions []Region
	// Roots are pushed in reverse so pop order matches input order.
	stack := make([]RegionNode, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, forest[i])
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.Value != nil {
			regions = append(regions, Region{ID: *node.Value, Label: node.Label})
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
	return regions
}

// RegionIDSet builds the membership set used for region validation.
func RegionIDSet(regions []Region) map[int64]struct{} {
	set := make(map[int64]struct{}, len(regions))
	for _, r := range regions {
		set[r.ID] = struct{}{}
	}
	return set
}

package vault

// PolicyNode is a threshold node in a vault's spending policy tree: satisfy
// any Threshold of its Leaves. A Leaf is either a terminal key fingerprint
// or a nested PolicyNode, mirroring (a simplified form of) the
// SatisfiableItem::Thresh tree the original miniscript-policy compiler
// produces (spec.md §8, `original_source/crates/smartvaults-core/src/
// policy/mod.rs`'s `selectable_conditions`/`get_policy_path_from_signer`).
type PolicyNode struct {
	ID        string
	Threshold int
	Leaves    []PolicyLeaf
}

// PolicyLeaf is either terminal (Fingerprint set) or a nested node (Sub set).
type PolicyLeaf struct {
	ID          string
	Fingerprint string
	Sub         *PolicyNode
}

// SelectableCondition records one threshold node's selectable sub-paths.
type SelectableCondition struct {
	Path     string
	Thresh   int
	SubPaths []string
}

// SelectableConditions flattens every threshold node with a non-trivial
// (threshold < len(leaves)) choice into a list, depth first.
func (n *PolicyNode) SelectableConditions() []SelectableCondition {
	var out []SelectableCondition
	var walk func(node *PolicyNode)
	walk = func(node *PolicyNode) {
		if node == nil {
			return
		}
		if node.Threshold < len(node.Leaves) {
			sub := make([]string, len(node.Leaves))
			for i, l := range node.Leaves {
				sub[i] = l.ID
			}
			out = append(out, SelectableCondition{Path: node.ID, Thresh: node.Threshold, SubPaths: sub})
		}
		for _, l := range node.Leaves {
			if l.Sub != nil {
				walk(l.Sub)
			}
		}
	}
	walk(n)
	return out
}

func (n *PolicyNode) findLeaf(id string) *PolicyLeaf {
	var found *PolicyLeaf
	var walk func(node *PolicyNode)
	walk = func(node *PolicyNode) {
		if node == nil || found != nil {
			return
		}
		for i := range node.Leaves {
			l := &node.Leaves[i]
			if l.ID == id {
				found = l
				return
			}
			if l.Sub != nil {
				walk(l.Sub)
			}
		}
	}
	walk(n)
	return found
}

// PolicyPathSelector is the tagged result of policy-path discovery
// (spec.md §8).
type PolicyPathSelector struct {
	// Complete is true iff every selectable condition's threshold is
	// fully determined by the queried signer.
	Complete bool

	// Path maps node path -> selected leaf indices, for nodes this
	// signer contributes to.
	Path map[string][]int

	// MissingToSelect maps node path -> remaining unselected sub-paths,
	// populated only when Complete is false.
	MissingToSelect map[string][]string
}

// GetPolicyPathFromSigner implements spec.md §8's testable property:
// returns nil (no selector, e.g. no timelock/no threshold choice exists) or
// a Complete/Partial PolicyPathSelector for the given signer fingerprint.
func (n *PolicyNode) GetPolicyPathFromSigner(fingerprint string) *PolicyPathSelector {
	conditions := n.SelectableConditions()
	if len(conditions) == 0 {
		return nil
	}

	selected := make(map[string][]int)
	threshByPath := make(map[string]int)
	for _, c := range conditions {
		threshByPath[c.Path] = c.Thresh
		for idx, subID := range c.SubPaths {
			leaf := n.findLeaf(subID)
			if leaf != nil && leaf.Fingerprint == fingerprint {
				selected[c.Path] = append(selected[c.Path], idx)
			}
		}
	}

	if len(selected) == 0 {
		return nil
	}

	if len(selected) == len(conditions) {
		// Every selectable node has a contribution from this signer;
		// complete iff each node's threshold is met by that
		// contribution alone.
		allMet := true
		for path, idxs := range selected {
			if len(idxs) < threshByPath[path] {
				allMet = false
				break
			}
		}
		if allMet {
			return &PolicyPathSelector{Complete: true, Path: selected}
		}

		missing := make(map[string][]string)
		for _, c := range conditions {
			idxs := selected[c.Path]
			if len(idxs) >= c.Thresh {
				continue
			}
			selectedSet := make(map[int]bool, len(idxs))
			for _, i := range idxs {
				selectedSet[i] = true
			}
			var rest []string
			for i, sub := range c.SubPaths {
				if !selectedSet[i] {
					rest = append(rest, sub)
				}
			}
			missing[c.Path] = rest
		}
		return &PolicyPathSelector{Complete: false, Path: selected, MissingToSelect: missing}
	}

	// Partial coverage: list every node this signer did not touch at all,
	// with their full sub-path list as missing.
	missing := make(map[string][]string)
	for _, c := range conditions {
		if _, ok := selected[c.Path]; ok {
			continue
		}
		subCopy := make([]string, len(c.SubPaths))
		copy(subCopy, c.SubPaths)
		missing[c.Path] = subCopy
	}
	return &PolicyPathSelector{Complete: false, Path: selected, MissingToSelect: missing}
}


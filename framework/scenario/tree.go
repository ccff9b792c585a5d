package scenario

// SetupFunc prepares the shared precondition of a suite. The returned value is readable by every
// descendant through T.SetupValue. Returning an error, or failing the scope in any other way,
// causes every case beneath the suite to be skipped.
type SetupFunc func(t *T) (interface{}, error)

// Node is an element of a scenario tree: either a suite or a case. Trees are built once and
// then traversed in declaration order.
type Node struct {
	Name     string
	Setup    SetupFunc
	Body     func(t *T)
	Children []Node
}

// Suite declares a group of nodes. The setup function may be nil.
func Suite(name string, setup SetupFunc, children ...Node) Node {
	return Node{Name: name, Setup: setup, Children: children}
}

// Case declares a single check.
func Case(name string, body func(t *T)) Node {
	return Node{Name: name, Body: body}
}

// IsCase returns true if the node is a case rather than a suite.
func (n Node) IsCase() bool {
	return n.Body != nil
}

// CaseIDs returns the IDs of every case in the tree, in traversal order, relative to parent.
func (n Node) CaseIDs(parent TestID) []TestID {
	id := parent.Plus(n.Name)
	if n.IsCase() {
		return []TestID{id}
	}
	var ret []TestID
	for _, c := range n.Children {
		ret = append(ret, c.CaseIDs(id)...)
	}
	return ret
}

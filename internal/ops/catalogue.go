package ops

// allOperations assembles the fixed vocabulary from each family file.
func allOperations() []*Operation {
	var out []*Operation
	out = append(out, changeOperations()...)
	out = append(out, objectOperations()...)
	out = append(out, metaOperations()...)
	out = append(out, indexCloneOperations()...)
	out = append(out, userOperations()...)
	out = append(out, workspaceSystemOperations()...)
	return out
}

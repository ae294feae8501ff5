package catalog

// Flatten resolves root into one Record per file, in pre-order. Each record
// holds the metadata of every ancestor directory, closer directories winning,
// with the file's intrinsic fields applied last.
func Flatten(root Node) []Record {
	var records []Record
	flatten(root, nil, &records)
	return records
}

func flatten(n Node, inherited Metadata, out *[]Record) {
	switch n := n.(type) {
	case *Directory:
		scope := Merge(inherited, n.Metadata)
		for _, child := range n.Children {
			flatten(child, scope, out)
		}
	case *File:
		*out = append(*out, Record(Merge(inherited, n.Fields())))
	}
}

package catalog

// FileEntry is one downloadable manual. Link is built from the file name
// and is never checked for existence before the download.
type FileEntry struct {
	Name string
	Link string
}

// Group holds the files found for one manufacturer key. Keys are not unique
// within a catalog, a manufacturer listed twice on the index page yields two
// groups.
type Group struct {
	Key   string
	Files []FileEntry
}

// Catalog is the ordered list of groups, built once and then read by the
// downloader in the same order.
type Catalog []Group

// FileCount is the number of file entries across all groups.
func (c Catalog) FileCount() int {
	n := 0
	for _, g := range c {
		n += len(g.Files)
	}
	return n
}

// Keys lists the group keys in catalog order, duplicates included.
func (c Catalog) Keys() []string {
	keys := make([]string, len(c))
	for i, g := range c {
		keys[i] = g.Key
	}
	return keys
}

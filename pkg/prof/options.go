package prof

// Options names the profile files of a run. Empty paths are skipped.
type Options struct {
	CPU   string
	Heap  string
	Mutex string
	Block string
}

// Empty reports whether no profile was requested.
func (o Options) Empty() bool {
	return o == Options{}
}

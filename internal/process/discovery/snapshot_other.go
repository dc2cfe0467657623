//go:build !unix && !windows

package discovery

func platformSnapshotter() Snapshotter {
	return Unsupported{}
}

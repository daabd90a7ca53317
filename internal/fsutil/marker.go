package fsutil

import "bytes"

// ManagedMarker tags files hooktrace writes into foreign config trees,
// so disable only ever removes content hooktrace itself installed.
const ManagedMarker = "hooktrace:managed"

// Comment forms of the marker for the surfaces hooktrace writes.
const (
	ManagedMarkerHTML  = "<!-- hooktrace:managed -->"
	ManagedMarkerShell = "# hooktrace:managed"
	ManagedMarkerJS    = "// hooktrace:managed"
)

// IsManagedFile checks if data carries a hooktrace marker in any form.
func IsManagedFile(data []byte) bool {
	return bytes.Contains(data, []byte(ManagedMarker))
}

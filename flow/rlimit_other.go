//go:build !unix

package flow

// maxOpenFilesDefault falls back to the same 1024 default used on unix
// platforms when the platform's descriptor limit is unknowable.
func maxOpenFilesDefault() int {
	return 1024
}

package entities

// ChecksumEntry is one "<hex-digest>  <filename>" line of a SHA256SUMS manifest
type ChecksumEntry struct {
	Digest   string
	Filename string
}

package entities

// RegistryVersion is the provider-version resource created on the registry.
// It must exist before any RegistryPlatform referencing it is created.
type RegistryVersion struct {
	Version             string
	KeyID               string
	Protocols           []string
	ShasumsUploadURL    string
	ShasumsSigUploadURL string
}

// RegistryPlatform is one os/arch build registered under a RegistryVersion
type RegistryPlatform struct {
	OS              string
	Arch            string
	Shasum          string
	Filename        string
	BinaryUploadURL string
}

// RegistryProvider is the provider resource a version is published under
type RegistryProvider struct {
	Name         string
	Namespace    string
	RegistryName string
}

// PlatformState tracks publication progress of one platform
type PlatformState string

// Platform publication states
const (
	PlatformPending    PlatformState = "PENDING"
	PlatformRegistered PlatformState = "REGISTERED"
	PlatformUploaded   PlatformState = "UPLOADED"
	PlatformFailed     PlatformState = "FAILED"
)

// PlatformResult records the outcome for one requested platform
type PlatformResult struct {
	Platform Platform
	State    PlatformState
	Shasum   string
	Filename string
	Err      error
}

// Done reports whether the platform reached a terminal state
func (r *PlatformResult) Done() bool {
	return r.State == PlatformUploaded || r.State == PlatformFailed
}

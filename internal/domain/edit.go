package domain

// EditRequest is built fresh for every edit attempt and never stored.
type EditRequest struct {
	Image    string // data URI of the source image
	Prompt   string
	MIMEType string
}

// DefaultPrompt seeds the instruction of a new session.
const DefaultPrompt = "Replace the illustrated cartoon person with a real person shopping in the store. Make the lighting consistent with the environment."

// DownloadFilename is the name offered when an edited image is exported.
const DownloadFilename = "refined-image.png"

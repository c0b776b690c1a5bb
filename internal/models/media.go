package models

// UploadRequest carries a data-URI encoded file payload.
type UploadRequest struct {
	File   string `json:"file" validate:"required"`
	Folder string `json:"folder"`
}

// MediaAsset describes a stored upload.
type MediaAsset struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Format   string `json:"format"`
}

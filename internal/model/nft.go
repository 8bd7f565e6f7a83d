package model

// TokenID identifies a minted product passport NFT.
type TokenID uint64

// NFTMetadata is the simple passport metadata stored by the NFT service.
type NFTMetadata struct {
	ProductName    string   `json:"product_name" validate:"required"`
	BatchID        string   `json:"batch_id" validate:"required"`
	Manufacturer   string   `json:"manufacturer" validate:"required"`
	ImageURI       string   `json:"image_uri" validate:"omitempty,url"`
	CertificateURI string   `json:"certificate_uri" validate:"omitempty,url"`
	History        []string `json:"history"`
}

// NFT pairs a token with its metadata.
type NFT struct {
	TokenID  TokenID     `json:"token_id"`
	Metadata NFTMetadata `json:"metadata"`
}

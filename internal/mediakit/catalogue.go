package mediakit

// ProfileAsset is the generated PDF's name in the catalogue and URL.
const ProfileAsset = "profile.pdf"

type Asset struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Format      string `json:"format"`
	Generated   bool   `json:"generated"`

	// Key is the object key below the configured prefix. Empty for
	// generated assets.
	Key string `json:"-"`
}

// DefaultAssets is the press kit offered on /media-kit.
func DefaultAssets() []Asset {
	return []Asset{
		{
			Name:        "portraits.zip",
			Title:       "High-Resolution Portraits",
			Description: "Official photographs for print and digital editorial use.",
			Format:      "ZIP",
			Key:         "portraits.zip",
		},
		{
			Name:        "biography.pdf",
			Title:       "Official Biography",
			Description: "Long and short form biographies approved for publication.",
			Format:      "PDF",
			Key:         "biography.pdf",
		},
		{
			Name:        ProfileAsset,
			Title:       "Executive Profile",
			Description: "Current leadership profile, group companies and milestones.",
			Format:      "PDF",
			Generated:   true,
		},
		{
			Name:        "group-profile.pdf",
			Title:       "Group Profile",
			Description: "Overview of the group's verticals and ventures.",
			Format:      "PDF",
			Key:         "group-profile.pdf",
		},
	}
}

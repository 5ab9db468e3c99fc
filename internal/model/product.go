package model

// ProductType distinguishes bookable products (experiences with dated
// slots) from plain catalog items that cannot carry availability.
type ProductType string

const (
	ProductTypeExperience ProductType = "experience"
	ProductTypeItem       ProductType = "item"
)

// Product is the narrow view of the catalog collaborator this engine
// consumes: enough to validate slot creation and waitlist settings.
// The full catalog model (name, images, description) lives elsewhere.
type Product struct {
	ID              uint64
	Type            ProductType
	Name            string
	WaitlistEnabled bool
}

// Bookable reports whether slots may be created for the product.
func (p *Product) Bookable() bool {
	return p.Type == ProductTypeExperience
}

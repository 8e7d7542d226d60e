package domain

// PaymentMethod is a configured way to pay for an order.
//
// Translated carries the values resolved for the current language, keyed by
// property name. A nil entry means the translation is unset.
type PaymentMethod struct {
	ID                  string             `json:"id" jsonapi:"primary,payment_method"`
	Name                string             `json:"name" jsonapi:"attr,name"`
	DistinguishableName *string            `json:"distinguishableName" jsonapi:"attr,distinguishableName"`
	Description         string             `json:"description,omitempty" jsonapi:"attr,description,omitempty"`
	Active              bool               `json:"active" jsonapi:"attr,active"`
	Position            int                `json:"position" jsonapi:"attr,position"`
	Translated          map[string]*string `json:"translated" jsonapi:"attr,translated"`
}

// EntityName implements Resource.
func (p *PaymentMethod) EntityName() string { return "payment_method" }

// GetID implements Resource.
func (p *PaymentMethod) GetID() string { return p.ID }

// GetTranslation returns the translated value of a property, or nil.
func (p *PaymentMethod) GetTranslation(property string) *string {
	if p.Translated == nil {
		return nil
	}
	return p.Translated[property]
}

// AddTranslated sets the translated value of a property.
func (p *PaymentMethod) AddTranslated(property string, value *string) {
	if p.Translated == nil {
		p.Translated = make(map[string]*string)
	}
	p.Translated[property] = value
}

package types

import "strings"

const defaultCountry = "USA"

// ShippingAddress is the delivery destination frozen onto an order.
type ShippingAddress struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"required,max=32"`
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	ZipCode string `json:"zip_code" validate:"required,max=20"`
	Country string `json:"country,omitempty" validate:"omitempty,max=60"`
}

// Normalized trims every field and fills the default country.
func (a ShippingAddress) Normalized() ShippingAddress {
	out := ShippingAddress{
		Name:    strings.TrimSpace(a.Name),
		Phone:   strings.TrimSpace(a.Phone),
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		ZipCode: strings.TrimSpace(a.ZipCode),
		Country: strings.TrimSpace(a.Country),
	}
	if out.Country == "" {
		out.Country = defaultCountry
	}
	return out
}

// Missing lists the json names of required fields that are blank.
func (a ShippingAddress) Missing() []string {
	missing := []string{}
	for name, value := range map[string]string{
		"name":     a.Name,
		"phone":    a.Phone,
		"street":   a.Street,
		"city":     a.City,
		"state":    a.State,
		"zip_code": a.ZipCode,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

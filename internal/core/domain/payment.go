package domain

type PaymentMethod struct {
	Name          string `json:"name" yaml:"name"`
	DisplayName   string `json:"display_name" yaml:"display_name"`
	IsEnabled     bool   `json:"is_enabled" yaml:"is_enabled"`
	CanRefund     bool   `json:"can_refund" yaml:"can_refund"`
	PluginName    string `json:"plugin_name,omitempty" yaml:"plugin_name"`
	Icon          string `json:"icon,omitempty" yaml:"icon"`
	Details       string `json:"details,omitempty" yaml:"details"`
	FormComponent string `json:"form_component,omitempty" yaml:"form_component"`
}

type PaymentMethods []PaymentMethod

// Find returns the method with the given name, enabled or not.
func (m PaymentMethods) Find(name string) (PaymentMethod, bool) {
	for _, method := range m {
		if method.Name == name {
			return method, true
		}
	}
	return PaymentMethod{}, false
}

func (m PaymentMethods) Enabled() PaymentMethods {
	enabled := make(PaymentMethods, 0, len(m))
	for _, method := range m {
		if method.IsEnabled {
			enabled = append(enabled, method)
		}
	}
	return enabled
}

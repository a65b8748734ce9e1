// Package harvest extracts source items from supplier section pages using
// per-supplier selector configuration.
package harvest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harlowes/magpie/internal/model"
)

// Selectors describes how to find item fields on a supplier's pages. The
// configuration is declarative and owned by the supplier config file, not
// by this package.
type Selectors struct {
	Item  string `yaml:"item"`            // container for one product
	Title string `yaml:"title"`           // product name within the container
	Price string `yaml:"price"`           // price text within the container
	Link  string `yaml:"link"`            // anchor to the product page
	Image string `yaml:"image,omitempty"` // product image
	Code  string `yaml:"code,omitempty"`  // global trade code, optional
}

// SupplierConfig is one supplier's entry in the suppliers file.
type SupplierConfig struct {
	Name      string    `yaml:"name"`
	EntryURL  string    `yaml:"entry_url"`
	Currency  string    `yaml:"currency,omitempty"`
	Selectors Selectors `yaml:"selectors"`
}

// Supplier converts the config into the domain supplier identity.
func (c *SupplierConfig) Supplier() model.Supplier {
	return model.Supplier{
		Name:     c.Name,
		EntryURL: c.EntryURL,
		Currency: c.Currency,
	}
}

// Validate checks that the config carries everything harvesting needs.
func (c *SupplierConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("supplier config missing name")
	}
	if c.EntryURL == "" {
		return fmt.Errorf("supplier %q missing entry_url", c.Name)
	}
	if c.Selectors.Item == "" {
		return fmt.Errorf("supplier %q missing item selector", c.Name)
	}
	if c.Selectors.Title == "" {
		return fmt.Errorf("supplier %q missing title selector", c.Name)
	}
	if c.Selectors.Price == "" {
		return fmt.Errorf("supplier %q missing price selector", c.Name)
	}
	if c.Selectors.Link == "" {
		return fmt.Errorf("supplier %q missing link selector", c.Name)
	}
	return nil
}

// suppliersFile is the top-level shape of the suppliers YAML file.
type suppliersFile struct {
	Suppliers []SupplierConfig `yaml:"suppliers"`
}

// LoadSuppliers reads and validates the suppliers file.
func LoadSuppliers(path string) ([]SupplierConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return nil, fmt.Errorf("failed to read suppliers file: %w", err)
	}

	var file suppliersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse suppliers file: %w", err)
	}
	if len(file.Suppliers) == 0 {
		return nil, fmt.Errorf("suppliers file %s defines no suppliers", path)
	}

	for i := range file.Suppliers {
		if err := file.Suppliers[i].Validate(); err != nil {
			return nil, err
		}
	}
	return file.Suppliers, nil
}

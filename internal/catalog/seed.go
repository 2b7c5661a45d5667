package catalog

import (
	"fmt"

	queryspec "github.com/arcadia-data/queryspec"
	"github.com/arcadia-data/queryspec/memquery"
)

// Seed registers the demo collections: products, categories, and
// suppliers. The products collection carries a soft-deletion filter so
// deleted products stay hidden unless a specification opts out.
func Seed(s *Service) error {
	garden := &Category{ID: 1, Name: "Garden"}
	office := &Category{ID: 2, Name: "Office"}
	kitchen := &Category{ID: 3, Name: "Kitchen"}

	acme := &Supplier{ID: 1, Name: "Acme Industrial", Country: "US"}
	nordic := &Supplier{ID: 2, Name: "Nordic Trading", Country: "SE"}

	products := memquery.NewCollection(
		&Product{ID: 1, Name: "Desk Lamp", Price: 42.50, Stock: 12, Category: office, Supplier: acme},
		&Product{ID: 2, Name: "Standing Desk", Price: 399.00, Stock: 3, Category: office, Supplier: nordic},
		&Product{ID: 3, Name: "Garden Hose", Price: 24.99, Stock: 0, Category: garden, Supplier: acme},
		&Product{ID: 4, Name: "Rake", Price: 17.25, Stock: 25, Category: garden, Supplier: acme},
		&Product{ID: 5, Name: "Chef Knife", Price: 89.00, Stock: 7, Category: kitchen, Supplier: nordic},
		&Product{ID: 6, Name: "Cutting Board", Price: 19.50, Stock: 18, Category: kitchen, Supplier: nordic},
		&Product{ID: 7, Name: "Watering Can", Price: 12.00, Stock: 9, Category: garden, Supplier: acme},
	)

	notDeleted, err := queryspec.New[*Product]().
		WhereField("Deleted", queryspec.FilterEqual, false).
		Predicate()
	if err != nil {
		return fmt.Errorf("seed products filter: %w", err)
	}
	products.WithFilter(notDeleted)

	Register(s, "products", products)
	Register(s, "categories", memquery.NewCollection(garden, office, kitchen))
	Register(s, "suppliers", memquery.NewCollection(acme, nordic))
	return nil
}

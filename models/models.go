// models/models.go
package models

// All lists every table the service migrates, parents first.
func All() []interface{} {
	return []interface{}{
		&Hunt{},
		&HuntVersion{},
		&Step{},
		&AssetUsage{},
	}
}

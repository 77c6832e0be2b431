package database

import "github.com/gaborage/go-datasource/database/types"

// Vendor identifiers accepted as DatabaseConfig.Type.
const (
	PostgreSQL = types.PostgreSQL
	Oracle     = types.Oracle
)

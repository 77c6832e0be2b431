package oracle

const (
	ListTablesQuery         = listTablesQuery
	DescribeColumnsQuery    = describeColumnsQuery
	PrimaryKeyQuery         = primaryKeyQuery
	ForeignKeysQuery        = foreignKeysQuery
	EnabledForeignKeysQuery = enabledForeignKeysQuery
)
